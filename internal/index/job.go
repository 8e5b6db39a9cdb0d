package index

import "context"

// Job is the future returned by Rebuild. Every caller that asked for a
// rebuild while the same job was queued shares it.
type Job struct {
	done chan struct{}
	gen  uint64
	err  error
}

func newJob() *Job { return &Job{done: make(chan struct{})} }

func (j *Job) finish(gen uint64, err error) {
	j.gen, j.err = gen, err
	close(j.done)
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx ends. It returns the generation
// the job installed.
func (j *Job) Wait(ctx context.Context) (uint64, error) {
	select {
	case <-j.done:
		return j.gen, j.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
