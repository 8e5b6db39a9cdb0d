// Package index keeps a rebuildable, queryable view of the content tree.
//
// Each full rebuild scans the content store into a fresh sqlite file (a
// generation) and swaps it in atomically. Readers always see either the
// old or the new generation, never a mix. Incremental adds go straight
// into the live generation; adds that arrive while a rebuild is scanning
// are journaled and replayed into the new generation before the swap.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cleverdevil/dwell/internal/repository"
)

// Source is the scan input of a rebuild.
type Source interface {
	Walk(fn func(repository.Entry) error) error
}

type Options struct {
	Dir    string // directory holding generation files
	Source Source
	Logger *zap.Logger
}

type Engine struct {
	dir    string
	source Source
	log    *zap.Logger
	m      instruments

	live atomic.Pointer[generation]
	seq  atomic.Uint64
	// version moves on every swap and every successful Add.
	version atomic.Uint64

	// mu orders incremental writes against the swap.
	mu       sync.Mutex
	scanning bool
	journal  []record

	jobMu  sync.Mutex
	queued *Job
	wake   chan struct{}

	closed    atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New prepares dir, removes generation files left by a previous process
// and installs an empty generation. Call Start to run the rebuild worker.
func New(opts Options) (*Engine, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("index: empty dir")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}
	stale, _ := filepath.Glob(filepath.Join(opts.Dir, "content-*.db*"))
	for _, f := range stale {
		os.Remove(f)
	}

	e := &Engine{
		dir:    opts.Dir,
		source: opts.Source,
		log:    opts.Logger,
		m:      newInstruments(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	g, _, err := buildGeneration(context.Background(), e.dir, e.seq.Add(1), func(func(record) error) error { return nil })
	if err != nil {
		return nil, fmt.Errorf("index: initial generation: %w", err)
	}
	e.live.Store(g)
	e.version.Add(1)
	return e, nil
}

// Start runs the rebuild worker until ctx ends or Close is called.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		ctx, e.cancel = context.WithCancel(ctx)
		go e.worker(ctx)
	})
}

// Close stops the worker, fails any queued job with ErrClosed and retires
// the live generation after in-flight readers finish.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		started := true
		e.startOnce.Do(func() { started = false })
		if started {
			e.cancel()
			<-e.done
		}
		e.failQueued(ErrClosed)
		e.mu.Lock()
		g := e.live.Swap(nil)
		e.mu.Unlock()
		if g != nil {
			g.retire()
		}
	})
	return nil
}

// Generation is the id of the generation currently serving reads.
func (e *Engine) Generation() uint64 {
	if g := e.live.Load(); g != nil {
		return g.id
	}
	return 0
}

// Version changes whenever the data served to readers may have changed:
// after each swap and each successful Add. Response caches key on it.
func (e *Engine) Version() uint64 { return e.version.Load() }

// Rebuild asks the worker for a full rebuild. If one is already queued the
// caller joins it; a rebuild that is running does not absorb new requests,
// since it may have scanned past a file changed after it started.
func (e *Engine) Rebuild() *Job {
	e.jobMu.Lock()
	defer e.jobMu.Unlock()
	if e.closed.Load() {
		j := newJob()
		j.finish(0, ErrClosed)
		return j
	}
	if e.queued != nil {
		return e.queued
	}
	e.queued = newJob()
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return e.queued
}

// Add writes one document into the live generation. During a rebuild the
// record is also journaled for the generation being built.
func (e *Engine) Add(ctx context.Context, entry repository.Entry) error {
	rec, err := recordOf(entry)
	if err != nil {
		e.m.addFailures.Add(ctx, 1)
		return &AddError{ID: entry.Path, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.live.Load()
	if g == nil {
		return ErrClosed
	}
	if err := g.insert(ctx, rec); err != nil {
		e.m.addFailures.Add(ctx, 1)
		return &AddError{ID: rec.id, Err: err}
	}
	if e.scanning {
		e.journal = append(e.journal, rec)
	}
	e.version.Add(1)
	return nil
}

func (e *Engine) worker(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			// no worker is left to run jobs, so refuse new ones
			e.jobMu.Lock()
			e.closed.Store(true)
			e.jobMu.Unlock()
			e.failQueued(ErrClosed)
			return
		case <-e.wake:
		}

		e.jobMu.Lock()
		j := e.queued
		e.queued = nil
		e.jobMu.Unlock()
		if j == nil {
			continue
		}
		gen, err := e.rebuild(ctx)
		j.finish(gen, err)
	}
}

func (e *Engine) failQueued(err error) {
	e.jobMu.Lock()
	j := e.queued
	e.queued = nil
	e.jobMu.Unlock()
	if j != nil {
		j.finish(0, err)
	}
}

func (e *Engine) rebuild(ctx context.Context) (gen uint64, err error) {
	start := time.Now()
	n := 0
	defer func() {
		if r := recover(); r != nil {
			err = &RebuildError{Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			e.mu.Lock()
			e.scanning = false
			e.journal = nil
			e.mu.Unlock()
			e.log.Error("index rebuild failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		}
		e.m.rebuilt(context.WithoutCancel(ctx), time.Since(start), n, err)
	}()

	if e.source == nil {
		return 0, &RebuildError{Err: fmt.Errorf("no source")}
	}

	e.mu.Lock()
	e.scanning = true
	e.journal = nil
	e.mu.Unlock()

	id := e.seq.Add(1)
	g, n, err := buildGeneration(ctx, e.dir, id, func(insert func(record) error) error {
		return e.source.Walk(func(entry repository.Entry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := recordOf(entry)
			if err != nil {
				return err
			}
			return insert(rec)
		})
	})
	if err != nil {
		return 0, &RebuildError{Err: err}
	}

	e.mu.Lock()
	for _, rec := range e.journal {
		if err := g.insert(ctx, rec); err != nil {
			e.mu.Unlock()
			g.retire()
			return 0, &RebuildError{Err: fmt.Errorf("replay %s: %w", rec.id, err)}
		}
	}
	replayed := len(e.journal)
	e.journal = nil
	e.scanning = false
	old := e.live.Swap(g)
	e.version.Add(1)
	e.mu.Unlock()

	if old != nil {
		old.retire()
	}
	e.log.Info("index rebuilt",
		zap.Uint64("generation", id),
		zap.Int("documents", n),
		zap.Int("replayed", replayed),
		zap.Duration("took", time.Since(start)),
	)
	return id, nil
}

// acquire returns the live generation read-locked, or nil once closed.
// A generation retired between Load and RLock is skipped.
func (e *Engine) acquire() *generation {
	for {
		g := e.live.Load()
		if g == nil {
			return nil
		}
		g.mu.RLock()
		if !g.closed {
			return g
		}
		g.mu.RUnlock()
	}
}
