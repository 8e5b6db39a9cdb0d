package index

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned by Get when neither an id nor a slug is given.
	ErrInvalidQuery = errors.New("index: lookup needs an id or a slug")
	// ErrClosed is returned once the engine has been shut down.
	ErrClosed = errors.New("index: closed")
)

// RebuildError reports a failed scan. The previous generation keeps serving.
type RebuildError struct {
	Err error
}

func (e *RebuildError) Error() string { return fmt.Sprintf("index rebuild: %v", e.Err) }
func (e *RebuildError) Unwrap() error { return e.Err }

// AddError reports a failed incremental insert. Callers fall back to a
// full rebuild.
type AddError struct {
	ID  string
	Err error
}

func (e *AddError) Error() string { return fmt.Sprintf("index add %q: %v", e.ID, e.Err) }
func (e *AddError) Unwrap() error { return e.Err }
