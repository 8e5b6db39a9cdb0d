// Package repository holds the durable stores: the JSON content tree, the
// media blob store and the authorization codes table. The sentinel values
// below let higher layers tell failure classes apart with errors.Is while
// the wrapped cause stays available for logging.
package repository

import "errors"

// ErrNotFound is returned when a document or row does not exist. Handlers
// translate this into an HTTP 404 on read paths.
var ErrNotFound = errors.New("not found")

// ErrCorrupt is returned when a stored document cannot be parsed.
var ErrCorrupt = errors.New("corrupt document")

// ErrIO is returned when a directory cannot be created or a write cannot
// be completed.
var ErrIO = errors.New("storage i/o")
