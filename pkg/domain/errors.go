package domain

import "errors"

// ErrInvalidOperation is returned when a mutation targets a path that does not
// resolve (insert under a missing parent, delete of a missing node) or would
// produce an unnamed node.
var ErrInvalidOperation = errors.New("invalid operation")

// ErrHostIO is returned when a round-trip to the host (fetch, flush or node
// release) fails. It aborts the current turn.
var ErrHostIO = errors.New("host i/o failed")

// ErrDocumentNotFound is returned when a document ID cannot be found in the store.
var ErrDocumentNotFound = errors.New("document not found")

// ErrScript is returned when a script fails to compile or raises an error.
var ErrScript = errors.New("script failed")
