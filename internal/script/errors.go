package script

import "errors"

// Sentinel errors for script execution.
var (
	// ErrStateClosed indicates the interpreter has been closed.
	ErrStateClosed = errors.New("lua state closed")

	// ErrInvalidChunk indicates a chunk that did not produce the
	// expected shape (a function for predicates, a table for features).
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrNilFunction indicates a call to a missing Lua function.
	ErrNilFunction = errors.New("nil lua function")

	// ErrNotSupported indicates the scripted feature did not define the
	// requested operation.
	ErrNotSupported = errors.New("operation not supported")
)
