package detect

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration and engine lifecycle.
var (
	// ErrBadUnit indicates an unrecognized size unit.
	ErrBadUnit = errors.New("unknown size unit")

	// ErrBadThreshold indicates a negative size threshold.
	ErrBadThreshold = errors.New("threshold must not be negative")

	// ErrPatternConflict indicates both glob patterns and a predicate
	// were configured; exactly one selection mechanism may be active.
	ErrPatternConflict = errors.New("glob patterns and predicate are mutually exclusive")

	// ErrNotInstalled indicates an operation that requires an installed
	// engine.
	ErrNotInstalled = errors.New("engine not installed")
)

// ConfigError reports a configuration field the engine rejected.
type ConfigError struct {
	// Field is the configuration field, e.g. "features".
	Field string

	// Reason describes the rejection.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("config %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HandlerError reports a feature handler that failed to disable.
type HandlerError struct {
	// Feature is the name of the failing feature.
	Feature string

	// DocID is the document being dispatched.
	DocID string

	// Err is the handler's error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("disable %s for document %s: %v", e.Feature, e.DocID, e.Err)
}

// Unwrap returns the handler's error.
func (e *HandlerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
