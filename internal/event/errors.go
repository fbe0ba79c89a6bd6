package event

import (
	"errors"
	"fmt"

	"github.com/dshills/heft/internal/event/topic"
)

// Bus errors.
var (
	// ErrNilHandler indicates a nil handler was provided.
	ErrNilHandler = errors.New("handler is nil")

	// ErrInvalidTopic indicates a malformed topic pattern.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrInvalidEvent indicates an event without a resolvable topic.
	ErrInvalidEvent = errors.New("event does not provide a topic")

	// ErrSubscriptionNotFound indicates an unknown subscription ID.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrHandlerPanic indicates a handler panicked during execution.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerError wraps an error returned by a handler, attaching the topic
// it was handling.
type HandlerError struct {
	Topic topic.Topic
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed for %q: %v", e.Topic, e.Err)
}

// Unwrap returns the underlying handler error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered handler panic.
type PanicError struct {
	Topic     topic.Topic
	Recovered any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for %q: %v", e.Topic, e.Recovered)
}

// Unwrap lets errors.Is match ErrHandlerPanic.
func (e *PanicError) Unwrap() error {
	return ErrHandlerPanic
}
