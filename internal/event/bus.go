package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dshills/heft/internal/event/dispatch"
	"github.com/dshills/heft/internal/event/topic"
)

// Bus is a synchronous event bus. Publish runs every matching handler in
// the caller's goroutine before returning, so publishers can rely on
// handler side effects being complete when Publish returns.
type Bus interface {
	// Publish delivers an event to all matching subscriptions.
	// Handler errors are reported through the bus error handler, not
	// returned; Publish errors only for events without a valid topic.
	Publish(ctx context.Context, event any) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(t topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)

	// SubscribeFunc registers a handler function for a topic pattern.
	SubscribeFunc(t topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)

	// Unsubscribe cancels and removes a subscription by ID.
	Unsubscribe(subID string) error

	// Stats returns bus statistics.
	Stats() Stats
}

// BusOption configures a bus.
type BusOption func(*busConfig)

type busConfig struct {
	errorHandler ErrorHandler
	panicHandler dispatch.PanicHandler
	timeout      time.Duration
}

// WithErrorHandler sets the function that receives handler errors and
// recovered panics.
func WithErrorHandler(h ErrorHandler) BusOption {
	return func(c *busConfig) {
		c.errorHandler = h
	}
}

// WithHandlerTimeout sets a per-handler deadline. Handlers must respect
// context cancellation for it to take effect. Zero disables the deadline.
func WithHandlerTimeout(d time.Duration) BusOption {
	return func(c *busConfig) {
		c.timeout = d
	}
}

// WithPanicHandler sets a low-level panic observer invoked with the raw
// panic value and stack before the panic is wrapped as an error.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = dispatch.PanicHandler(h)
	}
}

type bus struct {
	registry   *Registry
	dispatcher *dispatch.SyncDispatcher

	errorHandler ErrorHandler

	eventsPublished  atomic.Uint64
	eventsDelivered  atomic.Uint64
	handlersExecuted atomic.Uint64
	handlerErrors    atomic.Uint64
	handlerPanics    atomic.Uint64
	totalDeliveryNs  atomic.Int64
}

// NewBus creates a synchronous event bus.
func NewBus(opts ...BusOption) Bus {
	var cfg busConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var dispatchOpts []dispatch.SyncOption
	if cfg.panicHandler != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithPanicHandler(cfg.panicHandler))
	}
	if cfg.timeout > 0 {
		dispatchOpts = append(dispatchOpts, dispatch.WithTimeout(cfg.timeout))
	}

	return &bus{
		registry:     NewRegistry(),
		dispatcher:   dispatch.NewSyncDispatcher(dispatchOpts...),
		errorHandler: cfg.errorHandler,
	}
}

func (b *bus) Publish(ctx context.Context, event any) error {
	eventTopic := b.extractTopic(event)
	if eventTopic == "" {
		return ErrInvalidEvent
	}

	subs := b.registry.MatchActive(eventTopic)
	if len(subs) == 0 {
		return nil
	}

	b.eventsPublished.Add(1)

	for _, sub := range subs {
		if !sub.ShouldDeliver(event) {
			continue
		}

		result := b.dispatcher.Dispatch(ctx, event, sub.Handler())
		b.handlersExecuted.Add(1)
		b.totalDeliveryNs.Add(result.Duration.Nanoseconds())

		switch {
		case result.Panicked:
			b.handlerPanics.Add(1)
			b.reportError(event, &PanicError{
				Topic:     eventTopic,
				Recovered: result.PanicValue,
				Stack:     result.PanicStack,
			})
		case result.Error != nil && !result.Skipped:
			b.handlerErrors.Add(1)
			b.reportError(event, &HandlerError{Topic: eventTopic, Err: result.Error})
		case result.Success:
			b.eventsDelivered.Add(1)
		}

		// One-shot subscriptions are spent by their first delivery,
		// successful or not.
		if sub.Config().Once && !result.Skipped {
			sub.Cancel()
			b.registry.Remove(sub.ID())
		}
	}

	return nil
}

func (b *bus) Subscribe(t topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !t.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := newSubscription(generateID(), t, handler, opts...)
	b.registry.Add(sub)
	return sub, nil
}

func (b *bus) SubscribeFunc(t topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(t, fn, opts...)
}

func (b *bus) Unsubscribe(subID string) error {
	sub, exists := b.registry.Get(subID)
	if !exists {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()
	b.registry.Remove(subID)
	return nil
}

func (b *bus) Stats() Stats {
	executed := b.handlersExecuted.Load()
	totalNs := b.totalDeliveryNs.Load()

	var avgNs int64
	if executed > 0 {
		avgNs = totalNs / int64(executed)
	}

	return Stats{
		EventsPublished:   b.eventsPublished.Load(),
		EventsDelivered:   b.eventsDelivered.Load(),
		HandlersExecuted:  executed,
		HandlerErrors:     b.handlerErrors.Load(),
		HandlerPanics:     b.handlerPanics.Load(),
		AvgDeliveryTimeNs: avgNs,
		ActiveSubscribers: b.registry.ActiveCount(),
	}
}

func (b *bus) reportError(event any, err error) {
	if b.errorHandler == nil {
		return
	}
	b.errorHandler(event, err)
}

func (b *bus) extractTopic(event any) topic.Topic {
	tp, ok := event.(TopicProvider)
	if !ok {
		return ""
	}
	t := tp.EventTopic()
	if !t.IsValid() {
		return ""
	}
	return t
}
