package event

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/heft/internal/event/topic"
)

type testPayload struct {
	DocID string
}

func (p testPayload) DocumentRef() string { return p.DocID }

func newTestEvent(t topic.Topic, docID string) Event[testPayload] {
	return New(t, testPayload{DocID: docID}, "test")
}

func TestBusPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()

	var got string
	_, err := bus.SubscribeFunc("document.opening", func(_ context.Context, event any) error {
		e, ok := event.(Event[testPayload])
		if !ok {
			t.Fatalf("unexpected event type %T", event)
		}
		got = e.Payload.DocID
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), newTestEvent("document.opening", "doc-1")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if got != "doc-1" {
		t.Errorf("handler saw %q, want %q", got, "doc-1")
	}
}

func TestBusPublishInvalidEvent(t *testing.T) {
	bus := NewBus()

	if err := bus.Publish(context.Background(), struct{}{}); err != ErrInvalidEvent {
		t.Errorf("Publish(no topic) = %v, want ErrInvalidEvent", err)
	}
}

func TestBusSubscribeValidation(t *testing.T) {
	bus := NewBus()

	if _, err := bus.Subscribe("document.opening", nil); err != ErrNilHandler {
		t.Errorf("Subscribe(nil handler) = %v, want ErrNilHandler", err)
	}
	if _, err := bus.SubscribeFunc("..bad", func(context.Context, any) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("Subscribe(bad topic) = %v, want ErrInvalidTopic", err)
	}
}

func TestBusPriorityOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	appendHandler := func(name string) HandlerFunc {
		return func(context.Context, any) error {
			order = append(order, name)
			return nil
		}
	}

	if _, err := bus.SubscribeFunc("document.opening", appendHandler("low"), WithPriority(PriorityLow)); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := bus.SubscribeFunc("document.opening", appendHandler("critical"), WithPriority(PriorityCritical)); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := bus.SubscribeFunc("document.opening", appendHandler("normal")); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), newTestEvent("document.opening", "doc-1")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	want := []string{"critical", "normal", "low"}
	if len(order) != len(want) {
		t.Fatalf("got %d deliveries, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBusWildcardSubscription(t *testing.T) {
	bus := NewBus()

	count := 0
	if _, err := bus.SubscribeFunc("document.**", func(context.Context, any) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, newTestEvent("document.opening", "a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(ctx, newTestEvent("document.opened", "a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if count != 2 {
		t.Errorf("wildcard handler ran %d times, want 2", count)
	}
}

func TestBusFilter(t *testing.T) {
	bus := NewBus()

	var seen []string
	_, err := bus.SubscribeFunc("document.opened", func(_ context.Context, event any) error {
		e := event.(Event[testPayload])
		seen = append(seen, e.Payload.DocID)
		return nil
	}, WithFilter(FilterDocument("doc-2")))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx := context.Background()
	for _, id := range []string{"doc-1", "doc-2", "doc-3", "doc-2"} {
		if err := bus.Publish(ctx, newTestEvent("document.opened", id)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	if len(seen) != 2 {
		t.Fatalf("filtered handler saw %d events, want 2", len(seen))
	}
	for _, id := range seen {
		if id != "doc-2" {
			t.Errorf("filtered handler saw %q, want doc-2", id)
		}
	}
}

func TestBusOnceDeliversExactlyOnce(t *testing.T) {
	bus := NewBus()

	count := 0
	sub, err := bus.SubscribeFunc("document.opened", func(context.Context, any) error {
		count++
		return nil
	}, WithOnce())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, newTestEvent("document.opened", "a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(ctx, newTestEvent("document.opened", "a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if count != 1 {
		t.Errorf("once handler ran %d times, want 1", count)
	}
	if sub.IsActive() {
		t.Error("once subscription should be cancelled after delivery")
	}
}

func TestBusOnceSpentEvenOnHandlerError(t *testing.T) {
	bus := NewBus()

	count := 0
	_, err := bus.SubscribeFunc("document.opened", func(context.Context, any) error {
		count++
		return errors.New("boom")
	}, WithOnce())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, newTestEvent("document.opened", "a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(ctx, newTestEvent("document.opened", "a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if count != 1 {
		t.Errorf("failing once handler ran %d times, want 1", count)
	}
}

func TestBusErrorHandlerReceivesHandlerError(t *testing.T) {
	var reported error
	bus := NewBus(WithErrorHandler(func(_ any, err error) {
		reported = err
	}))

	boom := errors.New("boom")
	if _, err := bus.SubscribeFunc("document.opening", func(context.Context, any) error {
		return boom
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), newTestEvent("document.opening", "a")); err != nil {
		t.Fatalf("Publish should not return handler errors, got %v", err)
	}

	if reported == nil {
		t.Fatal("error handler was not called")
	}
	if !errors.Is(reported, boom) {
		t.Errorf("reported error %v does not wrap handler error", reported)
	}
	var he *HandlerError
	if !errors.As(reported, &he) {
		t.Errorf("reported error %T, want *HandlerError", reported)
	}
}

func TestBusRecoversHandlerPanic(t *testing.T) {
	var reported error
	bus := NewBus(WithErrorHandler(func(_ any, err error) {
		reported = err
	}))

	if _, err := bus.SubscribeFunc("document.opening", func(context.Context, any) error {
		panic("handler exploded")
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(context.Background(), newTestEvent("document.opening", "a")); err != nil {
		t.Fatalf("Publish should survive panics, got %v", err)
	}

	if !errors.Is(reported, ErrHandlerPanic) {
		t.Errorf("reported error %v, want ErrHandlerPanic", reported)
	}

	stats := bus.Stats()
	if stats.HandlerPanics != 1 {
		t.Errorf("HandlerPanics = %d, want 1", stats.HandlerPanics)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	sub, err := bus.SubscribeFunc("document.opening", func(context.Context, any) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Unsubscribe(sub.ID()); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := bus.Unsubscribe(sub.ID()); err != ErrSubscriptionNotFound {
		t.Errorf("second Unsubscribe = %v, want ErrSubscriptionNotFound", err)
	}

	if err := bus.Publish(context.Background(), newTestEvent("document.opening", "a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if count != 0 {
		t.Errorf("unsubscribed handler ran %d times", count)
	}
}

func TestBusStats(t *testing.T) {
	bus := NewBus()

	if _, err := bus.SubscribeFunc("document.opening", func(context.Context, any) error {
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := bus.Publish(ctx, newTestEvent("document.opening", "a")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	stats := bus.Stats()
	if stats.EventsPublished != 3 {
		t.Errorf("EventsPublished = %d, want 3", stats.EventsPublished)
	}
	if stats.EventsDelivered != 3 {
		t.Errorf("EventsDelivered = %d, want 3", stats.EventsDelivered)
	}
	if stats.ActiveSubscribers != 1 {
		t.Errorf("ActiveSubscribers = %d, want 1", stats.ActiveSubscribers)
	}
}

func TestAsHandlerSkipsOtherPayloadTypes(t *testing.T) {
	bus := NewBus()

	count := 0
	handler := AsHandler(func(_ context.Context, e Event[testPayload]) error {
		count++
		return nil
	})
	if _, err := bus.Subscribe("document.**", handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, newTestEvent("document.opening", "a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(ctx, New[int]("document.opening", 42, "test")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if count != 1 {
		t.Errorf("typed handler ran %d times, want 1", count)
	}
}
