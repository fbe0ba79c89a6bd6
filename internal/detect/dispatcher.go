package detect

import (
	"context"
	"fmt"

	"github.com/dshills/heft/internal/event"
	"github.com/dshills/heft/internal/event/events"
	"github.com/dshills/heft/internal/feature"
)

// dispatch partitions handles by their defer option, preserving relative
// order within each group. Immediate handles disable synchronously, in
// order; the first failure aborts the rest and propagates. Deferred
// handles are queued for the document's opened event. The immediate phase
// completes strictly before the deferred registration.
func (d *Detector) dispatch(ctx context.Context, handles []feature.Feature, docID string) error {
	deferred := make([]feature.Feature, 0, len(handles))
	for _, h := range handles {
		if h.Options().Defer {
			deferred = append(deferred, h)
			continue
		}
		if err := h.Disable(ctx, docID); err != nil {
			return &HandlerError{Feature: h.Name(), DocID: docID, Err: err}
		}
		d.immediateDisables.Add(1)
	}

	if len(deferred) == 0 {
		return nil
	}
	return d.queueDeferred(deferred, docID)
}

// queueDeferred parks the deferred handles behind a one-shot subscription
// that fires when this document finishes opening. The subscription is
// spent by its single delivery whether or not every handle succeeds; a
// failed deferred batch is reported through the bus, not retried.
func (d *Detector) queueDeferred(queue []feature.Feature, docID string) error {
	handler := event.HandlerFunc(func(ctx context.Context, _ any) error {
		d.clearPending(docID)
		for _, h := range queue {
			if err := h.Disable(ctx, docID); err != nil {
				return &HandlerError{Feature: h.Name(), DocID: docID, Err: err}
			}
			d.deferredDisables.Add(1)
		}
		return nil
	})

	sub, err := d.bus.Subscribe(events.TopicDocumentOpened, handler,
		event.WithOnce(),
		event.WithFilter(event.FilterDocument(docID)),
		event.WithPriority(event.PriorityCritical),
	)
	if err != nil {
		return fmt.Errorf("queue deferred disables for %s: %w", docID, err)
	}

	d.pendMu.Lock()
	d.pending[docID] = sub
	d.pendMu.Unlock()
	return nil
}

func (d *Detector) clearPending(docID string) {
	d.pendMu.Lock()
	delete(d.pending, docID)
	d.pendMu.Unlock()
}
