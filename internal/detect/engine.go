package detect

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/match"

	"github.com/dshills/heft/internal/event"
	"github.com/dshills/heft/internal/event/events"
)

// Engine ties a Detector to the event bus. It owns the configuration
// lifecycle: Install validates and subscribes, Reconfigure swaps
// snapshots, Uninstall detaches.
type Engine struct {
	mu       sync.Mutex
	bus      event.Bus
	detector *Detector
	sub      event.Subscription
	loaded   bool
}

// New creates an engine over the given bus, feature source, and size
// lookup. Nothing happens until Install.
func New(bus event.Bus, source FeatureSource, sizeFn SizeFunc, opts ...Option) *Engine {
	return &Engine{
		bus:      bus,
		detector: NewDetector(bus, source, sizeFn, opts...),
	}
}

// Detector exposes the engine's detector for verdict and stats queries.
func (e *Engine) Detector() *Detector {
	return e.detector
}

// Install validates cfg, activates it, and subscribes detection to
// document.opening. Installing an already-installed engine is a no-op:
// the first configuration wins until Reconfigure or Uninstall.
func (e *Engine) Install(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}

	if err := e.detector.SetConfig(cfg); err != nil {
		return err
	}
	sub, err := e.subscribeOpening(cfg)
	if err != nil {
		return err
	}
	e.sub = sub
	e.loaded = true
	return nil
}

// Reconfigure validates cfg and swaps it in. Documents already decided
// keep their verdicts and in-flight deferred queues keep the handles they
// captured; only future opens see the new snapshot.
func (e *Engine) Reconfigure(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return ErrNotInstalled
	}

	if err := e.detector.SetConfig(cfg); err != nil {
		return err
	}

	// The opening subscription carries the glob filter, so it is
	// re-registered along with the snapshot. The new subscription goes
	// in before the old one is removed; idempotent detection makes the
	// overlap harmless.
	sub, err := e.subscribeOpening(cfg)
	if err != nil {
		return err
	}
	if e.sub != nil {
		_ = e.bus.Unsubscribe(e.sub.ID())
	}
	e.sub = sub
	return nil
}

// Uninstall cancels the opening subscription. Verdicts for already-open
// documents survive until those documents close; a later Install starts a
// fresh configuration lifecycle.
func (e *Engine) Uninstall() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return nil
	}
	if e.sub != nil {
		_ = e.bus.Unsubscribe(e.sub.ID())
		e.sub = nil
	}
	e.loaded = false
	return nil
}

// Installed reports whether the engine is active.
func (e *Engine) Installed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// subscribeOpening registers detection on document.opening, restricted to
// the configured glob patterns when present.
func (e *Engine) subscribeOpening(cfg Config) (event.Subscription, error) {
	opts := []event.SubscriptionOption{
		event.WithPriority(event.PriorityCritical),
	}
	if len(cfg.Patterns) > 0 {
		opts = append(opts, event.WithFilter(patternFilter(cfg.Patterns)))
	}

	handler := event.AsHandler(func(ctx context.Context, ev event.Event[events.DocumentOpeningPayload]) error {
		return e.detector.DocumentOpening(ctx, ev.Payload.DocumentID)
	})
	return e.bus.Subscribe(events.TopicDocumentOpening, handler, opts...)
}

// patternFilter allows opening events whose path matches any glob.
func patternFilter(patterns []string) event.FilterFunc {
	globs := append([]string(nil), patterns...)
	return func(ev any) bool {
		p, ok := ev.(event.PayloadProvider)
		if !ok {
			return false
		}
		payload, ok := p.EventPayload().(events.DocumentOpeningPayload)
		if !ok {
			return false
		}
		return matchAny(globs, payload.Path)
	}
}

// matchAny reports whether path matches any glob. Matching is vim-style:
// "*" crosses path separators, and a pattern without a slash is tried
// against the base name, so "*.log" and "notes.*" both do what users of
// autocmd patterns expect.
func matchAny(globs []string, path string) bool {
	base := filepath.Base(path)
	for _, g := range globs {
		target := path
		if !strings.ContainsRune(g, '/') {
			target = base
		}
		if match.Match(target, g) {
			return true
		}
	}
	return false
}
