package detect

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/heft/internal/event"
	"github.com/dshills/heft/internal/feature"
)

// SizeFunc reports the byte size of a document's content source.
// Implementations stat the backing file; errors are soft failures and the
// detector treats the document as having no size.
type SizeFunc func(docID string) (int64, error)

// FeatureSource resolves configured feature names to handlers.
// *feature.Registry satisfies it.
type FeatureSource interface {
	Get(name string) (feature.Feature, error)
}

// Logger is the slice of logging the detector needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Stats is a point-in-time snapshot of detector counters.
type Stats struct {
	// Scanned counts documents that went through classification.
	Scanned uint64

	// Big counts documents classified big.
	Big uint64

	// ImmediateDisables counts feature disables run during opening.
	ImmediateDisables uint64

	// DeferredDisables counts feature disables run after opened.
	DeferredDisables uint64

	// SoftFailures counts size lookups that failed and classified as 0.
	SoftFailures uint64

	// Tracked is the number of documents with a recorded verdict.
	Tracked int

	// PendingDeferred is the number of documents with a deferred batch
	// still waiting for their opened event.
	PendingDeferred int
}

// Detector classifies documents as they open and dispatches feature
// disables for the big ones. The first DocumentOpening call per document
// decides; every later call is a no-op until Forget.
type Detector struct {
	bus    event.Bus
	source FeatureSource
	sizeFn SizeFunc
	logger Logger

	states *stateTable

	cfgMu sync.RWMutex
	cfg   *Config

	pendMu  sync.Mutex
	pending map[string]event.Subscription // docID -> queued deferred batch

	scanned           atomic.Uint64
	big               atomic.Uint64
	immediateDisables atomic.Uint64
	deferredDisables  atomic.Uint64
	softFailures      atomic.Uint64
}

// options collects construction settings shared by Detector and Engine.
type options struct {
	logger Logger
}

// Option configures a Detector or Engine.
type Option func(*options)

// WithLogger routes soft-failure and lifecycle logging through l.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewDetector creates a detector with no configuration. DocumentOpening
// is a no-op until SetConfig installs a snapshot.
func NewDetector(bus event.Bus, source FeatureSource, sizeFn SizeFunc, opts ...Option) *Detector {
	o := options{logger: nopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Detector{
		bus:     bus,
		source:  source,
		sizeFn:  sizeFn,
		logger:  o.logger,
		states:  newStateTable(),
		pending: make(map[string]event.Subscription),
	}
}

// SetConfig validates cfg and installs it as the active snapshot.
// Documents already decided keep their verdicts; in-flight deferred
// batches keep the handles they captured.
func (d *Detector) SetConfig(cfg Config) error {
	if err := d.validate(cfg); err != nil {
		return err
	}

	d.cfgMu.Lock()
	d.cfg = cfg.clone()
	d.cfgMu.Unlock()
	return nil
}

// validate rejects snapshots the detector cannot act on.
func (d *Detector) validate(cfg Config) error {
	if !cfg.Unit.valid() {
		return &ConfigError{Field: "filesizeUnit", Reason: "unrecognized unit", Err: ErrBadUnit}
	}
	if cfg.Threshold < 0 {
		return &ConfigError{Field: "filesize", Reason: "negative threshold", Err: ErrBadThreshold}
	}
	if len(cfg.Patterns) > 0 && cfg.Predicate != nil {
		return &ConfigError{Field: "pattern", Reason: "both patterns and predicate configured", Err: ErrPatternConflict}
	}
	if _, err := d.resolve(cfg.Features); err != nil {
		return err
	}
	return nil
}

// config returns the active snapshot, or nil before SetConfig.
func (d *Detector) config() *Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// DocumentOpening classifies a document that is starting to open. Exactly
// one verdict is recorded per document; if it is big, immediate feature
// disables run before this method returns and deferred ones are queued
// for the document's opened event.
//
// The returned error is a configuration error (feature resolution) or a
// handler failure. Callers at the event boundary let the bus report it.
func (d *Detector) DocumentOpening(ctx context.Context, docID string) error {
	cfg := d.config()
	if cfg == nil {
		return nil
	}
	if d.states.get(docID).Decided() {
		return nil
	}

	size, err := d.sizeFn(docID)
	if err != nil {
		// A document we cannot measure is not big.
		d.softFailures.Add(1)
		d.logger.Debug("size lookup failed for %s: %v", docID, err)
		size = 0
	}

	d.scanned.Add(1)

	if !Classify(docID, size, cfg) {
		d.states.set(docID, StateNotBig)
		return nil
	}

	d.states.set(docID, StateBig)
	d.big.Add(1)
	d.logger.Debug("document %s is big (%d bytes), disabling %d features", docID, size, len(cfg.Features))

	handles, err := d.resolve(cfg.Features)
	if err != nil {
		return err
	}
	return d.dispatch(ctx, handles, docID)
}

// resolve maps feature names to handlers, preserving order.
func (d *Detector) resolve(names []string) ([]feature.Feature, error) {
	handles := make([]feature.Feature, 0, len(names))
	for _, name := range names {
		f, err := d.source.Get(name)
		if err != nil {
			return nil, &ConfigError{Field: "features", Reason: "unresolvable feature", Err: err}
		}
		handles = append(handles, f)
	}
	return handles, nil
}

// Forget drops all record of a document: its verdict and any deferred
// batch still waiting for an opened event. Hosts call this when the
// document closes so detection state stays scoped to open documents.
func (d *Detector) Forget(docID string) {
	d.states.forget(docID)

	d.pendMu.Lock()
	sub, ok := d.pending[docID]
	delete(d.pending, docID)
	d.pendMu.Unlock()

	if ok {
		_ = d.bus.Unsubscribe(sub.ID())
	}
}

// State returns the document's recorded verdict.
func (d *Detector) State(docID string) State {
	return d.states.get(docID)
}

// Stats returns a snapshot of detector counters.
func (d *Detector) Stats() Stats {
	d.pendMu.Lock()
	pending := len(d.pending)
	d.pendMu.Unlock()

	return Stats{
		Scanned:           d.scanned.Load(),
		Big:               d.big.Load(),
		ImmediateDisables: d.immediateDisables.Load(),
		DeferredDisables:  d.deferredDisables.Load(),
		SoftFailures:      d.softFailures.Load(),
		Tracked:           d.states.size(),
		PendingDeferred:   pending,
	}
}
