// Package app wires the detection engine into a runnable host: event bus,
// document manager, feature registry, configuration, and the surface the
// stock features act on. Embedding editors construct a Host and route
// their document lifecycle through OpenDocument and CloseDocument; the
// heft CLI runs the same host headless.
package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/dshills/heft/internal/config"
	"github.com/dshills/heft/internal/config/loader"
	"github.com/dshills/heft/internal/config/notify"
	"github.com/dshills/heft/internal/detect"
	"github.com/dshills/heft/internal/document"
	"github.com/dshills/heft/internal/event"
	"github.com/dshills/heft/internal/event/events"
	"github.com/dshills/heft/internal/feature"
	"github.com/dshills/heft/internal/feature/builtin"
	"github.com/dshills/heft/internal/script"
)

// Host is the central coordinator. It owns the event bus, the open
// document set, the feature registry with the stock features registered,
// and the detection engine, and it keeps the engine's configuration in
// step with the config system.
type Host struct {
	mu sync.Mutex

	cfg        *config.Config
	ownsConfig bool
	ownLogger  bool

	bus       event.Bus
	documents *document.Manager
	registry  *feature.Registry
	surface   *FeatureSurface
	engine    *detect.Engine

	script   *script.State
	scripted []string // feature names loaded from bigdoc.featureScripts

	logger  *Logger
	metrics *Metrics

	closedSub event.Subscription
	cfgSub    *notify.Subscription

	closed bool
}

// Options configures the host.
type Options struct {
	// Config supplies an already-loaded configuration. The caller keeps
	// ownership; Close leaves it open. When nil the host creates, loads,
	// and owns one.
	Config *config.Config

	// ConfigPath is an explicit settings file path. Used only when
	// Config is nil.
	ConfigPath string

	// Logger receives host and engine logging. Defaults to the
	// application logger with the level from the logging config section.
	Logger *Logger

	// Metrics receives host counters. Defaults to the application metrics.
	Metrics *Metrics

	// Stat overrides how backing files are sized. Nil uses os.Stat.
	Stat document.StatFunc
}

// New creates a host, loads configuration, registers the stock features,
// and installs the detection engine. Configuration the engine cannot act
// on (unknown feature names, bad units, pattern/predicate conflicts)
// fails construction.
func New(opts Options) (*Host, error) {
	h := &Host{
		registry:  feature.NewRegistry(),
		surface:   NewFeatureSurface(),
		logger:    opts.Logger,
		ownLogger: opts.Logger == nil,
		metrics:   opts.Metrics,
	}
	if h.logger == nil {
		h.logger = GetLogger()
	}
	if h.metrics == nil {
		h.metrics = GetMetrics()
	}

	h.bus = event.NewBus(event.WithErrorHandler(h.handleBusError))

	var docOpts []document.Option
	if opts.Stat != nil {
		docOpts = append(docOpts, document.WithStatFunc(opts.Stat))
	}
	h.documents = document.NewManager(docOpts...)

	if err := builtin.RegisterDefaults(h.registry, h.surface.Surfaces()); err != nil {
		return nil, &InitError{Component: "features", Err: err}
	}

	if opts.Config != nil {
		h.cfg = opts.Config
	} else {
		var cfgOpts []config.Option
		if opts.ConfigPath != "" {
			cfgOpts = append(cfgOpts, config.WithUserConfigPath(opts.ConfigPath))
		}
		h.cfg = config.New(cfgOpts...)
		h.ownsConfig = true
		if err := h.cfg.Load(context.Background()); err != nil {
			h.cfg.Close()
			return nil, &InitError{Component: "config", Err: err}
		}
	}

	// A failure past this point must release what the host created.
	initialized := false
	defer func() {
		if !initialized && h.ownsConfig {
			h.cfg.Close()
		}
	}()

	if h.ownLogger {
		h.logger.SetLevel(ParseLogLevel(h.cfg.Logging().Level))
	}

	h.engine = detect.New(h.bus, h.registry, h.documents.FileSize,
		detect.WithLogger(h.logger.WithComponent("detect")))

	dcfg, err := h.buildDetectConfig(h.cfg.BigDoc())
	if err != nil {
		return nil, &InitError{Component: "detect", Err: err}
	}
	if err := h.engine.Install(context.Background(), dcfg); err != nil {
		return nil, &InitError{Component: "detect", Err: err}
	}

	// Dropping verdicts and surface rows runs after every other closed
	// handler so they can still see the document's final state.
	h.closedSub, err = h.bus.Subscribe(events.TopicDocumentClosed,
		event.AsHandler(func(_ context.Context, ev event.Event[events.DocumentClosedPayload]) error {
			h.forget(ev.Payload.DocumentID)
			return nil
		}),
		event.WithPriority(event.PriorityLow),
	)
	if err != nil {
		return nil, &InitError{Component: "subscriptions", Err: err}
	}

	// Reload notifications arrive here too; path subscriptions receive
	// every whole-file reload alongside bigdoc sets.
	h.cfgSub = h.cfg.SubscribePath("bigdoc", h.handleConfigChange)

	initialized = true
	return h, nil
}

// OpenDocument registers the file at path as an open document and runs
// it through detection: document.opening fires first, document.opened
// after the size is known. For big documents the immediate feature
// disables complete before this method returns, deferred ones during the
// opened publish.
func (h *Host) OpenDocument(ctx context.Context, path string) (*document.Document, error) {
	if h.isClosed() {
		return nil, ErrHostClosed
	}

	doc, err := h.documents.Open(path)
	if err != nil {
		return nil, NewOperationError("open", path, err)
	}
	if err := h.publishOpen(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// OpenScratch creates a document with no backing file and runs it
// through the same lifecycle. Scratch documents have no bytes and are
// never big on size alone.
func (h *Host) OpenScratch(ctx context.Context) (*document.Document, error) {
	if h.isClosed() {
		return nil, ErrHostClosed
	}

	doc := h.documents.OpenScratch()
	if err := h.publishOpen(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// publishOpen fires the opening and opened events for one document.
func (h *Host) publishOpen(ctx context.Context, doc *document.Document) error {
	timer := StartTimer()

	opening := event.New(events.TopicDocumentOpening, events.DocumentOpeningPayload{
		DocumentID: doc.ID,
		Path:       doc.Path,
	}, "host")
	if err := h.bus.Publish(ctx, opening); err != nil {
		return NewOperationError("open", doc.Name, err)
	}

	size, err := h.documents.FileSize(doc.ID)
	if err != nil {
		size = 0
	}

	opened := event.New(events.TopicDocumentOpened, events.DocumentOpenedPayload{
		DocumentID: doc.ID,
		Path:       doc.Path,
		SizeBytes:  size,
	}, "host").WithCorrelation(opening.Metadata.ID)
	if err := h.bus.Publish(ctx, opened); err != nil {
		return NewOperationError("open", doc.Name, err)
	}

	h.metrics.RecordOpen(timer.Elapsed())
	return nil
}

// CloseDocument removes the document from the open set and publishes
// document.closed, which drops its verdict and surface state.
func (h *Host) CloseDocument(ctx context.Context, docID string) error {
	if h.isClosed() {
		return ErrHostClosed
	}

	doc, ok := h.documents.Get(docID)
	if !ok {
		return NewOperationError("close", docID, document.ErrNotFound)
	}
	if err := h.documents.Close(docID); err != nil {
		return NewOperationError("close", doc.Name, err)
	}

	closed := event.New(events.TopicDocumentClosed, events.DocumentClosedPayload{
		DocumentID: doc.ID,
		Path:       doc.Path,
	}, "host")
	if err := h.bus.Publish(ctx, closed); err != nil {
		return NewOperationError("close", doc.Name, err)
	}

	h.metrics.RecordClose()
	return nil
}

// Verdict returns the detection state recorded for a document.
func (h *Host) Verdict(docID string) detect.State {
	return h.engine.Detector().State(docID)
}

// FeaturePlan reports which configured features a big document would
// lose, split by dispatch phase.
func (h *Host) FeaturePlan() (immediate, deferred []string, err error) {
	for _, name := range h.cfg.BigDoc().Features {
		f, ferr := h.registry.Get(name)
		if ferr != nil {
			return nil, nil, ferr
		}
		if f.Options().Defer {
			deferred = append(deferred, name)
		} else {
			immediate = append(immediate, name)
		}
	}
	return immediate, deferred, nil
}

// Close uninstalls the engine, cancels subscriptions, and releases
// resources the host created. Idempotent. A configuration supplied by
// the caller stays open.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	_ = h.engine.Uninstall()

	if h.closedSub != nil {
		_ = h.bus.Unsubscribe(h.closedSub.ID())
	}
	if h.cfgSub != nil {
		h.cfgSub.Unsubscribe()
	}
	if h.ownsConfig {
		h.cfg.Close()
	}

	h.mu.Lock()
	st := h.script
	h.script = nil
	h.mu.Unlock()
	if st != nil {
		_ = st.Close()
	}
}

// Bus returns the host's event bus.
func (h *Host) Bus() event.Bus { return h.bus }

// Config returns the host's configuration.
func (h *Host) Config() *config.Config { return h.cfg }

// Documents returns the open document set.
func (h *Host) Documents() *document.Manager { return h.documents }

// Features returns the feature registry.
func (h *Host) Features() *feature.Registry { return h.registry }

// Engine returns the detection engine.
func (h *Host) Engine() *detect.Engine { return h.engine }

// Surface returns the per-document feature state.
func (h *Host) Surface() *FeatureSurface { return h.surface }

// Logger returns the host's logger.
func (h *Host) Logger() *Logger { return h.logger }

// Metrics returns the host's metrics.
func (h *Host) Metrics() *Metrics { return h.metrics }

// isClosed reports whether Close has run.
func (h *Host) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// forget drops all per-document state when a document closes.
func (h *Host) forget(docID string) {
	h.engine.Detector().Forget(docID)
	h.surface.Forget(docID)
}

// handleBusError receives handler failures from the bus. Failures are
// counted and logged; the host survives broken handlers.
func (h *Host) handleBusError(_ any, err error) {
	var pe *event.PanicError
	if errors.As(err, &pe) {
		h.metrics.RecordHandlerPanic()
		h.logger.Error("recovered handler panic on %s: %v", pe.Topic, pe.Recovered)
		return
	}
	h.metrics.RecordHandlerError()
	h.logger.Error("event handler: %v", err)
}

// handleConfigChange reacts to configuration changes: the log level is
// reapplied and the engine gets a fresh snapshot. Documents already
// decided keep their verdicts; only future opens see the change.
func (h *Host) handleConfigChange(change notify.Change) {
	if h.isClosed() {
		return
	}
	if h.ownLogger {
		h.logger.SetLevel(ParseLogLevel(h.cfg.Logging().Level))
	}

	dcfg, err := h.buildDetectConfig(h.cfg.BigDoc())
	if err != nil {
		h.logger.Error("configuration change rejected: %v", err)
		return
	}
	if err := h.engine.Reconfigure(context.Background(), dcfg); err != nil {
		h.logger.Error("reconfigure: %v", err)
		return
	}

	h.metrics.RecordConfigReload()
	h.logger.Info("detection reconfigured (%s)", change.Source)

	reloaded := event.New(events.TopicConfigReloaded, events.ConfigReloadedPayload{
		Path: h.cfg.SettingsPath(),
	}, "host")
	_ = h.bus.Publish(context.Background(), reloaded)
}

// buildDetectConfig translates the bigdoc config section into an engine
// snapshot, compiling the predicate script and loading scripted features
// along the way.
func (h *Host) buildDetectConfig(bc config.BigDocConfig) (detect.Config, error) {
	unit, err := detect.ParseUnit(bc.FilesizeUnit)
	if err != nil {
		return detect.Config{}, WrapError(err, "bigdoc.filesizeUnit")
	}

	dcfg := detect.Config{
		Threshold: bc.Filesize,
		Unit:      unit,
		Patterns:  bc.Patterns,
		Features:  bc.Features,
	}

	if bc.PredicateScript != "" {
		pred, err := h.compilePredicate(bc.PredicateScript)
		if err != nil {
			return detect.Config{}, WrapError(err, "bigdoc.predicateScript")
		}
		dcfg.Predicate = pred
		// The stock "*" pattern just means every document. A pattern the
		// user actually set next to a predicate is a real conflict and is
		// left in place for validation to reject.
		if h.cfg.Origin("bigdoc.pattern") == "defaults" {
			dcfg.Patterns = nil
		}
	}

	if err := h.loadFeatureScripts(bc.FeatureScripts); err != nil {
		return detect.Config{}, WrapError(err, "bigdoc.featureScripts")
	}

	return dcfg, nil
}

// compilePredicate builds a PredicateFunc from a Lua chunk. The spec is
// a file path when it ends in .lua, inline source otherwise. Evaluation
// errors log a warning and report not-big.
func (h *Host) compilePredicate(spec string) (detect.PredicateFunc, error) {
	src := spec
	if strings.HasSuffix(spec, ".lua") {
		data, err := os.ReadFile(loader.ExpandEnvInString(spec))
		if err != nil {
			return nil, err
		}
		src = string(data)
	}

	pred, err := script.CompilePredicate(h.scriptState(), src)
	if err != nil {
		return nil, err
	}

	logger := h.logger
	return func(docID string, sizeInUnit int64) bool {
		big, err := pred.Eval(docID, sizeInUnit)
		if err != nil {
			logger.Warn("size predicate: %v", err)
			return false
		}
		return big
	}, nil
}

// loadFeatureScripts replaces the scripted features with the ones named
// by the configuration. On failure the new batch is rolled back; features
// from the previous batch are already gone, so a configuration still
// naming them will fail resolution until a good reload.
func (h *Host) loadFeatureScripts(paths []string) error {
	h.mu.Lock()
	previous := h.scripted
	h.scripted = nil
	h.mu.Unlock()

	for _, name := range previous {
		h.registry.Unregister(name)
	}

	var loaded []string
	rollback := func() {
		for _, name := range loaded {
			h.registry.Unregister(name)
		}
	}

	for _, path := range paths {
		data, err := os.ReadFile(loader.ExpandEnvInString(path))
		if err != nil {
			rollback()
			return err
		}
		f, err := script.LoadFeature(h.scriptState(), string(data))
		if err != nil {
			rollback()
			return WrapError(err, "%s", path)
		}
		if err := h.registry.Register(f); err != nil {
			rollback()
			return WrapError(err, "%s", path)
		}
		loaded = append(loaded, f.Name())
	}

	h.mu.Lock()
	h.scripted = loaded
	h.mu.Unlock()
	return nil
}

// scriptState lazily creates the shared Lua interpreter.
func (h *Host) scriptState() *script.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.script == nil {
		h.script = script.NewState()
	}
	return h.script
}
