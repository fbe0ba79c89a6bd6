package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/heft/internal/config"
	"github.com/dshills/heft/internal/detect"
	"github.com/dshills/heft/internal/document"
	"github.com/dshills/heft/internal/event"
	"github.com/dshills/heft/internal/event/events"
	"github.com/dshills/heft/internal/feature"
	"github.com/dshills/heft/internal/feature/builtin"
)

func newTestRegistry(t *testing.T, s *FeatureSurface) *feature.Registry {
	t.Helper()
	reg := feature.NewRegistry()
	if err := builtin.RegisterDefaults(reg, s.Surfaces()); err != nil {
		t.Fatalf("RegisterDefaults() error: %v", err)
	}
	return reg
}

func newTestConfig(t *testing.T, settings string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte(settings), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	cfg := config.New(config.WithUserConfigPath(path), config.WithWatcher(false))
	if err := cfg.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	t.Cleanup(cfg.Close)
	return cfg
}

func newTestHost(t *testing.T, settings string) *Host {
	t.Helper()
	h, err := New(Options{
		Config:  newTestConfig(t, settings),
		Logger:  NullLogger,
		Metrics: NewMetrics(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}

// writeSized creates a file of exactly size bytes and returns its path.
func writeSized(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const bytesThreshold = `
[bigdoc]
filesize = 100
filesizeUnit = "bytes"
`

func TestNew_StockFeatures(t *testing.T) {
	h := newTestHost(t, bytesThreshold)

	names := h.Features().Names()
	if len(names) != 8 {
		t.Errorf("expected 8 stock features, got %d: %v", len(names), names)
	}
	for _, name := range builtin.DefaultNames() {
		if _, err := h.Features().Get(name); err != nil {
			t.Errorf("Get(%s) error: %v", name, err)
		}
	}
	if !h.Engine().Installed() {
		t.Error("expected engine installed after New")
	}
}

func TestNew_UnknownFeature(t *testing.T) {
	cfg := newTestConfig(t, `
[bigdoc]
filesize = 100
filesizeUnit = "bytes"
features = ["syntax", "minimap"]
`)

	_, err := New(Options{Config: cfg, Logger: NullLogger, Metrics: NewMetrics()})
	if err == nil {
		t.Fatal("expected New to fail on unknown feature")
	}
	if !errors.Is(err, feature.ErrUnknownFeature) {
		t.Errorf("expected ErrUnknownFeature, got %v", err)
	}

	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected InitError, got %T", err)
	}
	if initErr.Component != "detect" {
		t.Errorf("expected component 'detect', got '%s'", initErr.Component)
	}
}

func TestNew_PatternPredicateConflict(t *testing.T) {
	cfg := newTestConfig(t, `
[bigdoc]
filesize = 100
filesizeUnit = "bytes"
pattern = "*.log"
predicateScript = "return function(doc, size) return false end"
`)

	_, err := New(Options{Config: cfg, Logger: NullLogger, Metrics: NewMetrics()})
	if !errors.Is(err, detect.ErrPatternConflict) {
		t.Errorf("expected ErrPatternConflict, got %v", err)
	}
}

func TestHost_OpenDocument_Small(t *testing.T) {
	h := newTestHost(t, bytesThreshold)
	path := writeSized(t, t.TempDir(), "small.txt", 10)

	doc, err := h.OpenDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}

	if got := h.Verdict(doc.ID); got != detect.StateNotBig {
		t.Errorf("expected StateNotBig, got %v", got)
	}
	if !h.Surface().Aspect(doc.ID, builtin.AspectHighlight) {
		t.Error("expected highlight untouched for small document")
	}
	if !h.Surface().GrammarActive(doc.ID) {
		t.Error("expected grammar untouched for small document")
	}
	if !h.Surface().ClientsAttached(doc.ID) {
		t.Error("expected clients untouched for small document")
	}
}

func TestHost_OpenDocument_Big(t *testing.T) {
	h := newTestHost(t, bytesThreshold)
	path := writeSized(t, t.TempDir(), "big.txt", 200)

	doc, err := h.OpenDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}

	if got := h.Verdict(doc.ID); got != detect.StateBig {
		t.Errorf("expected StateBig, got %v", got)
	}

	s := h.Surface()
	// Immediate features ran during document.opening.
	for _, aspect := range []builtin.Aspect{
		builtin.AspectHighlight,
		builtin.AspectMatchParen,
		builtin.AspectWordLight,
		builtin.AspectIndentGuides,
	} {
		if s.Aspect(doc.ID, aspect) {
			t.Errorf("expected aspect %s off", aspect)
		}
	}
	if !s.ConservativeOptions(doc.ID) {
		t.Error("expected conservative options")
	}
	// Deferred features ran during document.opened, before OpenDocument
	// returned.
	if s.GrammarActive(doc.ID) {
		t.Error("expected grammar dropped")
	}
	if s.Filetype(doc.ID) != builtin.PlainFiletype {
		t.Errorf("expected filetype '%s', got '%s'", builtin.PlainFiletype, s.Filetype(doc.ID))
	}
	if s.ClientsAttached(doc.ID) {
		t.Error("expected clients detached")
	}

	stats := h.Engine().Detector().Stats()
	if stats.Big != 1 {
		t.Errorf("expected 1 big document, got %d", stats.Big)
	}
	if stats.ImmediateDisables != 5 {
		t.Errorf("expected 5 immediate disables, got %d", stats.ImmediateDisables)
	}
	if stats.DeferredDisables != 3 {
		t.Errorf("expected 3 deferred disables, got %d", stats.DeferredDisables)
	}
	if stats.PendingDeferred != 0 {
		t.Errorf("expected no pending deferred batches, got %d", stats.PendingDeferred)
	}

	snapshot := h.Metrics().Snapshot()
	if snapshot.DocumentsOpened != 1 {
		t.Errorf("expected 1 open recorded, got %d", snapshot.DocumentsOpened)
	}
}

func TestHost_OpenDocument_Reopen(t *testing.T) {
	h := newTestHost(t, bytesThreshold)
	path := writeSized(t, t.TempDir(), "big.txt", 200)

	doc1, err := h.OpenDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	doc2, err := h.OpenDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenDocument() reopen error: %v", err)
	}

	if doc1.ID != doc2.ID {
		t.Error("expected reopen to return the same document")
	}
	// The verdict is sticky; the second pass does not classify again.
	if stats := h.Engine().Detector().Stats(); stats.Scanned != 1 {
		t.Errorf("expected 1 scan, got %d", stats.Scanned)
	}
}

func TestHost_OpenScratch(t *testing.T) {
	h := newTestHost(t, bytesThreshold)

	doc, err := h.OpenScratch(context.Background())
	if err != nil {
		t.Fatalf("OpenScratch() error: %v", err)
	}
	if doc.Backed() {
		t.Error("expected scratch document to have no backing file")
	}
	if got := h.Verdict(doc.ID); got != detect.StateNotBig {
		t.Errorf("expected StateNotBig for scratch, got %v", got)
	}
}

func TestHost_CloseDocument(t *testing.T) {
	h := newTestHost(t, bytesThreshold)
	path := writeSized(t, t.TempDir(), "big.txt", 200)

	doc, err := h.OpenDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if err := h.CloseDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("CloseDocument() error: %v", err)
	}

	if got := h.Verdict(doc.ID); got != detect.StateUnset {
		t.Errorf("expected StateUnset after close, got %v", got)
	}
	if h.Surface().Tracked() != 0 {
		t.Errorf("expected surface state dropped, %d tracked", h.Surface().Tracked())
	}
	if h.Documents().Count() != 0 {
		t.Errorf("expected 0 open documents, got %d", h.Documents().Count())
	}

	snapshot := h.Metrics().Snapshot()
	if snapshot.DocumentsClosed != 1 {
		t.Errorf("expected 1 close recorded, got %d", snapshot.DocumentsClosed)
	}
}

func TestHost_CloseDocument_NotFound(t *testing.T) {
	h := newTestHost(t, bytesThreshold)

	err := h.CloseDocument(context.Background(), "no-such-doc")
	if !errors.Is(err, document.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHost_Closed(t *testing.T) {
	h := newTestHost(t, bytesThreshold)
	h.Close()
	h.Close() // Close is idempotent

	if _, err := h.OpenDocument(context.Background(), "x.txt"); !errors.Is(err, ErrHostClosed) {
		t.Errorf("expected ErrHostClosed from OpenDocument, got %v", err)
	}
	if _, err := h.OpenScratch(context.Background()); !errors.Is(err, ErrHostClosed) {
		t.Errorf("expected ErrHostClosed from OpenScratch, got %v", err)
	}
	if err := h.CloseDocument(context.Background(), "x"); !errors.Is(err, ErrHostClosed) {
		t.Errorf("expected ErrHostClosed from CloseDocument, got %v", err)
	}
}

func TestHost_SessionReconfigure(t *testing.T) {
	h := newTestHost(t, `
[bigdoc]
filesize = 1000
filesizeUnit = "bytes"
`)
	dir := t.TempDir()

	var reloaded []string
	_, err := h.Bus().SubscribeFunc(events.TopicConfigReloaded, func(_ context.Context, ev any) error {
		e, ok := ev.(event.Event[events.ConfigReloadedPayload])
		if !ok {
			t.Errorf("unexpected event type %T", ev)
			return nil
		}
		reloaded = append(reloaded, e.Payload.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeFunc() error: %v", err)
	}

	before, err := h.OpenDocument(context.Background(), writeSized(t, dir, "a.txt", 200))
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if got := h.Verdict(before.ID); got != detect.StateNotBig {
		t.Fatalf("expected StateNotBig under 1000-byte threshold, got %v", got)
	}

	// Session overrides deliver synchronously; the engine has the new
	// threshold when SetSession returns.
	if err := h.Config().SetSession("bigdoc.filesize", 100); err != nil {
		t.Fatalf("SetSession() error: %v", err)
	}

	after, err := h.OpenDocument(context.Background(), writeSized(t, dir, "b.txt", 200))
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if got := h.Verdict(after.ID); got != detect.StateBig {
		t.Errorf("expected StateBig under 100-byte threshold, got %v", got)
	}

	// The earlier verdict is not revisited.
	if got := h.Verdict(before.ID); got != detect.StateNotBig {
		t.Errorf("expected earlier verdict to survive reconfigure, got %v", got)
	}

	if len(reloaded) != 1 {
		t.Fatalf("expected 1 config.reloaded event, got %d", len(reloaded))
	}
	if reloaded[0] != h.Config().SettingsPath() {
		t.Errorf("expected reloaded path '%s', got '%s'", h.Config().SettingsPath(), reloaded[0])
	}
	if snapshot := h.Metrics().Snapshot(); snapshot.ConfigReloads != 1 {
		t.Errorf("expected 1 config reload recorded, got %d", snapshot.ConfigReloads)
	}
}

func TestHost_Reconfigure_Rejected(t *testing.T) {
	h := newTestHost(t, bytesThreshold)
	dir := t.TempDir()

	// A snapshot the engine cannot act on is rejected; the old one stays.
	if err := h.Config().SetSession("bigdoc.filesizeUnit", "parsecs"); err != nil {
		t.Fatalf("SetSession() error: %v", err)
	}

	doc, err := h.OpenDocument(context.Background(), writeSized(t, dir, "big.txt", 200))
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if got := h.Verdict(doc.ID); got != detect.StateBig {
		t.Errorf("expected old 100-byte threshold to stay active, got %v", got)
	}
	if snapshot := h.Metrics().Snapshot(); snapshot.ConfigReloads != 0 {
		t.Errorf("expected no config reload recorded, got %d", snapshot.ConfigReloads)
	}
}

func TestHost_PredicateScript(t *testing.T) {
	// The threshold alone never triggers; the predicate marks everything
	// with any content big.
	h := newTestHost(t, `
[bigdoc]
filesize = 1000000
filesizeUnit = "bytes"
predicateScript = "return function(doc, size) return size >= 1 end"
`)
	dir := t.TempDir()

	tiny, err := h.OpenDocument(context.Background(), writeSized(t, dir, "tiny.txt", 5))
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if got := h.Verdict(tiny.ID); got != detect.StateBig {
		t.Errorf("expected predicate to mark document big, got %v", got)
	}

	empty, err := h.OpenDocument(context.Background(), writeSized(t, dir, "empty.txt", 0))
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if got := h.Verdict(empty.ID); got != detect.StateNotBig {
		t.Errorf("expected empty document not big, got %v", got)
	}
}

func TestHost_PredicateScriptFile(t *testing.T) {
	dir := t.TempDir()
	predPath := filepath.Join(dir, "pred.lua")
	if err := os.WriteFile(predPath, []byte("return function(doc, size) return size >= 1 end"), 0o644); err != nil {
		t.Fatalf("write predicate: %v", err)
	}

	h := newTestHost(t, fmt.Sprintf(`
[bigdoc]
filesize = 1000000
filesizeUnit = "bytes"
predicateScript = %q
`, predPath))

	doc, err := h.OpenDocument(context.Background(), writeSized(t, dir, "tiny.txt", 5))
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if got := h.Verdict(doc.ID); got != detect.StateBig {
		t.Errorf("expected predicate file to mark document big, got %v", got)
	}
}

func TestHost_FeatureScripts(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "minimap.lua")
	script := `
return {
	name = "minimap",
	defer = false,
	disable = function(doc)
		minimap_disabled = doc
	end,
}
`
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		t.Fatalf("write feature script: %v", err)
	}

	h := newTestHost(t, fmt.Sprintf(`
[bigdoc]
filesize = 100
filesizeUnit = "bytes"
features = ["minimap", "lsp"]
featureScripts = [%q]
`, scriptPath))

	if _, err := h.Features().Get("minimap"); err != nil {
		t.Fatalf("expected scripted feature registered: %v", err)
	}

	immediate, deferred, err := h.FeaturePlan()
	if err != nil {
		t.Fatalf("FeaturePlan() error: %v", err)
	}
	if len(immediate) != 1 || immediate[0] != "minimap" {
		t.Errorf("expected immediate [minimap], got %v", immediate)
	}
	if len(deferred) != 1 || deferred[0] != "lsp" {
		t.Errorf("expected deferred [lsp], got %v", deferred)
	}

	doc, err := h.OpenDocument(context.Background(), writeSized(t, dir, "big.txt", 200))
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if got := h.scriptState().Global("minimap_disabled").String(); got != doc.ID {
		t.Errorf("expected scripted disable to run for %s, got '%s'", doc.ID, got)
	}
}

func TestNew_FeatureScriptMissing(t *testing.T) {
	cfg := newTestConfig(t, `
[bigdoc]
filesize = 100
filesizeUnit = "bytes"
featureScripts = ["/no/such/feature.lua"]
`)

	_, err := New(Options{Config: cfg, Logger: NullLogger, Metrics: NewMetrics()})
	if err == nil {
		t.Fatal("expected New to fail on missing feature script")
	}
	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected InitError, got %T", err)
	}
	if initErr.Component != "detect" {
		t.Errorf("expected component 'detect', got '%s'", initErr.Component)
	}
}

func TestHost_SizeLookupFailure(t *testing.T) {
	cfg := newTestConfig(t, bytesThreshold)
	h, err := New(Options{
		Config:  cfg,
		Logger:  NullLogger,
		Metrics: NewMetrics(),
		Stat: func(string) (os.FileInfo, error) {
			return nil, errors.New("stat exploded")
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(h.Close)

	// A document that cannot be measured opens fine and is not big.
	doc, err := h.OpenDocument(context.Background(), "unmeasurable.txt")
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if got := h.Verdict(doc.ID); got != detect.StateNotBig {
		t.Errorf("expected StateNotBig on size failure, got %v", got)
	}
	if stats := h.Engine().Detector().Stats(); stats.SoftFailures != 1 {
		t.Errorf("expected 1 soft failure, got %d", stats.SoftFailures)
	}
}

func TestHost_FeaturePlan_Defaults(t *testing.T) {
	h := newTestHost(t, bytesThreshold)

	immediate, deferred, err := h.FeaturePlan()
	if err != nil {
		t.Fatalf("FeaturePlan() error: %v", err)
	}

	wantImmediate := []string{"highlight", "matchparen", "wordlight", "indentguides", "editoropts"}
	wantDeferred := []string{"syntax", "filetype", "lsp"}

	if len(immediate) != len(wantImmediate) {
		t.Fatalf("expected %d immediate features, got %v", len(wantImmediate), immediate)
	}
	for i, name := range wantImmediate {
		if immediate[i] != name {
			t.Errorf("immediate[%d] = '%s', expected '%s'", i, immediate[i], name)
		}
	}
	if len(deferred) != len(wantDeferred) {
		t.Fatalf("expected %d deferred features, got %v", len(wantDeferred), deferred)
	}
	for i, name := range wantDeferred {
		if deferred[i] != name {
			t.Errorf("deferred[%d] = '%s', expected '%s'", i, deferred[i], name)
		}
	}
}

func TestHost_HandlerFailuresCounted(t *testing.T) {
	h := newTestHost(t, bytesThreshold)
	dir := t.TempDir()

	_, err := h.Bus().SubscribeFunc(events.TopicDocumentOpened, func(context.Context, any) error {
		return errors.New("broken handler")
	})
	if err != nil {
		t.Fatalf("SubscribeFunc() error: %v", err)
	}
	_, err = h.Bus().SubscribeFunc(events.TopicDocumentClosed, func(context.Context, any) error {
		panic("broken handler")
	})
	if err != nil {
		t.Fatalf("SubscribeFunc() error: %v", err)
	}

	doc, err := h.OpenDocument(context.Background(), writeSized(t, dir, "a.txt", 10))
	if err != nil {
		t.Fatalf("OpenDocument() error: %v", err)
	}
	if err := h.CloseDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("CloseDocument() error: %v", err)
	}

	snapshot := h.Metrics().Snapshot()
	if snapshot.HandlerErrors != 1 {
		t.Errorf("expected 1 handler error, got %d", snapshot.HandlerErrors)
	}
	if snapshot.HandlerPanics != 1 {
		t.Errorf("expected 1 handler panic, got %d", snapshot.HandlerPanics)
	}
}
