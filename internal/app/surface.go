package app

import (
	"sync"

	"github.com/dshills/heft/internal/feature/builtin"
)

// FeatureSurface is the host-side state the stock features act on: one
// row per document tracking which render aspects are off, whether the
// grammar was dropped, whether conservative options apply, the filetype
// override, and language client attachment. Embedding editors replace it
// with adapters onto their real subsystems; the surface here is what the
// headless host and the tests run against.
//
// Documents start with everything on. Rows are created on first write
// and dropped by Forget when the document closes.
type FeatureSurface struct {
	mu   sync.Mutex
	docs map[string]*featureState
}

// featureState is one document's feature switches.
type featureState struct {
	aspectsOff   map[builtin.Aspect]bool
	grammarOff   bool
	conservative bool
	filetype     string // override, empty when detection applies
	detached     bool
}

// Compile-time interface checks.
var (
	_ builtin.RenderSurface   = (*FeatureSurface)(nil)
	_ builtin.SyntaxSurface   = (*FeatureSurface)(nil)
	_ builtin.OptionsSurface  = (*FeatureSurface)(nil)
	_ builtin.FiletypeSurface = (*FeatureSurface)(nil)
	_ builtin.LanguageSurface = (*FeatureSurface)(nil)
)

// NewFeatureSurface creates an empty surface.
func NewFeatureSurface() *FeatureSurface {
	return &FeatureSurface{
		docs: make(map[string]*featureState),
	}
}

// Surfaces returns the surface wired into every stock-feature slot.
func (s *FeatureSurface) Surfaces() builtin.Surfaces {
	return builtin.Surfaces{
		Render:   s,
		Syntax:   s,
		Options:  s,
		Filetype: s,
		Language: s,
	}
}

// state returns the document's row, creating it if needed.
// Caller holds s.mu.
func (s *FeatureSurface) state(docID string) *featureState {
	st, ok := s.docs[docID]
	if !ok {
		st = &featureState{aspectsOff: make(map[builtin.Aspect]bool)}
		s.docs[docID] = st
	}
	return st
}

// SetAspect switches a render aspect on or off for a document.
func (s *FeatureSurface) SetAspect(docID string, aspect builtin.Aspect, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).aspectsOff[aspect] = !on
}

// Aspect reports whether a render aspect is on. Documents the surface has
// never seen report everything on.
func (s *FeatureSurface) Aspect(docID string, aspect builtin.Aspect) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.docs[docID]
	if !ok {
		return true
	}
	return !st.aspectsOff[aspect]
}

// DropGrammar clears the document's syntax grammar.
func (s *FeatureSurface) DropGrammar(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).grammarOff = true
	return nil
}

// RestoreGrammar reinstates the document's syntax grammar.
func (s *FeatureSurface) RestoreGrammar(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).grammarOff = false
	return nil
}

// GrammarActive reports whether the document has a grammar.
func (s *FeatureSurface) GrammarActive(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.docs[docID]
	if !ok {
		return true
	}
	return !st.grammarOff
}

// ApplyConservativeOptions puts the document on the reduced option set.
func (s *FeatureSurface) ApplyConservativeOptions(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).conservative = true
}

// RestoreOptions puts the document back on default options.
func (s *FeatureSurface) RestoreOptions(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).conservative = false
}

// ConservativeOptions reports whether the reduced option set applies.
func (s *FeatureSurface) ConservativeOptions(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.docs[docID]
	if !ok {
		return false
	}
	return st.conservative
}

// OverrideFiletype pins the document to the given filetype.
func (s *FeatureSurface) OverrideFiletype(docID, filetype string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).filetype = filetype
	return nil
}

// ClearFiletypeOverride removes the pin so detection applies again.
func (s *FeatureSurface) ClearFiletypeOverride(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).filetype = ""
	return nil
}

// FiletypeOverridden reports whether the document's filetype is pinned.
func (s *FeatureSurface) FiletypeOverridden(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.docs[docID]
	if !ok {
		return false
	}
	return st.filetype != ""
}

// Filetype returns the pinned filetype, or empty when detection applies.
func (s *FeatureSurface) Filetype(docID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.docs[docID]
	if !ok {
		return ""
	}
	return st.filetype
}

// DetachClients disconnects language clients from the document.
func (s *FeatureSurface) DetachClients(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).detached = true
	return nil
}

// AttachClients reconnects language clients to the document.
func (s *FeatureSurface) AttachClients(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(docID).detached = false
	return nil
}

// ClientsAttached reports whether language clients are attached.
func (s *FeatureSurface) ClientsAttached(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.docs[docID]
	if !ok {
		return true
	}
	return !st.detached
}

// Forget drops the document's row. Hosts call this when the document
// closes so surface state stays scoped to open documents.
func (s *FeatureSurface) Forget(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
}

// Tracked returns the number of documents with surface state.
func (s *FeatureSurface) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
