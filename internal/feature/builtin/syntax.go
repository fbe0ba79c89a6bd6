package builtin

import (
	"context"

	"github.com/dshills/heft/internal/feature"
)

// Syntax drops the syntax grammar for a document. Grammar assignment
// happens while the document loads, so the disable is deferred until the
// open completes; dropping earlier would be undone by the loader.
type Syntax struct {
	surface SyntaxSurface
}

var (
	_ feature.Feature  = (*Syntax)(nil)
	_ feature.Enabler  = (*Syntax)(nil)
	_ feature.Detecter = (*Syntax)(nil)
)

// NewSyntax creates the syntax feature.
func NewSyntax(s SyntaxSurface) *Syntax {
	return &Syntax{surface: s}
}

// Name returns the feature identifier.
func (s *Syntax) Name() string { return NameSyntax }

// Options reports deferred dispatch.
func (s *Syntax) Options() feature.Options { return feature.Options{Defer: true} }

// Disable drops the document's grammar.
func (s *Syntax) Disable(_ context.Context, docID string) error {
	return s.surface.DropGrammar(docID)
}

// Enable restores the document's grammar.
func (s *Syntax) Enable(_ context.Context, docID string) error {
	return s.surface.RestoreGrammar(docID)
}

// Detected reports whether a grammar is active for the document.
func (s *Syntax) Detected(docID string) bool {
	return s.surface.GrammarActive(docID)
}
