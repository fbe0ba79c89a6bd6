package builtin

import (
	"context"

	"github.com/dshills/heft/internal/feature"
)

// EditorOptions swaps a document onto conservative editor options: the
// host is expected to cut undo history, folding, and similar per-document
// costs. Options apply before load finishes, so dispatch is immediate.
type EditorOptions struct {
	surface OptionsSurface
}

var (
	_ feature.Feature  = (*EditorOptions)(nil)
	_ feature.Enabler  = (*EditorOptions)(nil)
	_ feature.Detecter = (*EditorOptions)(nil)
)

// NewEditorOptions creates the editor-options feature.
func NewEditorOptions(s OptionsSurface) *EditorOptions {
	return &EditorOptions{surface: s}
}

// Name returns the feature identifier.
func (e *EditorOptions) Name() string { return NameEditorOpts }

// Options reports immediate dispatch.
func (e *EditorOptions) Options() feature.Options { return feature.Options{} }

// Disable applies the conservative option set to the document.
func (e *EditorOptions) Disable(_ context.Context, docID string) error {
	e.surface.ApplyConservativeOptions(docID)
	return nil
}

// Enable restores the host's default options.
func (e *EditorOptions) Enable(_ context.Context, docID string) error {
	e.surface.RestoreOptions(docID)
	return nil
}

// Detected reports whether the document still runs on default options.
func (e *EditorOptions) Detected(docID string) bool {
	return !e.surface.ConservativeOptions(docID)
}
