package builtin

import (
	"context"

	"github.com/dshills/heft/internal/feature"
)

// Filetype pins a document to the plain filetype so no language tooling
// attaches to it. Filetype detection runs during load, so the override is
// deferred until the open completes.
type Filetype struct {
	surface FiletypeSurface
}

var (
	_ feature.Feature  = (*Filetype)(nil)
	_ feature.Enabler  = (*Filetype)(nil)
	_ feature.Detecter = (*Filetype)(nil)
)

// NewFiletype creates the filetype feature.
func NewFiletype(s FiletypeSurface) *Filetype {
	return &Filetype{surface: s}
}

// Name returns the feature identifier.
func (f *Filetype) Name() string { return NameFiletype }

// Options reports deferred dispatch.
func (f *Filetype) Options() feature.Options { return feature.Options{Defer: true} }

// Disable overrides the detected filetype with the plain one.
func (f *Filetype) Disable(_ context.Context, docID string) error {
	return f.surface.OverrideFiletype(docID, PlainFiletype)
}

// Enable clears the override so detection applies again.
func (f *Filetype) Enable(_ context.Context, docID string) error {
	return f.surface.ClearFiletypeOverride(docID)
}

// Detected reports whether filetype detection is still in effect.
func (f *Filetype) Detected(docID string) bool {
	return !f.surface.FiletypeOverridden(docID)
}
