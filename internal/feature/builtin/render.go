package builtin

import (
	"context"

	"github.com/dshills/heft/internal/feature"
)

// Render toggles a single render aspect on or off per document. The four
// render-side stock features (highlight, matchparen, wordlight,
// indentguides) are all instances of this type; none of them touch state
// established during load, so they disable immediately.
type Render struct {
	name    string
	aspect  Aspect
	surface RenderSurface
}

var (
	_ feature.Feature  = (*Render)(nil)
	_ feature.Enabler  = (*Render)(nil)
	_ feature.Detecter = (*Render)(nil)
)

// NewHighlight creates the incremental highlighting feature.
func NewHighlight(s RenderSurface) *Render {
	return &Render{name: NameHighlight, aspect: AspectHighlight, surface: s}
}

// NewMatchParen creates the bracket-match feature.
func NewMatchParen(s RenderSurface) *Render {
	return &Render{name: NameMatchParen, aspect: AspectMatchParen, surface: s}
}

// NewWordLight creates the cursor-word illumination feature.
func NewWordLight(s RenderSurface) *Render {
	return &Render{name: NameWordLight, aspect: AspectWordLight, surface: s}
}

// NewIndentGuides creates the indent-guide feature.
func NewIndentGuides(s RenderSurface) *Render {
	return &Render{name: NameIndentGuides, aspect: AspectIndentGuides, surface: s}
}

// Name returns the feature identifier.
func (r *Render) Name() string { return r.name }

// Options reports immediate dispatch.
func (r *Render) Options() feature.Options { return feature.Options{} }

// Disable switches the aspect off for the document.
func (r *Render) Disable(_ context.Context, docID string) error {
	r.surface.SetAspect(docID, r.aspect, false)
	return nil
}

// Enable switches the aspect back on.
func (r *Render) Enable(_ context.Context, docID string) error {
	r.surface.SetAspect(docID, r.aspect, true)
	return nil
}

// Detected reports whether the aspect is currently on.
func (r *Render) Detected(docID string) bool {
	return r.surface.Aspect(docID, r.aspect)
}
