package builtin

import (
	"context"

	"github.com/dshills/heft/internal/feature"
)

// Language detaches language-server clients from a document. Clients
// attach once the document has loaded, so the detach is deferred; firing
// it during the open would race the attach.
type Language struct {
	surface LanguageSurface
}

var (
	_ feature.Feature  = (*Language)(nil)
	_ feature.Enabler  = (*Language)(nil)
	_ feature.Detecter = (*Language)(nil)
)

// NewLanguage creates the language-client feature.
func NewLanguage(s LanguageSurface) *Language {
	return &Language{surface: s}
}

// Name returns the feature identifier.
func (l *Language) Name() string { return NameLanguage }

// Options reports deferred dispatch.
func (l *Language) Options() feature.Options { return feature.Options{Defer: true} }

// Disable detaches all clients from the document.
func (l *Language) Disable(_ context.Context, docID string) error {
	return l.surface.DetachClients(docID)
}

// Enable reattaches clients to the document.
func (l *Language) Enable(_ context.Context, docID string) error {
	return l.surface.AttachClients(docID)
}

// Detected reports whether clients are attached to the document.
func (l *Language) Detected(docID string) bool {
	return l.surface.ClientsAttached(docID)
}
