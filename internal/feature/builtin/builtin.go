// Package builtin provides the stock feature handlers: the editor
// capabilities that get switched off for big documents. Each handler acts
// through a narrow surface interface supplied by the host, so the package
// knows nothing about how the host actually renders or talks to language
// servers.
package builtin

import "github.com/dshills/heft/internal/feature"

// Stock feature names, as configuration refers to them.
const (
	NameSyntax       = "syntax"
	NameHighlight    = "highlight"
	NameMatchParen   = "matchparen"
	NameWordLight    = "wordlight"
	NameIndentGuides = "indentguides"
	NameEditorOpts   = "editoropts"
	NameFiletype     = "filetype"
	NameLanguage     = "lsp"
)

// PlainFiletype is the neutral filetype forced onto big documents so no
// language tooling attaches to them.
const PlainFiletype = "plaintext"

// Aspect identifies one per-document render behavior.
type Aspect string

// Render aspects the stock features toggle.
const (
	AspectHighlight    Aspect = "highlight"
	AspectMatchParen   Aspect = "matchparen"
	AspectWordLight    Aspect = "wordlight"
	AspectIndentGuides Aspect = "indentguides"
)

// RenderSurface is the per-document render state the toggle features act on.
type RenderSurface interface {
	SetAspect(docID string, aspect Aspect, on bool)
	Aspect(docID string, aspect Aspect) bool
}

// SyntaxSurface manages per-document syntax grammars.
type SyntaxSurface interface {
	DropGrammar(docID string) error
	RestoreGrammar(docID string) error
	GrammarActive(docID string) bool
}

// OptionsSurface manages per-document editor options.
type OptionsSurface interface {
	ApplyConservativeOptions(docID string)
	RestoreOptions(docID string)
	ConservativeOptions(docID string) bool
}

// FiletypeSurface manages per-document filetype assignment.
type FiletypeSurface interface {
	OverrideFiletype(docID, filetype string) error
	ClearFiletypeOverride(docID string) error
	FiletypeOverridden(docID string) bool
}

// LanguageSurface manages language client attachment per document.
type LanguageSurface interface {
	DetachClients(docID string) error
	AttachClients(docID string) error
	ClientsAttached(docID string) bool
}

// Surfaces collects the host state the stock features act on.
type Surfaces struct {
	Render   RenderSurface
	Syntax   SyntaxSurface
	Options  OptionsSurface
	Filetype FiletypeSurface
	Language LanguageSurface
}

// DefaultNames returns the stock feature names in default dispatch order.
func DefaultNames() []string {
	return []string{
		NameSyntax,
		NameHighlight,
		NameMatchParen,
		NameWordLight,
		NameIndentGuides,
		NameEditorOpts,
		NameFiletype,
		NameLanguage,
	}
}

// RegisterDefaults registers the stock features against the given
// surfaces, in default dispatch order.
func RegisterDefaults(reg *feature.Registry, s Surfaces) error {
	features := []feature.Feature{
		NewSyntax(s.Syntax),
		NewHighlight(s.Render),
		NewMatchParen(s.Render),
		NewWordLight(s.Render),
		NewIndentGuides(s.Render),
		NewEditorOptions(s.Options),
		NewFiletype(s.Filetype),
		NewLanguage(s.Language),
	}
	for _, f := range features {
		if err := reg.Register(f); err != nil {
			return err
		}
	}
	return nil
}
