// Package feature defines the contract between the detection engine and
// the editor capabilities it can switch off, plus the name registry that
// configuration strings resolve through.
package feature

import "context"

// Options describe how a feature wants to be dispatched.
type Options struct {
	// Defer delays the disable until the document has finished opening.
	// Features that interact with state established during load (syntax
	// grammars, filetype detection, language clients) set this.
	Defer bool
}

// Feature is a single switchable editor capability.
//
// Disable must be idempotent. The engine dispatches at most once per
// document, but hosts may also disable features on their own.
type Feature interface {
	// Name is the identifier configuration refers to.
	Name() string

	// Options reports how this feature is dispatched.
	Options() Options

	// Disable turns the feature off for one document.
	Disable(ctx context.Context, docID string) error
}

// Enabler is implemented by features that can be switched back on.
type Enabler interface {
	Enable(ctx context.Context, docID string) error
}

// Detecter is implemented by features that can report whether they are
// currently active for a document.
type Detecter interface {
	Detected(docID string) bool
}

// Func adapts a plain function into a Feature. Useful for tests and
// one-off host features.
type Func struct {
	name    string
	opts    Options
	disable func(ctx context.Context, docID string) error
}

// NewFunc builds a Feature from a disable function.
func NewFunc(name string, opts Options, disable func(ctx context.Context, docID string) error) *Func {
	return &Func{name: name, opts: opts, disable: disable}
}

// Name returns the feature identifier.
func (f *Func) Name() string { return f.name }

// Options returns the dispatch options.
func (f *Func) Options() Options { return f.opts }

// Disable invokes the wrapped function.
func (f *Func) Disable(ctx context.Context, docID string) error {
	if f.disable == nil {
		return nil
	}
	return f.disable(ctx, docID)
}
