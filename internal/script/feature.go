package script

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/heft/internal/feature"
)

// Feature is a feature handler written in Lua. The chunk returns a table
// describing the handler:
//
//	return {
//		name = "minimap",
//		defer = true,
//		disable = function(doc) ... end,
//		enable = function(doc) ... end,   -- optional
//		detected = function(doc) ... end, -- optional
//	}
type Feature struct {
	state    *State
	name     string
	opts     feature.Options
	disable  *lua.LFunction
	enable   *lua.LFunction
	detected *lua.LFunction
}

var (
	_ feature.Feature  = (*Feature)(nil)
	_ feature.Enabler  = (*Feature)(nil)
	_ feature.Detecter = (*Feature)(nil)
)

// LoadFeature runs src and builds a feature from the table it returns.
func LoadFeature(state *State, src string) (*Feature, error) {
	v, err := state.DoChunk(src)
	if err != nil {
		return nil, err
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("feature chunk returned %s, want table: %w", v.Type(), ErrInvalidChunk)
	}

	f := &Feature{state: state}

	name, ok := tbl.RawGetString("name").(lua.LString)
	if !ok || name == "" {
		return nil, fmt.Errorf("feature table needs a name: %w", ErrInvalidChunk)
	}
	f.name = string(name)

	f.opts.Defer = lua.LVAsBool(tbl.RawGetString("defer"))

	f.disable, ok = tbl.RawGetString("disable").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("feature %q needs a disable function: %w", f.name, ErrInvalidChunk)
	}
	if fn, ok := tbl.RawGetString("enable").(*lua.LFunction); ok {
		f.enable = fn
	}
	if fn, ok := tbl.RawGetString("detected").(*lua.LFunction); ok {
		f.detected = fn
	}
	return f, nil
}

// Name returns the scripted feature's identifier.
func (f *Feature) Name() string { return f.name }

// Options reports the dispatch options from the feature table.
func (f *Feature) Options() feature.Options { return f.opts }

// Disable calls the table's disable function. Lua execution cannot be
// interrupted, so the context is not consulted.
func (f *Feature) Disable(_ context.Context, docID string) error {
	if _, err := f.state.Call(f.disable, lua.LString(docID)); err != nil {
		return fmt.Errorf("disable %s: %w", f.name, err)
	}
	return nil
}

// Enable calls the table's enable function if the chunk defined one.
func (f *Feature) Enable(_ context.Context, docID string) error {
	if f.enable == nil {
		return fmt.Errorf("enable %s: %w", f.name, ErrNotSupported)
	}
	if _, err := f.state.Call(f.enable, lua.LString(docID)); err != nil {
		return fmt.Errorf("enable %s: %w", f.name, err)
	}
	return nil
}

// Detected calls the table's detected function. Features without one, and
// calls that fail, report false.
func (f *Feature) Detected(docID string) bool {
	if f.detected == nil {
		return false
	}
	rets, err := f.state.Call(f.detected, lua.LString(docID))
	if err != nil || len(rets) == 0 {
		return false
	}
	return lua.LVAsBool(rets[0])
}
