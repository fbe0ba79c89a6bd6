package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Predicate is a compiled size predicate. The Lua side receives the
// document ID and the size already converted to the configured unit, and
// returns a truthy value to mark the document big.
type Predicate struct {
	state *State
	fn    *lua.LFunction
}

// CompilePredicate runs src and keeps the function it returns. The chunk
// must produce a function:
//
//	return function(doc, size)
//		return size >= 2
//	end
func CompilePredicate(state *State, src string) (*Predicate, error) {
	v, err := state.DoChunk(src)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("predicate chunk returned %s, want function: %w", v.Type(), ErrInvalidChunk)
	}
	return &Predicate{state: state, fn: fn}, nil
}

// Eval runs the predicate for one document.
func (p *Predicate) Eval(docID string, size int64) (bool, error) {
	rets, err := p.state.Call(p.fn, lua.LString(docID), lua.LNumber(size))
	if err != nil {
		return false, fmt.Errorf("predicate: %w", err)
	}
	if len(rets) == 0 {
		return false, nil
	}
	return lua.LVAsBool(rets[0]), nil
}
