package detect

import "sync"

// State is a document's detection verdict.
type State uint8

// Verdicts.
const (
	// StateUnset means the document has not been classified yet.
	StateUnset State = iota

	// StateNotBig means the document was classified under the threshold.
	StateNotBig

	// StateBig means the document was classified big and its feature
	// disables were dispatched.
	StateBig
)

// String returns the verdict name.
func (s State) String() string {
	switch s {
	case StateNotBig:
		return "notbig"
	case StateBig:
		return "big"
	default:
		return "unset"
	}
}

// Decided reports whether the verdict is terminal.
func (s State) Decided() bool {
	return s != StateUnset
}

// stateTable records verdicts per document. A verdict is terminal for the
// document's lifetime; forget drops the row when the document closes.
type stateTable struct {
	mu sync.RWMutex
	m  map[string]State
}

func newStateTable() *stateTable {
	return &stateTable{m: make(map[string]State)}
}

func (t *stateTable) get(docID string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m[docID]
}

func (t *stateTable) set(docID string, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[docID] = s
}

func (t *stateTable) forget(docID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, docID)
}

func (t *stateTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
