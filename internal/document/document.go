// Package document tracks open documents and the files that back them.
//
// A Document is identified by an opaque ID for its whole lifetime. The
// Manager owns the open set: it hands out identities, maps paths back to
// documents, and answers byte-size questions about the backing files
// without ever reading their contents.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for document operations.
var (
	// ErrNotFound indicates the document ID is not in the open set.
	ErrNotFound = errors.New("document not found")

	// ErrNotRegularFile indicates a backing path that is not a regular file.
	ErrNotRegularFile = errors.New("not a regular file")
)

// Document is a single open document. A document may be backed by a file
// on disk or exist purely in memory (scratch documents have no Path).
type Document struct {
	ID       string
	Path     string // absolute path, empty for scratch documents
	Name     string // display name
	OpenedAt time.Time
}

// Backed reports whether the document has a file on disk behind it.
func (d *Document) Backed() bool {
	return d != nil && d.Path != ""
}

// StatFunc resolves a path to file metadata. Tests and embedded hosts can
// substitute the filesystem by supplying their own implementation.
type StatFunc func(path string) (os.FileInfo, error)

// Manager owns the set of open documents.
type Manager struct {
	mu      sync.RWMutex
	byID    map[string]*Document
	byPath  map[string]string // absolute path -> document ID
	order   []string          // document IDs in open order
	statFn  StatFunc
	scratch int
}

// Option configures a Manager.
type Option func(*Manager)

// WithStatFunc overrides how backing files are stat'd.
func WithStatFunc(fn StatFunc) Option {
	return func(m *Manager) {
		if fn != nil {
			m.statFn = fn
		}
	}
}

// NewManager creates an empty document manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		byID:   make(map[string]*Document),
		byPath: make(map[string]string),
		statFn: os.Stat,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open registers the file at path as an open document and returns it.
// Opening a path that is already open returns the existing document.
// The file does not have to exist yet; size lookups on a missing file
// report an error that callers may treat as "no size".
func (m *Manager) Open(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPath[abs]; ok {
		return m.byID[id], nil
	}

	doc := &Document{
		ID:       uuid.NewString(),
		Path:     abs,
		Name:     filepath.Base(abs),
		OpenedAt: time.Now(),
	}
	m.byID[doc.ID] = doc
	m.byPath[abs] = doc.ID
	m.order = append(m.order, doc.ID)
	return doc, nil
}

// OpenScratch creates a document with no backing file.
func (m *Manager) OpenScratch() *Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scratch++
	doc := &Document{
		ID:       uuid.NewString(),
		Name:     fmt.Sprintf("scratch-%d", m.scratch),
		OpenedAt: time.Now(),
	}
	m.byID[doc.ID] = doc
	m.order = append(m.order, doc.ID)
	return doc
}

// Close removes the document from the open set.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	delete(m.byID, id)
	if doc.Path != "" {
		delete(m.byPath, doc.Path)
	}
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the document with the given ID.
func (m *Manager) Get(id string) (*Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.byID[id]
	return doc, ok
}

// ByPath returns the open document backed by path, if any.
func (m *Manager) ByPath(path string) (*Document, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPath[abs]
	if !ok {
		return nil, false
	}
	return m.byID[id], true
}

// FileSize reports the byte size of the document's backing file.
// Scratch documents have no backing bytes and report zero. A stat
// failure is returned to the caller, who decides how much it matters.
func (m *Manager) FileSize(id string) (int64, error) {
	m.mu.RLock()
	doc, ok := m.byID[id]
	statFn := m.statFn
	m.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if !doc.Backed() {
		return 0, nil
	}

	info, err := statFn(doc.Path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", doc.Path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: %w", doc.Path, ErrNotRegularFile)
	}
	return info.Size(), nil
}

// All returns the open documents in open order.
func (m *Manager) All() []*Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*Document, 0, len(m.order))
	for _, id := range m.order {
		docs = append(docs, m.byID[id])
	}
	return docs
}

// Count returns the number of open documents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
