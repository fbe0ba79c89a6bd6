package feature

import (
	"fmt"
	"sync"
)

// Registry maps feature names to their handlers. Registration order is
// preserved so hosts report their feature set deterministically.
type Registry struct {
	mu       sync.RWMutex
	features map[string]Feature
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		features: make(map[string]Feature),
	}
}

// Register adds a feature under its own name.
func (r *Registry) Register(f Feature) error {
	if f == nil {
		return ErrNilFeature
	}
	name := f.Name()
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.features[name]; exists {
		return fmt.Errorf("%q: %w", name, ErrDuplicateFeature)
	}
	r.features[name] = f
	r.order = append(r.order, name)
	return nil
}

// Unregister removes a feature by name. It reports whether the name was
// registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.features[name]; !exists {
		return false
	}
	delete(r.features, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get resolves a configured name to its feature.
func (r *Registry) Get(name string) (Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.features[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownFeature)
	}
	return f, nil
}

// Has reports whether a name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.features[name]
	return ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered features.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.features)
}
