package event

import (
	"sort"
	"sync"

	"github.com/dshills/heft/internal/event/topic"
)

// Registry manages subscriptions organized by topic pattern.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	subs map[topic.Topic][]*subscription
	byID map[string]*subscription
}

// NewRegistry creates a new subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[topic.Topic][]*subscription),
		byID: make(map[string]*subscription),
	}
}

// Add adds a subscription for a topic pattern.
// Subscriptions for the same pattern are kept in priority order.
func (r *Registry) Add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pattern := sub.Topic()

	subs := append(r.subs[pattern], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Config().Priority < subs[j].Config().Priority
	})
	r.subs[pattern] = subs

	r.byID[sub.ID()] = sub
}

// Remove removes a subscription by ID.
// Returns false if the subscription does not exist.
func (r *Registry) Remove(subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.byID[subID]
	if !exists {
		return false
	}

	pattern := sub.Topic()

	subs := r.subs[pattern]
	for i, s := range subs {
		if s.ID() == subID {
			r.subs[pattern] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.subs[pattern]) == 0 {
		delete(r.subs, pattern)
	}

	delete(r.byID, subID)
	return true
}

// Get returns a subscription by ID.
func (r *Registry) Get(subID string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.byID[subID]
	return sub, exists
}

// MatchActive returns the active subscriptions whose pattern matches the
// given event topic, in priority order across all matching patterns.
// The returned slice is a copy and safe to iterate while the registry changes.
func (r *Registry) MatchActive(eventTopic topic.Topic) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*subscription
	for pattern, subs := range r.subs {
		if !eventTopic.Matches(pattern) {
			continue
		}
		for _, sub := range subs {
			if sub.IsActive() {
				matched = append(matched, sub)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Config().Priority < matched[j].Config().Priority
	})
	return matched
}

// ActiveCount returns the number of active subscriptions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sub := range r.byID {
		if sub.IsActive() {
			count++
		}
	}
	return count
}

// RemoveCancelled removes all cancelled subscriptions and returns how many
// were removed.
func (r *Registry) RemoveCancelled() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, sub := range r.byID {
		if sub.IsActive() {
			continue
		}

		pattern := sub.Topic()
		subs := r.subs[pattern]
		for i, s := range subs {
			if s.ID() == id {
				r.subs[pattern] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(r.subs[pattern]) == 0 {
			delete(r.subs, pattern)
		}

		delete(r.byID, id)
		removed++
	}
	return removed
}
