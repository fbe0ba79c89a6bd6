package event

// DocumentRef is implemented by payloads that reference a document.
// FilterDocument uses it to scope subscriptions to a single document.
type DocumentRef interface {
	DocumentRef() string
}

// PayloadProvider is implemented by events exposing a type-erased payload.
type PayloadProvider interface {
	EventPayload() any
}

// FilterDocument returns a filter that allows only events whose payload
// references the given document.
func FilterDocument(docID string) FilterFunc {
	return func(event any) bool {
		p, ok := event.(PayloadProvider)
		if !ok {
			return false
		}
		ref, ok := p.EventPayload().(DocumentRef)
		if !ok {
			return false
		}
		return ref.DocumentRef() == docID
	}
}

// FilterAnd combines filters; all must allow the event.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(event any) bool {
		for _, f := range filters {
			if !f(event) {
				return false
			}
		}
		return true
	}
}

// FilterAny combines filters; at least one must allow the event.
func FilterAny(filters ...FilterFunc) FilterFunc {
	return func(event any) bool {
		for _, f := range filters {
			if f(event) {
				return true
			}
		}
		return false
	}
}

// FilterNot inverts a filter.
func FilterNot(f FilterFunc) FilterFunc {
	return func(event any) bool {
		return !f(event)
	}
}
