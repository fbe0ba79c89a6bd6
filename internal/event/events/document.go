// Package events defines the document event topics and payloads shared by
// the host and the detection engine.
package events

import "github.com/dshills/heft/internal/event/topic"

// Document lifecycle topics.
const (
	// TopicDocumentOpening fires before a document's content is read.
	// Detection runs here so feature disables can land before any
	// enhancement has started work.
	TopicDocumentOpening topic.Topic = "document.opening"

	// TopicDocumentOpened fires after a document's content has been read.
	// Deferred feature disables run here.
	TopicDocumentOpened topic.Topic = "document.opened"

	// TopicDocumentClosed fires when a document is closed.
	TopicDocumentClosed topic.Topic = "document.closed"
)

// DocumentOpeningPayload accompanies TopicDocumentOpening.
type DocumentOpeningPayload struct {
	// DocumentID is the document's unique identifier.
	DocumentID string

	// Path is the absolute path of the backing file. Empty for scratch
	// documents with no backing file.
	Path string
}

// DocumentRef returns the document ID for per-document event filtering.
func (p DocumentOpeningPayload) DocumentRef() string { return p.DocumentID }

// DocumentOpenedPayload accompanies TopicDocumentOpened.
type DocumentOpenedPayload struct {
	// DocumentID is the document's unique identifier.
	DocumentID string

	// Path is the absolute path of the backing file.
	Path string

	// SizeBytes is the byte length of the content that was read.
	SizeBytes int64
}

// DocumentRef returns the document ID for per-document event filtering.
func (p DocumentOpenedPayload) DocumentRef() string { return p.DocumentID }

// DocumentClosedPayload accompanies TopicDocumentClosed.
type DocumentClosedPayload struct {
	// DocumentID is the document's unique identifier.
	DocumentID string

	// Path is the absolute path of the backing file.
	Path string
}

// DocumentRef returns the document ID for per-document event filtering.
func (p DocumentClosedPayload) DocumentRef() string { return p.DocumentID }
