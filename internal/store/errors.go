package store

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a malformed record. Nothing was persisted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLocalWrite indicates the local key-space rejected a write
	// (quota, serialisation). There is no further fallback.
	ErrLocalWrite = errors.New("local write failed")
)

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, reason)
}

// ValidateDocument checks a document before it is saved.
func ValidateDocument(doc *Document) error {
	if doc == nil || doc.ID == "" {
		return invalid("document.id", "is required")
	}
	if doc.PageCount < 0 {
		return invalid("document.pageCount", "must be >= 0")
	}
	return nil
}

// ValidatePage checks a page before it is saved.
func ValidatePage(page *Page) error {
	if page == nil || page.DocumentID == "" {
		return invalid("page.documentId", "is required")
	}
	if page.Number < 1 {
		return invalid("page.number", "must be >= 1")
	}
	return nil
}

// ValidateChunk checks a chunk before it is saved.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil || chunk.ID == "" {
		return invalid("chunk.id", "is required")
	}
	if chunk.DocumentID == "" {
		return invalid("chunk.documentId", "is required")
	}
	if chunk.Index < 0 {
		return invalid("chunk.index", "must be >= 0")
	}
	return nil
}

// ValidateNode checks a node before it is saved.
func ValidateNode(node *Node) error {
	if node == nil || node.ID == "" {
		return invalid("node.id", "is required")
	}
	if node.DocumentID == "" {
		return invalid("node.documentId", "is required")
	}
	if !node.Type.Valid() {
		return invalid("node.type", fmt.Sprintf("%q is unknown", node.Type))
	}
	if !node.Source.Valid() {
		return invalid("node.source", fmt.Sprintf("%q is unknown", node.Source))
	}
	return nil
}

// ValidateEdge checks an edge before it is saved.
// Endpoints are not resolved against stored nodes.
func ValidateEdge(edge *Edge) error {
	if edge == nil || edge.ID == "" {
		return invalid("edge.id", "is required")
	}
	if edge.DocumentID == "" {
		return invalid("edge.documentId", "is required")
	}
	if edge.Source == "" || edge.Target == "" {
		return invalid("edge.source/target", "are required")
	}
	return nil
}

// ValidateAnnotation checks an annotation before it is saved.
func ValidateAnnotation(a *Annotation) error {
	if a == nil || a.ID == "" {
		return invalid("annotation.id", "is required")
	}
	if a.DocumentID == "" {
		return invalid("annotation.documentId", "is required")
	}
	if a.Text == "" {
		return invalid("annotation.text", "must not be empty")
	}
	if !a.Type.Valid() {
		return invalid("annotation.type", fmt.Sprintf("%q is unknown", a.Type))
	}
	return nil
}

// ValidateMessage checks a message before it is appended.
func ValidateMessage(m *Message) error {
	if m == nil || m.ConversationID == "" {
		return invalid("message.conversationId", "is required")
	}
	if !m.Role.Valid() {
		return invalid("message.role", fmt.Sprintf("%q is unknown", m.Role))
	}
	return nil
}

// ValidateVocabulary checks a vocabulary entry before it is saved.
func ValidateVocabulary(v *VocabularyEntry) error {
	if v == nil || v.ID == "" {
		return invalid("vocabulary.id", "is required")
	}
	if v.ReviewCount < 0 {
		return invalid("vocabulary.reviewCount", "must be >= 0")
	}
	return nil
}
