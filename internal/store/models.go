// Package store provides the local persistence layer for readerkit.
// Every entity namespace is one JSON collection inside a KV key-space,
// rewritten in full on each mutation.
package store

import (
	"encoding/json"
	"time"
)

// Document is the root aggregate. Pages is only populated on reads.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PageCount int       `json:"pageCount"`
	FullText  string    `json:"fullText"`
	Pages     []Page    `json:"pages,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page is one extracted page of a document.
type Page struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"documentId"`
	Number     int      `json:"number"`
	Text       string   `json:"text"`
	Paragraphs []string `json:"paragraphs"`
}

// Chunk is a fixed-size slice of a document's text with its embedding.
// Embedding stays nil until computed.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// RankedChunk is a search hit.
type RankedChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// NodeType classifies a knowledge graph node.
type NodeType string

const (
	NodeConcept NodeType = "concept"
	NodePerson  NodeType = "person"
	NodeEvent   NodeType = "event"
	NodePlace   NodeType = "place"
	NodeTheory  NodeType = "theory"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case NodeConcept, NodePerson, NodeEvent, NodePlace, NodeTheory:
		return true
	}
	return false
}

// NodeSource records how a node came to exist.
type NodeSource string

const (
	SourceExtraction NodeSource = "extraction"
	SourceAnnotation NodeSource = "annotation"
)

// Valid reports whether s is a known node source.
func (s NodeSource) Valid() bool {
	return s == SourceExtraction || s == SourceAnnotation
}

// Node is a concept in a document's knowledge graph.
type Node struct {
	ID           string          `json:"id"`
	DocumentID   string          `json:"documentId"`
	Label        string          `json:"label"`
	Type         NodeType        `json:"type"`
	Description  string          `json:"description"`
	Source       NodeSource      `json:"source"`
	AnnotationID string          `json:"annotationId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// Edge connects two nodes of the same document.
// Source and Target are not checked against existing nodes.
type Edge struct {
	ID           string `json:"id"`
	DocumentID   string `json:"documentId"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// Graph is the node/edge set of one document.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// AnnotationType classifies a highlight.
type AnnotationType string

const (
	AnnotationNote     AnnotationType = "annotation"
	AnnotationQuestion AnnotationType = "question"
	AnnotationInsight  AnnotationType = "insight"
	AnnotationConcept  AnnotationType = "concept"
)

// Valid reports whether t is a known annotation type.
func (t AnnotationType) Valid() bool {
	switch t {
	case AnnotationNote, AnnotationQuestion, AnnotationInsight, AnnotationConcept:
		return true
	}
	return false
}

// Annotation is a user highlight on a page.
type Annotation struct {
	ID           string         `json:"id"`
	DocumentID   string         `json:"documentId"`
	Page         int            `json:"page"`
	Text         string         `json:"text"`
	Type         AnnotationType `json:"type"`
	Note         string         `json:"note"`
	ConceptLabel string         `json:"conceptLabel,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Conversation is the chat thread of one user about one document.
type Conversation struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Role identifies the author of a message.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleSystem  Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent || r == RoleSystem
}

// Message is one append-only entry of a conversation.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Role           Role            `json:"role"`
	Content        string          `json:"content"`
	AgentName      string          `json:"agentName,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// VocabularyEntry is a saved translation.
type VocabularyEntry struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"documentId"`
	Word         string     `json:"word"`
	Translation  string     `json:"translation"`
	Note         string     `json:"note"`
	Type         string     `json:"type"`
	ReviewCount  int        `json:"reviewCount"`
	LastReviewed *time.Time `json:"lastReviewed,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Settings holds free-form user preferences.
type Settings map[string]any
