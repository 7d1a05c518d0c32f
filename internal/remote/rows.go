package remote

import (
	"encoding/json"
	"time"

	"github.com/kittclouds/readerkit/internal/store"
)

// Row types mirror the remote tables column for column. The JSON form of a
// row is also the payload stored in the sync queue.

type DocumentRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	PageCount int       `json:"page_count"`
	FullText  string    `json:"full_text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PageRow struct {
	ID          string   `json:"id"`
	DocumentID  string   `json:"document_id"`
	PageNumber  int      `json:"page_number"`
	TextContent string   `json:"text_content"`
	Paragraphs  []string `json:"paragraphs"`
}

type ChunkRow struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	ChunkIndex  int       `json:"chunk_index"`
	TextContent string    `json:"text_content"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// ChunkMatchRow is one row returned by the search_chunks function.
type ChunkMatchRow struct {
	ChunkRow
	Similarity float64 `json:"similarity"`
}

type NodeRow struct {
	ID           string          `json:"id"`
	DocumentID   string          `json:"document_id"`
	Label        string          `json:"label"`
	NodeType     string          `json:"node_type"`
	Description  string          `json:"description"`
	Source       string          `json:"source"`
	AnnotationID string          `json:"annotation_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

type EdgeRow struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	SourceNodeID string `json:"source_node_id"`
	TargetNodeID string `json:"target_node_id"`
	Relationship string `json:"relationship"`
}

type AnnotationRow struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	UserID         string    `json:"user_id"`
	PageNumber     int       `json:"page_number"`
	SelectedText   string    `json:"selected_text"`
	AnnotationType string    `json:"annotation_type"`
	Note           string    `json:"note"`
	ConceptLabel   string    `json:"concept_label,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ConversationRow struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type MessageRow struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	AgentName      string          `json:"agent_name,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type VocabularyRow struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id"`
	UserID       string     `json:"user_id"`
	Word         string     `json:"word"`
	Translation  string     `json:"translation"`
	Note         string     `json:"note"`
	WordType     string     `json:"word_type"`
	ReviewCount  int        `json:"review_count"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type SettingsRow struct {
	UserID      string         `json:"user_id"`
	Preferences store.Settings `json:"preferences"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// =============================================================================
// Mapping
// =============================================================================

func DocumentToRow(d *store.Document, userID string) DocumentRow {
	return DocumentRow{
		ID:        d.ID,
		UserID:    userID,
		Name:      d.Name,
		PageCount: d.PageCount,
		FullText:  d.FullText,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func DocumentFromRow(r DocumentRow) *store.Document {
	return &store.Document{
		ID:        r.ID,
		Name:      r.Name,
		PageCount: r.PageCount,
		FullText:  r.FullText,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func PageToRow(p *store.Page) PageRow {
	return PageRow{
		ID:          p.ID,
		DocumentID:  p.DocumentID,
		PageNumber:  p.Number,
		TextContent: p.Text,
		Paragraphs:  p.Paragraphs,
	}
}

func PageFromRow(r PageRow) store.Page {
	return store.Page{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		Number:     r.PageNumber,
		Text:       r.TextContent,
		Paragraphs: r.Paragraphs,
	}
}

func ChunkToRow(c *store.Chunk) ChunkRow {
	return ChunkRow{
		ID:          c.ID,
		DocumentID:  c.DocumentID,
		ChunkIndex:  c.Index,
		TextContent: c.Text,
		Embedding:   c.Embedding,
	}
}

func ChunkFromRow(r ChunkRow) *store.Chunk {
	return &store.Chunk{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		Index:      r.ChunkIndex,
		Text:       r.TextContent,
		Embedding:  r.Embedding,
	}
}

func RankedChunkFromRow(r ChunkMatchRow) store.RankedChunk {
	return store.RankedChunk{Chunk: *ChunkFromRow(r.ChunkRow), Similarity: r.Similarity}
}

func NodeToRow(n *store.Node) NodeRow {
	return NodeRow{
		ID:           n.ID,
		DocumentID:   n.DocumentID,
		Label:        n.Label,
		NodeType:     string(n.Type),
		Description:  n.Description,
		Source:       string(n.Source),
		AnnotationID: n.AnnotationID,
		Metadata:     n.Metadata,
	}
}

func NodeFromRow(r NodeRow) *store.Node {
	return &store.Node{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		Label:        r.Label,
		Type:         store.NodeType(r.NodeType),
		Description:  r.Description,
		Source:       store.NodeSource(r.Source),
		AnnotationID: r.AnnotationID,
		Metadata:     r.Metadata,
	}
}

func EdgeToRow(e *store.Edge) EdgeRow {
	return EdgeRow{
		ID:           e.ID,
		DocumentID:   e.DocumentID,
		SourceNodeID: e.Source,
		TargetNodeID: e.Target,
		Relationship: e.Relationship,
	}
}

func EdgeFromRow(r EdgeRow) *store.Edge {
	return &store.Edge{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		Source:       r.SourceNodeID,
		Target:       r.TargetNodeID,
		Relationship: r.Relationship,
	}
}

func AnnotationToRow(a *store.Annotation, userID string) AnnotationRow {
	return AnnotationRow{
		ID:             a.ID,
		DocumentID:     a.DocumentID,
		UserID:         userID,
		PageNumber:     a.Page,
		SelectedText:   a.Text,
		AnnotationType: string(a.Type),
		Note:           a.Note,
		ConceptLabel:   a.ConceptLabel,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func AnnotationFromRow(r AnnotationRow) *store.Annotation {
	return &store.Annotation{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		Page:         r.PageNumber,
		Text:         r.SelectedText,
		Type:         store.AnnotationType(r.AnnotationType),
		Note:         r.Note,
		ConceptLabel: r.ConceptLabel,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func ConversationToRow(c *store.Conversation) ConversationRow {
	return ConversationRow{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		UserID:     c.UserID,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func ConversationFromRow(r ConversationRow) *store.Conversation {
	return &store.Conversation{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		UserID:     r.UserID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func MessageToRow(m *store.Message) MessageRow {
	return MessageRow{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		AgentName:      m.AgentName,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
}

func MessageFromRow(r MessageRow) *store.Message {
	return &store.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           store.Role(r.Role),
		Content:        r.Content,
		AgentName:      r.AgentName,
		Metadata:       r.Metadata,
		CreatedAt:      r.CreatedAt,
	}
}

func VocabularyToRow(v *store.VocabularyEntry, userID string) VocabularyRow {
	return VocabularyRow{
		ID:           v.ID,
		DocumentID:   v.DocumentID,
		UserID:       userID,
		Word:         v.Word,
		Translation:  v.Translation,
		Note:         v.Note,
		WordType:     v.Type,
		ReviewCount:  v.ReviewCount,
		LastReviewed: v.LastReviewed,
		CreatedAt:    v.CreatedAt,
	}
}

func VocabularyFromRow(r VocabularyRow) *store.VocabularyEntry {
	return &store.VocabularyEntry{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		Word:         r.Word,
		Translation:  r.Translation,
		Note:         r.Note,
		Type:         r.WordType,
		ReviewCount:  r.ReviewCount,
		LastReviewed: r.LastReviewed,
		CreatedAt:    r.CreatedAt,
	}
}

func SettingsToRow(s store.Settings, userID string, at time.Time) SettingsRow {
	if s == nil {
		s = store.Settings{}
	}
	return SettingsRow{UserID: userID, Preferences: s, UpdatedAt: at}
}

func SettingsFromRow(r SettingsRow) store.Settings {
	if r.Preferences == nil {
		return store.Settings{}
	}
	return r.Preferences
}
