package remote

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/readerkit/internal/store"
)

func TestNodeMappingUsesNodeType(t *testing.T) {
	node := &store.Node{
		ID:           "n1",
		DocumentID:   "doc-1",
		Label:        "Opacity",
		Type:         store.NodeTheory,
		Description:  "Right to not be understood",
		Source:       store.SourceAnnotation,
		AnnotationID: "a1",
		Metadata:     json.RawMessage(`{"weight":2}`),
	}

	row := NodeToRow(node)
	assert.Equal(t, "theory", row.NodeType)

	raw, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"node_type":"theory"`)
	assert.NotContains(t, string(raw), `"type"`)

	var decoded NodeRow
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, node, NodeFromRow(decoded))
}

func TestMappingRoundTrips(t *testing.T) {
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	reviewed := at.Add(time.Hour)

	doc := &store.Document{ID: "doc-1", Name: "Peau noire", PageCount: 2, FullText: "...", CreatedAt: at, UpdatedAt: at}
	assert.Equal(t, doc, DocumentFromRow(DocumentToRow(doc, "user-1")))
	assert.Equal(t, "user-1", DocumentToRow(doc, "user-1").UserID)

	page := &store.Page{ID: "doc-1-page-1", DocumentID: "doc-1", Number: 1, Text: "t", Paragraphs: []string{"a", "b"}}
	assert.Equal(t, *page, PageFromRow(PageToRow(page)))

	chunk := &store.Chunk{ID: "c1", DocumentID: "doc-1", Index: 3, Text: "t", Embedding: []float32{0.1, 0.2}}
	assert.Equal(t, chunk, ChunkFromRow(ChunkToRow(chunk)))

	edge := &store.Edge{ID: "e1", DocumentID: "doc-1", Source: "n1", Target: "n2", Relationship: "critiques"}
	assert.Equal(t, edge, EdgeFromRow(EdgeToRow(edge)))
	assert.Equal(t, "n1", EdgeToRow(edge).SourceNodeID)

	ann := &store.Annotation{ID: "a1", DocumentID: "doc-1", Page: 4, Text: "sel", Type: store.AnnotationConcept, Note: "n", ConceptLabel: "Negritude", CreatedAt: at, UpdatedAt: at}
	assert.Equal(t, ann, AnnotationFromRow(AnnotationToRow(ann, "user-1")))

	conv := &store.Conversation{ID: "conv_1", DocumentID: "doc-1", UserID: "user-1", CreatedAt: at, UpdatedAt: at}
	assert.Equal(t, conv, ConversationFromRow(ConversationToRow(conv)))

	msg := &store.Message{ID: "msg_1", ConversationID: "conv_1", Role: store.RoleTeacher, Content: "c", AgentName: "Fanon", Metadata: json.RawMessage(`{}`), CreatedAt: at}
	assert.Equal(t, msg, MessageFromRow(MessageToRow(msg)))

	vocab := &store.VocabularyEntry{ID: "v1", DocumentID: "doc-1", Word: "autrui", Translation: "others", Note: "n", Type: "philosophical", ReviewCount: 2, LastReviewed: &reviewed, CreatedAt: at}
	assert.Equal(t, vocab, VocabularyFromRow(VocabularyToRow(vocab, "user-1")))
	assert.Equal(t, "philosophical", VocabularyToRow(vocab, "user-1").WordType)

	settings := store.Settings{"theme": "dark"}
	assert.Equal(t, settings, SettingsFromRow(SettingsToRow(settings, "user-1", at)))
	assert.Equal(t, store.Settings{}, SettingsFromRow(SettingsToRow(nil, "user-1", at)))
}

func TestVectorText(t *testing.T) {
	assert.Nil(t, vectorText(nil))

	s := vectorText([]float32{0.5, -1, 2})
	require.NotNil(t, s)
	assert.Equal(t, "[0.5,-1,2]", *s)

	back, err := parseVector(s)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, back)

	bad := "[1,x]"
	_, err = parseVector(&bad)
	assert.Error(t, err)
}
