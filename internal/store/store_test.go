package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// KV Factory for Testing All Implementations
// =============================================================================

// kvFactory creates a key-space for testing.
// Every KV implementation runs the same suite.
type kvFactory func() (KV, error)

func memKVFactory() (KV, error) {
	return NewMemKV(), nil
}

func sqliteKVFactory() (KV, error) {
	return NewSQLiteKV()
}

func fsKVFactory() (KV, error) {
	fs, err := mem.NewFS()
	if err != nil {
		return nil, err
	}
	return NewFSKV(fs), nil
}

// runTestsForAllStores runs a test function against every KV implementation.
func runTestsForAllStores(t *testing.T, testName string, testFn func(t *testing.T, kv KV)) {
	factories := map[string]kvFactory{
		"MemKV":    memKVFactory,
		"SQLiteKV": sqliteKVFactory,
		"FSKV":     fsKVFactory,
	}

	for name, factory := range factories {
		t.Run(name+"/"+testName, func(t *testing.T) {
			kv, err := factory()
			require.NoError(t, err, "Failed to create key-space")
			defer kv.Close()
			testFn(t, kv)
		})
	}
}

// runLocalTests runs a test function against a Local over every KV.
func runLocalTests(t *testing.T, testName string, testFn func(t *testing.T, l *Local)) {
	runTestsForAllStores(t, testName, func(t *testing.T, kv KV) {
		testFn(t, NewLocal(kv))
	})
}

// =============================================================================
// KV Tests
// =============================================================================

func TestKVPutGetDelete(t *testing.T) {
	runTestsForAllStores(t, "PutGetDelete", func(t *testing.T, kv KV) {
		got, err := kv.Get("documents")
		require.NoError(t, err, "Get for missing key should not error")
		assert.Nil(t, got)

		require.NoError(t, kv.Put("documents", []byte(`[{"id":"doc-1"}]`)))
		got, err = kv.Get("documents")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"doc-1"}]`, string(got))

		require.NoError(t, kv.Put("documents", []byte(`[]`)))
		got, err = kv.Get("documents")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(got))

		require.NoError(t, kv.Delete("documents"))
		got, err = kv.Get("documents")
		require.NoError(t, err)
		assert.Nil(t, got)

		// Deleting a missing key is not an error
		require.NoError(t, kv.Delete("documents"))
	})
}

func TestKVKeys(t *testing.T) {
	runTestsForAllStores(t, "Keys", func(t *testing.T, kv KV) {
		require.NoError(t, kv.Put("pages", []byte(`[]`)))
		require.NoError(t, kv.Put("chunks", []byte(`[]`)))

		keys, err := kv.Keys()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"pages", "chunks"}, keys)
	})
}

// =============================================================================
// Document Tests
// =============================================================================

func TestDocumentUpsertIsIdempotent(t *testing.T) {
	runLocalTests(t, "DocumentUpsert", func(t *testing.T, l *Local) {
		ctx := context.Background()
		doc := &Document{ID: "doc-1", Name: "Meditations", PageCount: 3, FullText: "..."}
		require.NoError(t, l.SaveDocument(ctx, doc))

		doc.Name = "Meditations (annotated)"
		doc.PageCount = 4
		require.NoError(t, l.SaveDocument(ctx, doc))

		docs, err := l.GetDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Meditations (annotated)", docs[0].Name)
		assert.Equal(t, 4, docs[0].PageCount)
	})
}

func TestDocumentWithPages(t *testing.T) {
	runLocalTests(t, "DocumentWithPages", func(t *testing.T, l *Local) {
		ctx := context.Background()
		require.NoError(t, l.SaveDocument(ctx, &Document{
			ID:    "doc-1",
			Name:  "Essais",
			Pages: []Page{{ID: "ignored", DocumentID: "doc-1", Number: 1}},
		}))
		for _, n := range []int{2, 1, 3} {
			require.NoError(t, l.SavePage(ctx, &Page{
				ID:         fmt.Sprintf("doc-1-page-%d", n),
				DocumentID: "doc-1",
				Number:     n,
				Text:       fmt.Sprintf("page %d", n),
				Paragraphs: []string{"p1", "p2"},
			}))
		}
		require.NoError(t, l.SavePage(ctx, &Page{ID: "doc-2-page-1", DocumentID: "doc-2", Number: 1}))

		doc, err := l.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		require.NotNil(t, doc)
		require.Len(t, doc.Pages, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{doc.Pages[0].Number, doc.Pages[1].Number, doc.Pages[2].Number})
		assert.Equal(t, []string{"p1", "p2"}, doc.Pages[0].Paragraphs)
	})
}

func TestDocumentGetNotFound(t *testing.T) {
	runLocalTests(t, "DocumentNotFound", func(t *testing.T, l *Local) {
		doc, err := l.GetDocument(context.Background(), "nonexistent")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})
}

func TestDocumentsNewestFirst(t *testing.T) {
	runLocalTests(t, "DocumentsNewestFirst", func(t *testing.T, l *Local) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, l.SaveDocument(ctx, &Document{ID: "old", CreatedAt: base}))
		require.NoError(t, l.SaveDocument(ctx, &Document{ID: "new", CreatedAt: base.Add(2 * time.Hour)}))
		require.NoError(t, l.SaveDocument(ctx, &Document{ID: "mid", CreatedAt: base.Add(time.Hour)}))

		docs, err := l.GetDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "new", docs[0].ID)
		assert.Equal(t, "mid", docs[1].ID)
		assert.Equal(t, "old", docs[2].ID)
	})
}

func TestDeleteDocumentCascades(t *testing.T) {
	runLocalTests(t, "DeleteCascade", func(t *testing.T, l *Local) {
		ctx := context.Background()
		seedDocument(t, l, "doc-1")
		seedDocument(t, l, "doc-2")

		require.NoError(t, l.DeleteDocument(ctx, "doc-1"))

		doc, err := l.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Nil(t, doc)

		assertNoResidue(t, l.KV(), "doc-1")

		// The sibling document is untouched
		other, err := l.GetDocument(ctx, "doc-2")
		require.NoError(t, err)
		require.NotNil(t, other)
		assert.Len(t, other.Pages, 1)
		graph, err := l.GetGraph(ctx, "doc-2")
		require.NoError(t, err)
		assert.Len(t, graph.Nodes, 2)
		assert.Len(t, graph.Edges, 1)
		conv, err := l.FindConversation(ctx, "doc-2", "user-1")
		require.NoError(t, err)
		require.NotNil(t, conv)
		msgs, err := l.GetMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})
}

func seedDocument(t *testing.T, l *Local, docID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, l.SaveDocument(ctx, &Document{ID: docID, Name: docID}))
	require.NoError(t, l.SavePage(ctx, &Page{ID: docID + "-page-1", DocumentID: docID, Number: 1}))
	require.NoError(t, l.SaveChunk(ctx, &Chunk{ID: docID + "-c0", DocumentID: docID, Index: 0, Embedding: []float32{1, 0}}))
	require.NoError(t, l.SaveNode(ctx, &Node{ID: docID + "-n1", DocumentID: docID, Label: "Virtue", Type: NodeConcept, Source: SourceExtraction}))
	require.NoError(t, l.SaveNode(ctx, &Node{ID: docID + "-n2", DocumentID: docID, Label: "Marcus", Type: NodePerson, Source: SourceExtraction}))
	require.NoError(t, l.SaveEdge(ctx, &Edge{ID: docID + "-e1", DocumentID: docID, Source: docID + "-n2", Target: docID + "-n1", Relationship: "writes about"}))
	require.NoError(t, l.SaveAnnotation(ctx, &Annotation{ID: docID + "-a1", DocumentID: docID, Page: 1, Text: "t", Type: AnnotationNote}))
	require.NoError(t, l.SaveVocabulary(ctx, &VocabularyEntry{ID: docID + "-v1", DocumentID: docID, Word: "ataraxia"}))
	conv, _, err := l.GetOrCreateConversation(ctx, &Conversation{ID: docID + "-conv", DocumentID: docID, UserID: "user-1"})
	require.NoError(t, err)
	require.NoError(t, l.AppendMessage(ctx, &Message{ID: docID + "-m1", ConversationID: conv.ID, Role: RoleStudent, Content: "hi"}))
}

// assertNoResidue fails if any record in any namespace references docID.
func assertNoResidue(t *testing.T, kv KV, docID string) {
	t.Helper()
	type owned struct {
		ID             string `json:"id"`
		DocumentID     string `json:"documentId"`
		ConversationID string `json:"conversationId"`
	}
	for _, ns := range []string{NSDocuments, NSPages, NSChunks, NSNodes, NSEdges, NSAnnotations, NSVocabulary, NSConversations, NSMessages} {
		items, err := load[owned](kv, ns)
		require.NoError(t, err)
		for _, item := range items {
			assert.NotEqual(t, docID, item.DocumentID, "residual %s record %s", ns, item.ID)
			assert.NotEqual(t, docID, item.ID, "residual %s record", ns)
			assert.NotEqual(t, docID+"-conv", item.ConversationID, "residual message %s", item.ID)
		}
	}
}

// =============================================================================
// Chunk & Search Tests
// =============================================================================

func unitWith(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestSearchChunksStableTopK(t *testing.T) {
	runLocalTests(t, "SearchTopK", func(t *testing.T, l *Local) {
		ctx := context.Background()
		for i, sim := range []float64{0.9, 0.1, 0.5, 0.9} {
			require.NoError(t, l.SaveChunk(ctx, &Chunk{
				ID:         fmt.Sprintf("c%d", i),
				DocumentID: "doc-1",
				Index:      i,
				Embedding:  unitWith(sim),
			}))
		}
		// Chunks of other documents and chunks without embeddings are ignored
		require.NoError(t, l.SaveChunk(ctx, &Chunk{ID: "other", DocumentID: "doc-2", Embedding: []float32{1, 0}}))
		require.NoError(t, l.SaveChunk(ctx, &Chunk{ID: "bare", DocumentID: "doc-1", Index: 4}))

		results, err := l.SearchChunks(ctx, []float32{1, 0}, "doc-1", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "c0", results[0].ID)
		assert.Equal(t, "c3", results[1].ID)
		assert.InDelta(t, 0.9, results[0].Similarity, 1e-6)
	})
}

func TestSearchChunksMalformedInputs(t *testing.T) {
	runLocalTests(t, "SearchMalformed", func(t *testing.T, l *Local) {
		ctx := context.Background()
		require.NoError(t, l.SaveChunk(ctx, &Chunk{ID: "c0", DocumentID: "doc-1", Embedding: []float32{1, 0}}))

		results, err := l.SearchChunks(ctx, nil, "doc-1", 5)
		require.NoError(t, err)
		assert.Empty(t, results)

		results, err = l.SearchChunks(ctx, []float32{1, 0}, "missing-doc", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearchChunksDefaultLimit(t *testing.T) {
	runLocalTests(t, "SearchDefaultLimit", func(t *testing.T, l *Local) {
		ctx := context.Background()
		for i := 0; i < 8; i++ {
			require.NoError(t, l.SaveChunk(ctx, &Chunk{ID: fmt.Sprintf("c%d", i), DocumentID: "doc-1", Index: i, Embedding: []float32{1, float32(i)}}))
		}
		results, err := l.SearchChunks(ctx, []float32{1, 0}, "doc-1", 0)
		require.NoError(t, err)
		assert.Len(t, results, 5)
	})
}

func TestSearchChunksThroughIndex(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	l := NewLocal(NewMemKV(), WithANNThreshold(4), WithIndexFS(fs))
	ctx := context.Background()

	// Two well separated clusters
	for i := 0; i < 10; i++ {
		vec := []float32{1, 0.01 * float32(i), 0}
		if i%2 == 1 {
			vec = []float32{0, 0.01 * float32(i), 1}
		}
		require.NoError(t, l.SaveChunk(ctx, &Chunk{ID: fmt.Sprintf("c%d", i), DocumentID: "doc-1", Index: i, Embedding: vec}))
	}

	results, err := l.SearchChunks(ctx, []float32{1, 0, 0}, "doc-1", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"c0", "c2", "c4"}, []string{results[0].ID, results[1].ID, results[2].ID})

	_, err = hackpadfs.Stat(fs, indexPath("doc-1"))
	require.NoError(t, err, "index should be persisted")

	// A fresh store over the same FS reuses the saved index
	again, err := NewLocal(l.KV(), WithANNThreshold(4), WithIndexFS(fs)).SearchChunks(ctx, []float32{1, 0, 0}, "doc-1", 3)
	require.NoError(t, err)
	assert.Equal(t, results, again)

	require.NoError(t, l.DeleteDocument(ctx, "doc-1"))
	_, err = hackpadfs.Stat(fs, indexPath("doc-1"))
	assert.Error(t, err, "index file should be removed with its document")
}

// =============================================================================
// Annotation, Conversation & Vocabulary Tests
// =============================================================================

func TestAnnotationsByDocument(t *testing.T) {
	runLocalTests(t, "Annotations", func(t *testing.T, l *Local) {
		ctx := context.Background()
		require.NoError(t, l.SaveAnnotation(ctx, &Annotation{ID: "a1", DocumentID: "doc-1", Page: 2, Text: "first", Type: AnnotationQuestion}))
		require.NoError(t, l.SaveAnnotation(ctx, &Annotation{ID: "a2", DocumentID: "doc-1", Page: 3, Text: "second", Type: AnnotationConcept, ConceptLabel: "Logos"}))
		require.NoError(t, l.SaveAnnotation(ctx, &Annotation{ID: "a3", DocumentID: "doc-2", Page: 1, Text: "elsewhere", Type: AnnotationNote}))

		anns, err := l.GetAnnotations(ctx, "doc-1")
		require.NoError(t, err)
		require.Len(t, anns, 2)
		assert.Equal(t, "a1", anns[0].ID)
		assert.Equal(t, "Logos", anns[1].ConceptLabel)
	})
}

func TestConversationCreatedOncePerPair(t *testing.T) {
	runLocalTests(t, "ConversationOnce", func(t *testing.T, l *Local) {
		ctx := context.Background()
		first, created, err := l.GetOrCreateConversation(ctx, &Conversation{ID: "conv-1", DocumentID: "doc-1", UserID: "user-1"})
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := l.GetOrCreateConversation(ctx, &Conversation{ID: "conv-2", DocumentID: "doc-1", UserID: "user-1"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)

		other, created, err := l.GetOrCreateConversation(ctx, &Conversation{ID: "conv-3", DocumentID: "doc-1", UserID: "user-2"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "conv-3", other.ID)
	})
}

func TestMessagesKeepAppendOrder(t *testing.T) {
	runLocalTests(t, "MessageOrder", func(t *testing.T, l *Local) {
		ctx := context.Background()
		conv, _, err := l.GetOrCreateConversation(ctx, &Conversation{ID: "conv-1", DocumentID: "doc-1", UserID: "user-1"})
		require.NoError(t, err)

		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, l.AppendMessage(ctx, &Message{ID: "m1", ConversationID: conv.ID, Role: RoleStudent, Content: "A", CreatedAt: at}))
		require.NoError(t, l.AppendMessage(ctx, &Message{ID: "m2", ConversationID: conv.ID, Role: RoleTeacher, Content: "B", AgentName: "Socrates", CreatedAt: at.Add(time.Second)}))

		msgs, err := l.GetMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "A", msgs[0].Content)
		assert.Equal(t, "B", msgs[1].Content)
		assert.Equal(t, "Socrates", msgs[1].AgentName)

		touched, err := l.FindConversation(ctx, "doc-1", "user-1")
		require.NoError(t, err)
		assert.True(t, touched.UpdatedAt.Equal(at.Add(time.Second)))
	})
}

func TestVocabularyLifecycle(t *testing.T) {
	runLocalTests(t, "Vocabulary", func(t *testing.T, l *Local) {
		ctx := context.Background()
		base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, l.SaveVocabulary(ctx, &VocabularyEntry{ID: "v1", DocumentID: "doc-1", Word: "ataraxia", CreatedAt: base}))
		require.NoError(t, l.SaveVocabulary(ctx, &VocabularyEntry{ID: "v2", DocumentID: "doc-1", Word: "eudaimonia", CreatedAt: base.Add(time.Hour)}))
		require.NoError(t, l.SaveVocabulary(ctx, &VocabularyEntry{ID: "v3", DocumentID: "doc-2", Word: "logos", CreatedAt: base.Add(2 * time.Hour)}))

		entries, err := l.GetVocabulary(ctx, "doc-1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "v2", entries[0].ID, "newest first")

		all, err := l.GetAllVocabulary(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, l.DeleteVocabulary(ctx, "v2"))
		entries, err = l.GetVocabulary(ctx, "doc-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "v1", entries[0].ID)
	})
}

// =============================================================================
// Settings & Identity Tests
// =============================================================================

func TestSettingsRoundTrip(t *testing.T) {
	runLocalTests(t, "Settings", func(t *testing.T, l *Local) {
		ctx := context.Background()
		empty, err := l.GetSettings(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		require.NoError(t, l.SaveSettings(ctx, Settings{"targetLanguage": "fr", "fontSize": 18.0}))
		got, err := l.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fr", got["targetLanguage"])
		assert.Equal(t, 18.0, got["fontSize"])
	})
}

func TestUserIDIsStable(t *testing.T) {
	runLocalTests(t, "UserID", func(t *testing.T, l *Local) {
		calls := 0
		gen := func() string { calls++; return fmt.Sprintf("user_%d", calls) }

		first, err := l.UserID(gen)
		require.NoError(t, err)
		second, err := l.UserID(gen)
		require.NoError(t, err)
		assert.Equal(t, "user_1", first)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, calls)
	})
}

func TestCounts(t *testing.T) {
	runLocalTests(t, "Counts", func(t *testing.T, l *Local) {
		seedDocument(t, l, "doc-1")
		counts, err := l.Counts()
		require.NoError(t, err)
		assert.Equal(t, 1, counts[NSDocuments])
		assert.Equal(t, 2, counts[NSNodes])
		assert.Equal(t, 1, counts[NSMessages])
	})
}

func TestLocalWriteFailureIsReported(t *testing.T) {
	kv := NewMemKV()
	kv.PutErr = errors.New("quota exceeded")
	l := NewLocal(kv)

	err := l.SaveDocument(context.Background(), &Document{ID: "doc-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocalWrite)
}
