package orchestrator

import (
	"context"

	"github.com/kittclouds/readerkit/internal/remote"
	"github.com/kittclouds/readerkit/internal/store"
)

// Backend is the record-level surface shared by the remote and local stores.
type Backend interface {
	SaveDocument(ctx context.Context, doc *store.Document) error
	GetDocuments(ctx context.Context) ([]*store.Document, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	SavePage(ctx context.Context, page *store.Page) error

	SaveChunk(ctx context.Context, chunk *store.Chunk) error
	GetChunks(ctx context.Context, documentID string) ([]*store.Chunk, error)
	SearchChunks(ctx context.Context, query []float32, documentID string, limit int) ([]store.RankedChunk, error)

	SaveNode(ctx context.Context, node *store.Node) error
	SaveEdge(ctx context.Context, edge *store.Edge) error
	GetGraph(ctx context.Context, documentID string) (*store.Graph, error)

	SaveAnnotation(ctx context.Context, a *store.Annotation) error
	GetAnnotations(ctx context.Context, documentID string) ([]*store.Annotation, error)

	FindConversation(ctx context.Context, documentID, userID string) (*store.Conversation, error)
	SaveConversation(ctx context.Context, conv *store.Conversation) error
	AppendMessage(ctx context.Context, msg *store.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]*store.Message, error)

	SaveVocabulary(ctx context.Context, v *store.VocabularyEntry) error
	GetVocabulary(ctx context.Context, documentID string) ([]*store.VocabularyEntry, error)
	GetAllVocabulary(ctx context.Context) ([]*store.VocabularyEntry, error)
	DeleteVocabulary(ctx context.Context, id string) error

	SaveSettings(ctx context.Context, settings store.Settings) error
	GetSettings(ctx context.Context) (store.Settings, error)
}

// Compile-time interface checks
var (
	_ Backend = (*store.Local)(nil)
	_ Backend = (*remote.Backend)(nil)
)

// Dialer opens a remote gateway.
type Dialer func(ctx context.Context, creds remote.Credentials) (remote.Gateway, error)

// PostgresDialer dials the pgx gateway.
func PostgresDialer(ctx context.Context, creds remote.Credentials) (remote.Gateway, error) {
	pg, err := remote.Dial(ctx, creds)
	if err != nil {
		return nil, err
	}
	return pg, nil
}
