package remote

import (
	"context"
)

// Gateway is the row-level surface of the remote backend.
// Get-style methods return nil, nil when the row does not exist.
type Gateway interface {
	UpsertDocument(ctx context.Context, row DocumentRow) error
	ListDocuments(ctx context.Context, userID string) ([]DocumentRow, error)
	GetDocument(ctx context.Context, id string) (*DocumentRow, error)
	DeleteDocument(ctx context.Context, id string) error

	UpsertPage(ctx context.Context, row PageRow) error
	ListPages(ctx context.Context, documentID string) ([]PageRow, error)

	UpsertChunk(ctx context.Context, row ChunkRow) error
	ListChunks(ctx context.Context, documentID string) ([]ChunkRow, error)
	SearchChunks(ctx context.Context, query []float32, documentID string, limit int) ([]ChunkMatchRow, error)

	UpsertNode(ctx context.Context, row NodeRow) error
	ListNodes(ctx context.Context, documentID string) ([]NodeRow, error)
	UpsertEdge(ctx context.Context, row EdgeRow) error
	ListEdges(ctx context.Context, documentID string) ([]EdgeRow, error)

	UpsertAnnotation(ctx context.Context, row AnnotationRow) error
	ListAnnotations(ctx context.Context, documentID string) ([]AnnotationRow, error)

	FindConversation(ctx context.Context, documentID, userID string) (*ConversationRow, error)
	UpsertConversation(ctx context.Context, row ConversationRow) error
	// InsertMessage appends a message and touches its conversation's
	// updated_at. Inserting an existing id is a no-op.
	InsertMessage(ctx context.Context, row MessageRow) error
	ListMessages(ctx context.Context, conversationID string) ([]MessageRow, error)

	UpsertVocabulary(ctx context.Context, row VocabularyRow) error
	ListVocabulary(ctx context.Context, documentID, userID string) ([]VocabularyRow, error)
	ListAllVocabulary(ctx context.Context, userID string) ([]VocabularyRow, error)
	DeleteVocabulary(ctx context.Context, id string) error

	UpsertSettings(ctx context.Context, row SettingsRow) error
	GetSettings(ctx context.Context, userID string) (*SettingsRow, error)

	Ping(ctx context.Context) error
	Close()
}
