package remote

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/readerkit/internal/store"
)

// Backend exposes domain records over a Gateway, mapping rows both ways.
// Its method set matches store.Local so the two can stand in for each other.
type Backend struct {
	gw     Gateway
	userID string
	now    func() time.Time
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithBackendClock sets the clock that stamps settings rows.
func WithBackendClock(now func() time.Time) BackendOption {
	return func(b *Backend) {
		b.now = now
	}
}

// NewBackend binds gw to the session user.
func NewBackend(gw Gateway, userID string, opts ...BackendOption) *Backend {
	b := &Backend{gw: gw, userID: userID, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Gateway returns the underlying row gateway.
func (b *Backend) Gateway() Gateway {
	return b.gw
}

func (b *Backend) SaveDocument(ctx context.Context, doc *store.Document) error {
	return b.gw.UpsertDocument(ctx, DocumentToRow(doc, b.userID))
}

func (b *Backend) GetDocuments(ctx context.Context) ([]*store.Document, error) {
	rows, err := b.gw.ListDocuments(ctx, b.userID)
	if err != nil {
		return nil, err
	}
	docs := make([]*store.Document, len(rows))
	for i, r := range rows {
		docs[i] = DocumentFromRow(r)
	}
	return docs, nil
}

func (b *Backend) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	row, err := b.gw.GetDocument(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	pages, err := b.gw.ListPages(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := DocumentFromRow(*row)
	for _, p := range pages {
		doc.Pages = append(doc.Pages, PageFromRow(p))
	}
	return doc, nil
}

func (b *Backend) DeleteDocument(ctx context.Context, id string) error {
	return b.gw.DeleteDocument(ctx, id)
}

func (b *Backend) SavePage(ctx context.Context, page *store.Page) error {
	return b.gw.UpsertPage(ctx, PageToRow(page))
}

func (b *Backend) SaveChunk(ctx context.Context, chunk *store.Chunk) error {
	return b.gw.UpsertChunk(ctx, ChunkToRow(chunk))
}

func (b *Backend) GetChunks(ctx context.Context, documentID string) ([]*store.Chunk, error) {
	rows, err := b.gw.ListChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	chunks := make([]*store.Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = ChunkFromRow(r)
	}
	return chunks, nil
}

func (b *Backend) SearchChunks(ctx context.Context, query []float32, documentID string, limit int) ([]store.RankedChunk, error) {
	rows, err := b.gw.SearchChunks(ctx, query, documentID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]store.RankedChunk, len(rows))
	for i, r := range rows {
		out[i] = RankedChunkFromRow(r)
	}
	return out, nil
}

func (b *Backend) SaveNode(ctx context.Context, node *store.Node) error {
	return b.gw.UpsertNode(ctx, NodeToRow(node))
}

func (b *Backend) SaveEdge(ctx context.Context, edge *store.Edge) error {
	return b.gw.UpsertEdge(ctx, EdgeToRow(edge))
}

// GetGraph fetches nodes and edges concurrently.
func (b *Backend) GetGraph(ctx context.Context, documentID string) (*store.Graph, error) {
	var (
		nodes []NodeRow
		edges []EdgeRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = b.gw.ListNodes(gctx, documentID)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = b.gw.ListEdges(gctx, documentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph := &store.Graph{}
	for _, n := range nodes {
		graph.Nodes = append(graph.Nodes, NodeFromRow(n))
	}
	for _, e := range edges {
		graph.Edges = append(graph.Edges, EdgeFromRow(e))
	}
	return graph, nil
}

func (b *Backend) SaveAnnotation(ctx context.Context, a *store.Annotation) error {
	return b.gw.UpsertAnnotation(ctx, AnnotationToRow(a, b.userID))
}

func (b *Backend) GetAnnotations(ctx context.Context, documentID string) ([]*store.Annotation, error) {
	rows, err := b.gw.ListAnnotations(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]*store.Annotation, len(rows))
	for i, r := range rows {
		out[i] = AnnotationFromRow(r)
	}
	return out, nil
}

func (b *Backend) FindConversation(ctx context.Context, documentID, userID string) (*store.Conversation, error) {
	row, err := b.gw.FindConversation(ctx, documentID, userID)
	if err != nil || row == nil {
		return nil, err
	}
	return ConversationFromRow(*row), nil
}

func (b *Backend) SaveConversation(ctx context.Context, conv *store.Conversation) error {
	return b.gw.UpsertConversation(ctx, ConversationToRow(conv))
}

func (b *Backend) AppendMessage(ctx context.Context, msg *store.Message) error {
	return b.gw.InsertMessage(ctx, MessageToRow(msg))
}

func (b *Backend) GetMessages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	rows, err := b.gw.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]*store.Message, len(rows))
	for i, r := range rows {
		out[i] = MessageFromRow(r)
	}
	return out, nil
}

func (b *Backend) SaveVocabulary(ctx context.Context, v *store.VocabularyEntry) error {
	return b.gw.UpsertVocabulary(ctx, VocabularyToRow(v, b.userID))
}

func (b *Backend) GetVocabulary(ctx context.Context, documentID string) ([]*store.VocabularyEntry, error) {
	rows, err := b.gw.ListVocabulary(ctx, documentID, b.userID)
	if err != nil {
		return nil, err
	}
	return vocabularyFromRows(rows), nil
}

func (b *Backend) GetAllVocabulary(ctx context.Context) ([]*store.VocabularyEntry, error) {
	rows, err := b.gw.ListAllVocabulary(ctx, b.userID)
	if err != nil {
		return nil, err
	}
	return vocabularyFromRows(rows), nil
}

func vocabularyFromRows(rows []VocabularyRow) []*store.VocabularyEntry {
	out := make([]*store.VocabularyEntry, len(rows))
	for i, r := range rows {
		out[i] = VocabularyFromRow(r)
	}
	return out
}

func (b *Backend) DeleteVocabulary(ctx context.Context, id string) error {
	return b.gw.DeleteVocabulary(ctx, id)
}

func (b *Backend) SaveSettings(ctx context.Context, settings store.Settings) error {
	return b.gw.UpsertSettings(ctx, SettingsToRow(settings, b.userID, b.now().UTC()))
}

// GetSettings returns nil settings when the user has no row yet.
func (b *Backend) GetSettings(ctx context.Context) (store.Settings, error) {
	row, err := b.gw.GetSettings(ctx, b.userID)
	if err != nil || row == nil {
		return nil, err
	}
	return SettingsFromRow(*row), nil
}
