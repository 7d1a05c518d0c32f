package remote

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kittclouds/readerkit/pkg/vector"
)

// table keeps rows by id in first-insert order.
type table[T any] struct {
	ids  []string
	rows map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(id string, row T) {
	if _, ok := t.rows[id]; !ok {
		t.ids = append(t.ids, id)
	}
	t.rows[id] = row
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) list(keep func(T) bool) []T {
	var out []T
	for _, id := range t.ids {
		if row := t.rows[id]; keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func (t *table[T]) remove(keep func(T) bool) {
	ids := t.ids[:0]
	for _, id := range t.ids {
		if keep(t.rows[id]) {
			ids = append(ids, id)
			continue
		}
		delete(t.rows, id)
	}
	t.ids = ids
}

// Memory is an in-process Gateway with failure injection, used by tests and
// by the CLI's dry-run mode.
type Memory struct {
	mu sync.Mutex

	documents     *table[DocumentRow]
	pages         *table[PageRow]
	chunks        *table[ChunkRow]
	nodes         *table[NodeRow]
	edges         *table[EdgeRow]
	annotations   *table[AnnotationRow]
	conversations *table[ConversationRow]
	messages      *table[MessageRow]
	vocabulary    *table[VocabularyRow]
	settings      *table[SettingsRow]

	failAll error
	failOps map[string]error
	calls   map[string]int
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		documents:     newTable[DocumentRow](),
		pages:         newTable[PageRow](),
		chunks:        newTable[ChunkRow](),
		nodes:         newTable[NodeRow](),
		edges:         newTable[EdgeRow](),
		annotations:   newTable[AnnotationRow](),
		conversations: newTable[ConversationRow](),
		messages:      newTable[MessageRow](),
		vocabulary:    newTable[VocabularyRow](),
		settings:      newTable[SettingsRow](),
		failOps:       make(map[string]error),
		calls:         make(map[string]int),
	}
}

// FailAll makes every operation return err. nil restores normal behaviour.
func (m *Memory) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// FailOp makes the named operation (e.g. "UpsertDocument") return err.
func (m *Memory) FailOp(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOps, op)
		return
	}
	m.failOps[op] = err
}

// Calls returns how many times op was invoked, failed calls included.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// requireDocument mirrors the REFERENCES documents(id) clauses of Schema.
// The caller holds m.mu.
func (m *Memory) requireDocument(table, documentID string) error {
	if _, ok := m.documents.get(documentID); ok {
		return nil
	}
	return foreignKeyViolation(table, "document_id", documentID, "documents")
}

func foreignKeyViolation(table, column, value, parent string) error {
	constraint := table + "_" + column + "_fkey"
	return &pgconn.PgError{
		Code:           "23503",
		Message:        fmt.Sprintf("insert or update on table %q violates foreign key constraint %q", table, constraint),
		Detail:         fmt.Sprintf("Key (%s)=(%s) is not present in table %q.", column, value, parent),
		TableName:      table,
		ConstraintName: constraint,
	}
}

// enter locks m and returns the injected failure for op, if any.
// The caller must unlock.
func (m *Memory) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failAll != nil {
		return m.failAll
	}
	return m.failOps[op]
}

func (m *Memory) UpsertDocument(ctx context.Context, row DocumentRow) error {
	err := m.enter(ctx, "UpsertDocument")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	m.documents.put(row.ID, row)
	return nil
}

func (m *Memory) ListDocuments(ctx context.Context, userID string) ([]DocumentRow, error) {
	err := m.enter(ctx, "ListDocuments")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	rows := m.documents.list(func(r DocumentRow) bool { return r.UserID == userID })
	slices.SortStableFunc(rows, func(a, b DocumentRow) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return rows, nil
}

func (m *Memory) GetDocument(ctx context.Context, id string) (*DocumentRow, error) {
	err := m.enter(ctx, "GetDocument")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	row, ok := m.documents.get(id)
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// DeleteDocument cascades the way the schema's foreign keys do.
func (m *Memory) DeleteDocument(ctx context.Context, id string) error {
	err := m.enter(ctx, "DeleteDocument")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	owned := make(map[string]bool)
	for _, c := range m.conversations.list(func(c ConversationRow) bool { return c.DocumentID == id }) {
		owned[c.ID] = true
	}
	m.documents.remove(func(r DocumentRow) bool { return r.ID != id })
	m.pages.remove(func(r PageRow) bool { return r.DocumentID != id })
	m.chunks.remove(func(r ChunkRow) bool { return r.DocumentID != id })
	m.nodes.remove(func(r NodeRow) bool { return r.DocumentID != id })
	m.edges.remove(func(r EdgeRow) bool { return r.DocumentID != id })
	m.annotations.remove(func(r AnnotationRow) bool { return r.DocumentID != id })
	m.vocabulary.remove(func(r VocabularyRow) bool { return r.DocumentID != id })
	m.conversations.remove(func(r ConversationRow) bool { return r.DocumentID != id })
	m.messages.remove(func(r MessageRow) bool { return !owned[r.ConversationID] })
	return nil
}

func (m *Memory) UpsertPage(ctx context.Context, row PageRow) error {
	err := m.enter(ctx, "UpsertPage")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireDocument("pages", row.DocumentID); err != nil {
		return err
	}
	m.pages.put(row.ID, row)
	return nil
}

func (m *Memory) ListPages(ctx context.Context, documentID string) ([]PageRow, error) {
	err := m.enter(ctx, "ListPages")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	rows := m.pages.list(func(r PageRow) bool { return r.DocumentID == documentID })
	slices.SortStableFunc(rows, func(a, b PageRow) int { return a.PageNumber - b.PageNumber })
	return rows, nil
}

func (m *Memory) UpsertChunk(ctx context.Context, row ChunkRow) error {
	err := m.enter(ctx, "UpsertChunk")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireDocument("chunks", row.DocumentID); err != nil {
		return err
	}
	m.chunks.put(row.ID, row)
	return nil
}

func (m *Memory) ListChunks(ctx context.Context, documentID string) ([]ChunkRow, error) {
	err := m.enter(ctx, "ListChunks")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	rows := m.chunks.list(func(r ChunkRow) bool { return r.DocumentID == documentID })
	slices.SortStableFunc(rows, func(a, b ChunkRow) int { return a.ChunkIndex - b.ChunkIndex })
	return rows, nil
}

// SearchChunks ranks by cosine similarity, standing in for search_chunks.
func (m *Memory) SearchChunks(ctx context.Context, query []float32, documentID string, limit int) ([]ChunkMatchRow, error) {
	err := m.enter(ctx, "SearchChunks")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	candidates := m.chunks.list(func(r ChunkRow) bool {
		return r.DocumentID == documentID && len(r.Embedding) > 0
	})
	ranked := vector.Rank(query, candidates, func(r ChunkRow) []float32 { return r.Embedding }, limit)
	out := make([]ChunkMatchRow, len(ranked))
	for i, r := range ranked {
		out[i] = ChunkMatchRow{ChunkRow: r.Item, Similarity: r.Similarity}
	}
	return out, nil
}

func (m *Memory) UpsertNode(ctx context.Context, row NodeRow) error {
	err := m.enter(ctx, "UpsertNode")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireDocument("nodes", row.DocumentID); err != nil {
		return err
	}
	m.nodes.put(row.ID, row)
	return nil
}

func (m *Memory) ListNodes(ctx context.Context, documentID string) ([]NodeRow, error) {
	err := m.enter(ctx, "ListNodes")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.nodes.list(func(r NodeRow) bool { return r.DocumentID == documentID }), nil
}

func (m *Memory) UpsertEdge(ctx context.Context, row EdgeRow) error {
	err := m.enter(ctx, "UpsertEdge")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireDocument("edges", row.DocumentID); err != nil {
		return err
	}
	m.edges.put(row.ID, row)
	return nil
}

func (m *Memory) ListEdges(ctx context.Context, documentID string) ([]EdgeRow, error) {
	err := m.enter(ctx, "ListEdges")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.edges.list(func(r EdgeRow) bool { return r.DocumentID == documentID }), nil
}

func (m *Memory) UpsertAnnotation(ctx context.Context, row AnnotationRow) error {
	err := m.enter(ctx, "UpsertAnnotation")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireDocument("annotations", row.DocumentID); err != nil {
		return err
	}
	m.annotations.put(row.ID, row)
	return nil
}

func (m *Memory) ListAnnotations(ctx context.Context, documentID string) ([]AnnotationRow, error) {
	err := m.enter(ctx, "ListAnnotations")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.annotations.list(func(r AnnotationRow) bool { return r.DocumentID == documentID }), nil
}

func (m *Memory) FindConversation(ctx context.Context, documentID, userID string) (*ConversationRow, error) {
	err := m.enter(ctx, "FindConversation")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	rows := m.conversations.list(func(r ConversationRow) bool {
		return r.DocumentID == documentID && r.UserID == userID
	})
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (m *Memory) UpsertConversation(ctx context.Context, row ConversationRow) error {
	err := m.enter(ctx, "UpsertConversation")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireDocument("conversations", row.DocumentID); err != nil {
		return err
	}
	if dup := m.conversations.list(func(c ConversationRow) bool {
		return c.DocumentID == row.DocumentID && c.UserID == row.UserID && c.ID != row.ID
	}); len(dup) > 0 {
		c := dup[0]
		return &pgconn.PgError{
			Code:           "23505",
			Message:        `duplicate key value violates unique constraint "conversations_document_id_user_id_key"`,
			Detail:         fmt.Sprintf("Key (document_id, user_id)=(%s, %s) already exists.", c.DocumentID, c.UserID),
			TableName:      "conversations",
			ConstraintName: "conversations_document_id_user_id_key",
		}
	}
	m.conversations.put(row.ID, row)
	return nil
}

func (m *Memory) InsertMessage(ctx context.Context, row MessageRow) error {
	err := m.enter(ctx, "InsertMessage")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := m.conversations.get(row.ConversationID); !ok {
		return foreignKeyViolation("messages", "conversation_id", row.ConversationID, "conversations")
	}
	if _, ok := m.messages.get(row.ID); ok {
		return nil
	}
	m.messages.put(row.ID, row)
	if conv, ok := m.conversations.get(row.ConversationID); ok {
		conv.UpdatedAt = row.CreatedAt
		m.conversations.put(conv.ID, conv)
	}
	return nil
}

func (m *Memory) ListMessages(ctx context.Context, conversationID string) ([]MessageRow, error) {
	err := m.enter(ctx, "ListMessages")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.messages.list(func(r MessageRow) bool { return r.ConversationID == conversationID }), nil
}

func (m *Memory) UpsertVocabulary(ctx context.Context, row VocabularyRow) error {
	err := m.enter(ctx, "UpsertVocabulary")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireDocument("vocabulary", row.DocumentID); err != nil {
		return err
	}
	m.vocabulary.put(row.ID, row)
	return nil
}

func (m *Memory) ListVocabulary(ctx context.Context, documentID, userID string) ([]VocabularyRow, error) {
	err := m.enter(ctx, "ListVocabulary")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return newestVocabulary(m.vocabulary.list(func(r VocabularyRow) bool {
		return r.DocumentID == documentID && r.UserID == userID
	})), nil
}

func (m *Memory) ListAllVocabulary(ctx context.Context, userID string) ([]VocabularyRow, error) {
	err := m.enter(ctx, "ListAllVocabulary")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return newestVocabulary(m.vocabulary.list(func(r VocabularyRow) bool { return r.UserID == userID })), nil
}

func newestVocabulary(rows []VocabularyRow) []VocabularyRow {
	slices.SortStableFunc(rows, func(a, b VocabularyRow) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return rows
}

func (m *Memory) DeleteVocabulary(ctx context.Context, id string) error {
	err := m.enter(ctx, "DeleteVocabulary")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	m.vocabulary.remove(func(r VocabularyRow) bool { return r.ID != id })
	return nil
}

func (m *Memory) UpsertSettings(ctx context.Context, row SettingsRow) error {
	err := m.enter(ctx, "UpsertSettings")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	m.settings.put(row.UserID, row)
	return nil
}

func (m *Memory) GetSettings(ctx context.Context, userID string) (*SettingsRow, error) {
	err := m.enter(ctx, "GetSettings")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	row, ok := m.settings.get(userID)
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	err := m.enter(ctx, "Ping")
	m.mu.Unlock()
	return err
}

func (m *Memory) Close() {}

// Compile-time interface check
var _ Gateway = (*Memory)(nil)
