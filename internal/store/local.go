package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"

	"github.com/kittclouds/readerkit/pkg/vector"
)

// Namespaces of the local key-space. Each holds one JSON array.
const (
	NSDocuments     = "documents"
	NSPages         = "pages"
	NSChunks        = "chunks"
	NSNodes         = "nodes"
	NSEdges         = "edges"
	NSAnnotations   = "annotations"
	NSConversations = "conversations"
	NSMessages      = "messages"
	NSVocabulary    = "vocabulary"
	NSSettings      = "settings"
	NSUserID        = "user_id"
)

// DefaultANNThreshold is the embedded-chunk count above which local search
// narrows candidates through an HNSW index before exact ranking.
const DefaultANNThreshold = 512

// Local is the on-device Backend. Every mutation loads the namespace,
// changes it and writes it back under one mutex, so concurrent callers
// never lose each other's records.
type Local struct {
	mu sync.Mutex
	kv KV

	annThreshold int
	indexFS      hackpadfs.FS
	indexes      map[string]*vector.Index
}

// LocalOption configures a Local.
type LocalOption func(*Local)

// WithANNThreshold sets the candidate count above which the HNSW index is
// used. n <= 0 disables the index.
func WithANNThreshold(n int) LocalOption {
	return func(l *Local) { l.annThreshold = n }
}

// WithIndexFS persists per-document HNSW indexes in fs.
func WithIndexFS(fs hackpadfs.FS) LocalOption {
	return func(l *Local) { l.indexFS = fs }
}

// NewLocal creates a local store over kv.
func NewLocal(kv KV, opts ...LocalOption) *Local {
	l := &Local{
		kv:           kv,
		annThreshold: DefaultANNThreshold,
		indexes:      make(map[string]*vector.Index),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// KV exposes the underlying key-space (shared with the sync queue).
func (l *Local) KV() KV {
	return l.kv
}

// Close closes the underlying key-space.
func (l *Local) Close() error {
	return l.kv.Close()
}

// =============================================================================
// Collection helpers
// =============================================================================

func load[T any](kv KV, ns string) ([]T, error) {
	raw, err := kv.Get(ns)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ns, err)
	}
	return items, nil
}

func persist[T any](kv KV, ns string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrLocalWrite, ns, err)
	}
	if err := kv.Put(ns, raw); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLocalWrite, ns, err)
	}
	return nil
}

// upsert replaces the item with the same id or appends it.
func upsert[T any](items []T, item T, id func(T) string) []T {
	key := id(item)
	for i := range items {
		if id(items[i]) == key {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func upsertInto[T any](kv KV, ns string, item T, id func(T) string) error {
	items, err := load[T](kv, ns)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalWrite, err)
	}
	return persist(kv, ns, upsert(items, item, id))
}

func filter[T any](items []T, keep func(T) bool) []*T {
	var out []*T
	for i := range items {
		if keep(items[i]) {
			item := items[i]
			out = append(out, &item)
		}
	}
	return out
}

// purge rewrites ns without the items matching drop.
func purge[T any](kv KV, ns string, drop func(T) bool) error {
	items, err := load[T](kv, ns)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalWrite, err)
	}
	kept := items[:0]
	for _, item := range items {
		if !drop(item) {
			kept = append(kept, item)
		}
	}
	return persist(kv, ns, kept)
}

// =============================================================================
// Documents & pages
// =============================================================================

// SaveDocument upserts the document record. Pages are stored separately.
func (l *Local) SaveDocument(_ context.Context, doc *Document) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := *doc
	rec.Pages = nil
	return upsertInto(l.kv, NSDocuments, rec, func(d Document) string { return d.ID })
}

// GetDocuments returns all documents, newest first.
func (l *Local) GetDocuments(_ context.Context) ([]*Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	docs, err := load[Document](l.kv, NSDocuments)
	if err != nil {
		return nil, err
	}
	out := filter(docs, func(Document) bool { return true })
	slices.SortStableFunc(out, func(a, b *Document) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// GetDocument returns a document with its pages sorted by number, or nil.
func (l *Local) GetDocument(_ context.Context, id string) (*Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	docs, err := load[Document](l.kv, NSDocuments)
	if err != nil {
		return nil, err
	}
	found := filter(docs, func(d Document) bool { return d.ID == id })
	if len(found) == 0 {
		return nil, nil
	}
	doc := found[0]

	pages, err := load[Page](l.kv, NSPages)
	if err != nil {
		return nil, err
	}
	for _, p := range filter(pages, func(p Page) bool { return p.DocumentID == id }) {
		doc.Pages = append(doc.Pages, *p)
	}
	slices.SortStableFunc(doc.Pages, func(a, b Page) int { return a.Number - b.Number })
	return doc, nil
}

// DeleteDocument removes a document and everything it owns. The local
// key-space has no foreign keys, so the cascade happens here.
func (l *Local) DeleteDocument(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	convs, err := load[Conversation](l.kv, NSConversations)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalWrite, err)
	}
	owned := make(map[string]bool)
	for _, c := range convs {
		if c.DocumentID == id {
			owned[c.ID] = true
		}
	}

	steps := []func() error{
		func() error { return purge(l.kv, NSDocuments, func(d Document) bool { return d.ID == id }) },
		func() error { return purge(l.kv, NSPages, func(p Page) bool { return p.DocumentID == id }) },
		func() error { return purge(l.kv, NSChunks, func(c Chunk) bool { return c.DocumentID == id }) },
		func() error { return purge(l.kv, NSNodes, func(n Node) bool { return n.DocumentID == id }) },
		func() error { return purge(l.kv, NSEdges, func(e Edge) bool { return e.DocumentID == id }) },
		func() error { return purge(l.kv, NSAnnotations, func(a Annotation) bool { return a.DocumentID == id }) },
		func() error { return purge(l.kv, NSVocabulary, func(v VocabularyEntry) bool { return v.DocumentID == id }) },
		func() error { return purge(l.kv, NSConversations, func(c Conversation) bool { return c.DocumentID == id }) },
		func() error { return purge(l.kv, NSMessages, func(m Message) bool { return owned[m.ConversationID] }) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	l.dropIndex(id)
	return nil
}

// SavePage upserts a page.
func (l *Local) SavePage(_ context.Context, page *Page) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return upsertInto(l.kv, NSPages, *page, func(p Page) string { return p.ID })
}

// =============================================================================
// Chunks & search
// =============================================================================

// SaveChunk upserts a chunk.
func (l *Local) SaveChunk(_ context.Context, chunk *Chunk) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := upsertInto(l.kv, NSChunks, *chunk, func(c Chunk) string { return c.ID }); err != nil {
		return err
	}
	delete(l.indexes, chunk.DocumentID)
	return nil
}

// GetChunks returns a document's chunks in insertion order.
func (l *Local) GetChunks(_ context.Context, documentID string) ([]*Chunk, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chunks, err := load[Chunk](l.kv, NSChunks)
	if err != nil {
		return nil, err
	}
	return filter(chunks, func(c Chunk) bool { return c.DocumentID == documentID }), nil
}

// SearchChunks ranks a document's embedded chunks against query by cosine
// similarity. Ties keep insertion order.
func (l *Local) SearchChunks(_ context.Context, query []float32, documentID string, limit int) ([]RankedChunk, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = vector.DefaultLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	chunks, err := load[Chunk](l.kv, NSChunks)
	if err != nil {
		return nil, err
	}
	var candidates []Chunk
	for _, c := range chunks {
		if c.DocumentID == documentID && len(c.Embedding) > 0 {
			candidates = append(candidates, c)
		}
	}

	if l.annThreshold > 0 && len(candidates) > l.annThreshold {
		if narrowed, err := l.annCandidates(documentID, candidates, query, limit*4); err == nil {
			candidates = narrowed
		}
	}

	ranked := vector.Rank(query, candidates, func(c Chunk) []float32 { return c.Embedding }, limit)
	out := make([]RankedChunk, len(ranked))
	for i, r := range ranked {
		out[i] = RankedChunk{Chunk: r.Item, Similarity: r.Similarity}
	}
	return out, nil
}

// annCandidates returns the subset of candidates the HNSW index places
// near query, in candidate order.
func (l *Local) annCandidates(documentID string, candidates []Chunk, query []float32, k int) ([]Chunk, error) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	ix := l.indexes[documentID]
	if ix == nil || !slices.Equal(ix.IDs(), ids) {
		ix = l.loadIndex(documentID, ids)
	}
	if ix == nil {
		ix = vector.NewIndex()
		for _, c := range candidates {
			if err := ix.Add(c.ID, c.Embedding); err != nil {
				return nil, err
			}
		}
		if l.indexFS != nil {
			// A failed save only costs a rebuild next time.
			_ = ix.Save(l.indexFS, indexPath(documentID))
		}
	}
	l.indexes[documentID] = ix

	hits, err := ix.Search(query, k)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(hits))
	for _, id := range hits {
		keep[id] = true
	}
	var out []Chunk
	for _, c := range candidates {
		if keep[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (l *Local) loadIndex(documentID string, ids []string) *vector.Index {
	if l.indexFS == nil {
		return nil
	}
	ix, err := vector.LoadIndex(l.indexFS, indexPath(documentID))
	if err != nil || !slices.Equal(ix.IDs(), ids) {
		return nil
	}
	return ix
}

func (l *Local) dropIndex(documentID string) {
	delete(l.indexes, documentID)
	if l.indexFS != nil {
		_ = hackpadfs.Remove(l.indexFS, indexPath(documentID))
	}
}

func indexPath(documentID string) string {
	return "vec_" + strings.ReplaceAll(documentID, "/", "_") + ".hnsw"
}

// =============================================================================
// Graph
// =============================================================================

// SaveNode upserts a node.
func (l *Local) SaveNode(_ context.Context, node *Node) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return upsertInto(l.kv, NSNodes, *node, func(n Node) string { return n.ID })
}

// SaveEdge upserts an edge.
func (l *Local) SaveEdge(_ context.Context, edge *Edge) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return upsertInto(l.kv, NSEdges, *edge, func(e Edge) string { return e.ID })
}

// GetGraph returns a document's nodes and edges.
func (l *Local) GetGraph(_ context.Context, documentID string) (*Graph, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	nodes, err := load[Node](l.kv, NSNodes)
	if err != nil {
		return nil, err
	}
	edges, err := load[Edge](l.kv, NSEdges)
	if err != nil {
		return nil, err
	}
	return &Graph{
		Nodes: filter(nodes, func(n Node) bool { return n.DocumentID == documentID }),
		Edges: filter(edges, func(e Edge) bool { return e.DocumentID == documentID }),
	}, nil
}

// =============================================================================
// Annotations
// =============================================================================

// SaveAnnotation upserts an annotation.
func (l *Local) SaveAnnotation(_ context.Context, a *Annotation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return upsertInto(l.kv, NSAnnotations, *a, func(a Annotation) string { return a.ID })
}

// GetAnnotations returns a document's annotations in insertion order.
func (l *Local) GetAnnotations(_ context.Context, documentID string) ([]*Annotation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	anns, err := load[Annotation](l.kv, NSAnnotations)
	if err != nil {
		return nil, err
	}
	return filter(anns, func(a Annotation) bool { return a.DocumentID == documentID }), nil
}

// =============================================================================
// Conversations & messages
// =============================================================================

// FindConversation returns the conversation for (documentID, userID), or nil.
func (l *Local) FindConversation(_ context.Context, documentID, userID string) (*Conversation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.findConversation(documentID, userID)
}

func (l *Local) findConversation(documentID, userID string) (*Conversation, error) {
	convs, err := load[Conversation](l.kv, NSConversations)
	if err != nil {
		return nil, err
	}
	found := filter(convs, func(c Conversation) bool {
		return c.DocumentID == documentID && c.UserID == userID
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// GetOrCreateConversation returns the existing conversation for the pair or
// stores conv (which must carry an id) as the new one.
func (l *Local) GetOrCreateConversation(_ context.Context, conv *Conversation) (*Conversation, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.findConversation(conv.DocumentID, conv.UserID)
	if err == nil && existing != nil {
		return existing, false, nil
	}
	if err := upsertInto(l.kv, NSConversations, *conv, func(c Conversation) string { return c.ID }); err != nil {
		return nil, false, err
	}
	created := *conv
	return &created, true, nil
}

// SaveConversation upserts a conversation record.
func (l *Local) SaveConversation(_ context.Context, conv *Conversation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return upsertInto(l.kv, NSConversations, *conv, func(c Conversation) string { return c.ID })
}

// AppendMessage appends a message and touches its conversation's updatedAt.
// A message id already present is replaced in place.
func (l *Local) AppendMessage(_ context.Context, msg *Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := upsertInto(l.kv, NSMessages, *msg, func(m Message) string { return m.ID }); err != nil {
		return err
	}

	convs, err := load[Conversation](l.kv, NSConversations)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalWrite, err)
	}
	for i := range convs {
		if convs[i].ID == msg.ConversationID {
			convs[i].UpdatedAt = msg.CreatedAt
			return persist(l.kv, NSConversations, convs)
		}
	}
	return nil
}

// GetMessages returns a conversation's messages in append order.
func (l *Local) GetMessages(_ context.Context, conversationID string) ([]*Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msgs, err := load[Message](l.kv, NSMessages)
	if err != nil {
		return nil, err
	}
	return filter(msgs, func(m Message) bool { return m.ConversationID == conversationID }), nil
}

// =============================================================================
// Vocabulary
// =============================================================================

// SaveVocabulary upserts a vocabulary entry.
func (l *Local) SaveVocabulary(_ context.Context, v *VocabularyEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return upsertInto(l.kv, NSVocabulary, *v, func(v VocabularyEntry) string { return v.ID })
}

// GetVocabulary returns a document's vocabulary, newest first.
func (l *Local) GetVocabulary(_ context.Context, documentID string) ([]*VocabularyEntry, error) {
	return l.vocabulary(func(v VocabularyEntry) bool { return v.DocumentID == documentID })
}

// GetAllVocabulary returns every vocabulary entry, newest first.
func (l *Local) GetAllVocabulary(_ context.Context) ([]*VocabularyEntry, error) {
	return l.vocabulary(func(VocabularyEntry) bool { return true })
}

func (l *Local) vocabulary(keep func(VocabularyEntry) bool) ([]*VocabularyEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := load[VocabularyEntry](l.kv, NSVocabulary)
	if err != nil {
		return nil, err
	}
	out := filter(entries, keep)
	slices.SortStableFunc(out, func(a, b *VocabularyEntry) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// DeleteVocabulary removes one vocabulary entry.
func (l *Local) DeleteVocabulary(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return purge(l.kv, NSVocabulary, func(v VocabularyEntry) bool { return v.ID == id })
}

// =============================================================================
// Settings & identity
// =============================================================================

// SaveSettings replaces the stored settings.
func (l *Local) SaveSettings(_ context.Context, settings Settings) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if settings == nil {
		settings = Settings{}
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%w: encode settings: %v", ErrLocalWrite, err)
	}
	if err := l.kv.Put(NSSettings, raw); err != nil {
		return fmt.Errorf("%w: settings: %v", ErrLocalWrite, err)
	}
	return nil
}

// GetSettings returns the stored settings, or an empty set.
func (l *Local) GetSettings(_ context.Context) (Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.kv.Get(NSSettings)
	if err != nil {
		return Settings{}, err
	}
	settings := Settings{}
	if len(raw) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

// UserID returns the installation's user id, creating it with newID on
// first use.
func (l *Local) UserID(newID func() string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.kv.Get(NSUserID)
	if err != nil {
		return "", err
	}
	if len(raw) > 0 {
		return string(raw), nil
	}
	id := newID()
	if err := l.kv.Put(NSUserID, []byte(id)); err != nil {
		return "", fmt.Errorf("%w: user id: %v", ErrLocalWrite, err)
	}
	return id, nil
}

// Counts returns the number of records per entity namespace.
func (l *Local) Counts() (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[string]int)
	for _, ns := range []string{
		NSDocuments, NSPages, NSChunks, NSNodes, NSEdges,
		NSAnnotations, NSConversations, NSMessages, NSVocabulary,
	} {
		items, err := load[json.RawMessage](l.kv, ns)
		if err != nil {
			return nil, err
		}
		counts[ns] = len(items)
	}
	return counts, nil
}
