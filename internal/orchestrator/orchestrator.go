// Package orchestrator routes every read and write to the remote backend
// when one is connected and to the local store otherwise. Writes that do not
// reach the remote side are queued and replayed on the next Init or Sync.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/readerkit/internal/logger"
	"github.com/kittclouds/readerkit/internal/remote"
	"github.com/kittclouds/readerkit/internal/store"
	"github.com/kittclouds/readerkit/internal/syncq"
	"github.com/kittclouds/readerkit/pkg/graph"
	"github.com/kittclouds/readerkit/pkg/vector"
)

// SaveResult reports where a write landed. Synced is false when the record
// only reached the local store and was queued for replay.
type SaveResult struct {
	Success bool   `json:"success"`
	Synced  bool   `json:"synced"`
	ID      string `json:"id,omitempty"`
}

// Status is a snapshot of the session.
type Status struct {
	Connected   bool   `json:"connected"`
	UserID      string `json:"userId"`
	Pending     int    `json:"pending"`
	DeadLetters int    `json:"deadLetters"`
	Syncing     bool   `json:"syncing"`
	// LastSync is the most recent replay, nil before the first one.
	LastSync *SyncSummary `json:"lastSync,omitempty"`
}

// SyncSummary is the outcome of one queue replay.
type SyncSummary struct {
	syncq.Report
	At time.Time `json:"at"`
}

// Orchestrator owns one session: the local store, the sync queue and, once
// Init succeeds, a remote gateway.
type Orchestrator struct {
	local *store.Local
	queue *syncq.Queue

	mu        sync.RWMutex
	gw        remote.Gateway
	remote    *remote.Backend
	connected bool
	userID    string
	lastSync  *SyncSummary

	dial        Dialer
	log         *logger.Logger
	now         func() time.Time
	timeout     time.Duration
	searchLimit int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDialer sets how Init reaches the remote backend. Without a dialer
// Init always reports local mode.
func WithDialer(d Dialer) Option {
	return func(o *Orchestrator) { o.dial = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRemoteTimeout bounds each remote call. Zero means no bound.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithSearchLimit sets the result count used when SearchChunks gets limit <= 0.
func WithSearchLimit(n int) Option {
	return func(o *Orchestrator) { o.searchLimit = n }
}

// New creates an orchestrator in local mode.
func New(local *store.Local, queue *syncq.Queue, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		local:       local,
		queue:       queue,
		log:         logger.Nop(),
		now:         time.Now,
		searchLimit: vector.DefaultLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("component", "orchestrator")
	return o
}

// =============================================================================
// Session
// =============================================================================

// Init connects to the remote backend and replays the sync queue before
// returning. It returns false, leaving the orchestrator in local mode, when
// credentials are empty or the backend cannot be reached.
func (o *Orchestrator) Init(ctx context.Context, endpointURL, apiKey string) bool {
	creds := remote.Credentials{URL: endpointURL, APIKey: apiKey}
	if creds.Empty() {
		o.log.Info("no remote credentials, running in local mode")
		o.disconnect()
		return false
	}
	if o.dial == nil {
		o.log.Info("no remote dialer configured, running in local mode")
		o.disconnect()
		return false
	}

	dctx, cancel := o.callCtx(ctx)
	gw, err := o.dial(dctx, creds)
	cancel()
	if err != nil {
		o.log.Warn("remote unreachable, running in local mode", "remote_url", endpointURL, "error", err)
		o.disconnect()
		return false
	}

	userID := o.UserID()
	o.mu.Lock()
	previous := o.gw
	o.gw = gw
	o.remote = remote.NewBackend(gw, userID, remote.WithBackendClock(o.now))
	o.connected = true
	o.mu.Unlock()
	if previous != nil {
		previous.Close()
	}
	o.log.Info("connected to remote backend", "remote_url", endpointURL)

	report, err := o.Sync(ctx)
	if err != nil {
		o.log.Warn("sync after connect failed", "error", err)
	} else {
		o.log.Info("sync queue replayed", "applied", report.Applied, "retained", report.Retained,
			"blocked", report.Blocked, "dead_lettered", report.DeadLettered)
	}
	return true
}

// Sync replays the queue against the connected backend.
func (o *Orchestrator) Sync(ctx context.Context) (syncq.Report, error) {
	rb, ok := o.session()
	if !ok {
		return syncq.Report{}, remote.ErrNotConnected
	}
	gw := rb.Gateway()
	report, err := o.queue.Replay(ctx, func(ctx context.Context, item syncq.Item) error {
		rctx, cancel := o.callCtx(ctx)
		defer cancel()
		return remote.Apply(rctx, gw, remote.Kind(item.Type), item.Data)
	})
	if err != nil {
		return report, err
	}
	o.mu.Lock()
	o.lastSync = &SyncSummary{Report: report, At: o.now().UTC()}
	o.mu.Unlock()
	return report, nil
}

// Connected reports whether a remote backend is in use.
func (o *Orchestrator) Connected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.connected
}

// Status returns the session snapshot.
func (o *Orchestrator) Status() Status {
	dead, err := o.queue.DeadLetters()
	if err != nil {
		o.log.Warn("failed to read dead letters", "error", err)
	}
	st := Status{
		Connected:   o.Connected(),
		UserID:      o.UserID(),
		Pending:     o.queue.Len(),
		DeadLetters: len(dead),
		Syncing:     o.queue.Syncing(),
	}
	o.mu.RLock()
	if o.lastSync != nil {
		last := *o.lastSync
		st.LastSync = &last
	}
	o.mu.RUnlock()
	return st
}

// UserID returns the installation's user id, creating it on first use.
func (o *Orchestrator) UserID() string {
	o.mu.RLock()
	id := o.userID
	o.mu.RUnlock()
	if id != "" {
		return id
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.userID != "" {
		return o.userID
	}
	id, err := o.local.UserID(func() string { return "user_" + uuid.NewString() })
	if err != nil {
		// Keep the session usable; the id is regenerated next run.
		id = "user_" + uuid.NewString()
		o.log.Error("failed to persist user id", "error", err)
	}
	o.userID = id
	return id
}

// Close releases the gateway and the local store.
func (o *Orchestrator) Close() error {
	o.disconnect()
	return o.local.Close()
}

func (o *Orchestrator) disconnect() {
	o.mu.Lock()
	gw := o.gw
	o.gw, o.remote, o.connected = nil, nil, false
	o.mu.Unlock()
	if gw != nil {
		gw.Close()
	}
}

func (o *Orchestrator) session() (*remote.Backend, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.remote, o.connected && o.remote != nil
}

func (o *Orchestrator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

// =============================================================================
// Fallback strategy
// =============================================================================

// write applies op remotely when connected, mirroring to the local store on
// success and dropping queued writes the remote copy now supersedes.
// Otherwise payload is queued under kind and op runs locally.
// Only a local failure is returned.
func (o *Orchestrator) write(ctx context.Context, kind remote.Kind, ref syncq.Ref, payload any, op func(context.Context, Backend) error) (bool, error) {
	if rb, ok := o.session(); ok {
		rctx, cancel := o.callCtx(ctx)
		err := op(rctx, rb)
		cancel()
		if err == nil {
			if lerr := op(ctx, o.local); lerr != nil {
				o.log.Warn("local mirror failed", "kind", kind, "error", lerr)
			}
			o.settle(kind, ref)
			return true, nil
		}
		o.log.Warn("remote write failed, storing locally", "kind", kind, "error", err)
	}

	if _, err := o.queue.Enqueue(string(kind), ref, payload); err != nil {
		return false, fmt.Errorf("queue %s: %w", kind, err)
	}
	if err := op(ctx, o.local); err != nil {
		return false, fmt.Errorf("save %s: %w", kind, err)
	}
	return false, nil
}

// settle drops the queued writes of ref.Entity once a newer one reached the
// remote backend. A remote document delete also cascades, so whatever was
// queued for its pages, chunks and conversations goes too.
func (o *Orchestrator) settle(kind remote.Kind, ref syncq.Ref) {
	if ref.Entity == "" {
		return
	}
	drop := o.queue.Supersede
	if kind == remote.KindDocumentDelete {
		drop = o.queue.Purge
	}
	n, err := drop(ref.Entity)
	if err != nil {
		o.log.Warn("failed to drop superseded writes", "entity", ref.Entity, "error", err)
		return
	}
	if n > 0 {
		o.log.Debug("dropped superseded writes", "entity", ref.Entity, "count", n)
	}
}

func entityKey(kind remote.Kind, id string) string {
	return syncq.Key(string(kind), id)
}

// docRef refers to a record owned by a document.
func docRef(kind remote.Kind, id, documentID string) syncq.Ref {
	return syncq.Ref{Entity: entityKey(kind, id), Parent: entityKey(remote.KindDocument, documentID)}
}

// read returns op's remote result when connected and successful, and the
// local result otherwise. Failures yield the zero value.
func read[T any](ctx context.Context, o *Orchestrator, what string, op func(context.Context, Backend) (T, error)) T {
	if rb, ok := o.session(); ok {
		rctx, cancel := o.callCtx(ctx)
		v, err := op(rctx, rb)
		cancel()
		if err == nil {
			return v
		}
		o.log.Warn("remote read failed, reading locally", "op", what, "error", err)
	}
	v, err := op(ctx, o.local)
	if err != nil {
		o.log.Error("local read failed", "op", what, "error", err)
		var zero T
		return zero
	}
	return v
}

func saved(id string, synced bool) SaveResult {
	return SaveResult{Success: true, Synced: synced, ID: id}
}

// =============================================================================
// Documents & pages
// =============================================================================

// SaveDocument saves the document and each of its pages. Synced is true only
// when every record reached the remote backend.
func (o *Orchestrator) SaveDocument(ctx context.Context, doc *store.Document) (SaveResult, error) {
	if err := store.ValidateDocument(doc); err != nil {
		return SaveResult{}, err
	}
	now := o.now().UTC()
	rec := *doc
	rec.Pages = nil
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	pages := make([]store.Page, len(doc.Pages))
	for i, p := range doc.Pages {
		p.DocumentID = rec.ID
		if p.ID == "" {
			p.ID = PageID(rec.ID, p.Number)
		}
		if err := store.ValidatePage(&p); err != nil {
			return SaveResult{}, err
		}
		pages[i] = p
	}

	synced, err := o.write(ctx, remote.KindDocument, syncq.Ref{Entity: entityKey(remote.KindDocument, rec.ID)}, remote.DocumentToRow(&rec, o.UserID()), func(ctx context.Context, b Backend) error {
		return b.SaveDocument(ctx, &rec)
	})
	if err != nil {
		return SaveResult{}, err
	}
	for i := range pages {
		res, err := o.SavePage(ctx, &pages[i])
		if err != nil {
			return SaveResult{}, err
		}
		synced = synced && res.Synced
	}
	return saved(rec.ID, synced), nil
}

// PageID is the id of page n of a document.
func PageID(documentID string, n int) string {
	return fmt.Sprintf("%s-page-%d", documentID, n)
}

// SavePage saves one page.
func (o *Orchestrator) SavePage(ctx context.Context, page *store.Page) (SaveResult, error) {
	if err := store.ValidatePage(page); err != nil {
		return SaveResult{}, err
	}
	rec := *page
	if rec.ID == "" {
		rec.ID = PageID(rec.DocumentID, rec.Number)
	}
	synced, err := o.write(ctx, remote.KindPage, docRef(remote.KindPage, rec.ID, rec.DocumentID), remote.PageToRow(&rec), func(ctx context.Context, b Backend) error {
		return b.SavePage(ctx, &rec)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(rec.ID, synced), nil
}

// GetDocuments returns the user's documents, newest first.
func (o *Orchestrator) GetDocuments(ctx context.Context) []*store.Document {
	return read(ctx, o, "GetDocuments", func(ctx context.Context, b Backend) ([]*store.Document, error) {
		return b.GetDocuments(ctx)
	})
}

// GetDocument returns a document with its pages, or nil.
func (o *Orchestrator) GetDocument(ctx context.Context, id string) *store.Document {
	return read(ctx, o, "GetDocument", func(ctx context.Context, b Backend) (*store.Document, error) {
		return b.GetDocument(ctx, id)
	})
}

// DeleteDocument removes a document remotely when possible (queuing the
// delete otherwise) and always purges it and everything it owns locally.
func (o *Orchestrator) DeleteDocument(ctx context.Context, id string) (SaveResult, error) {
	if id == "" {
		return SaveResult{}, fmt.Errorf("%w: document id is required", store.ErrInvalidInput)
	}
	synced, err := o.write(ctx, remote.KindDocumentDelete, syncq.Ref{Entity: entityKey(remote.KindDocument, id)}, remote.DeletePayload{ID: id}, func(ctx context.Context, b Backend) error {
		return b.DeleteDocument(ctx, id)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(id, synced), nil
}

// =============================================================================
// Chunks & search
// =============================================================================

// SaveChunk saves one chunk with its embedding, if any.
func (o *Orchestrator) SaveChunk(ctx context.Context, chunk *store.Chunk) (SaveResult, error) {
	if err := store.ValidateChunk(chunk); err != nil {
		return SaveResult{}, err
	}
	rec := *chunk
	synced, err := o.write(ctx, remote.KindChunk, docRef(remote.KindChunk, rec.ID, rec.DocumentID), remote.ChunkToRow(&rec), func(ctx context.Context, b Backend) error {
		return b.SaveChunk(ctx, &rec)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(rec.ID, synced), nil
}

// GetChunks returns a document's chunks.
func (o *Orchestrator) GetChunks(ctx context.Context, documentID string) []*store.Chunk {
	return read(ctx, o, "GetChunks", func(ctx context.Context, b Backend) ([]*store.Chunk, error) {
		return b.GetChunks(ctx, documentID)
	})
}

// SearchChunks returns up to limit chunks of documentID most similar to
// query. A missing query yields no results.
func (o *Orchestrator) SearchChunks(ctx context.Context, query []float32, documentID string, limit int) []store.RankedChunk {
	if len(query) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = o.searchLimit
	}
	return read(ctx, o, "SearchChunks", func(ctx context.Context, b Backend) ([]store.RankedChunk, error) {
		return b.SearchChunks(ctx, query, documentID, limit)
	})
}

// =============================================================================
// Graph
// =============================================================================

// SaveNode saves a concept-map node.
func (o *Orchestrator) SaveNode(ctx context.Context, node *store.Node) (SaveResult, error) {
	if err := store.ValidateNode(node); err != nil {
		return SaveResult{}, err
	}
	rec := *node
	synced, err := o.write(ctx, remote.KindNode, docRef(remote.KindNode, rec.ID, rec.DocumentID), remote.NodeToRow(&rec), func(ctx context.Context, b Backend) error {
		return b.SaveNode(ctx, &rec)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(rec.ID, synced), nil
}

// SaveEdge saves a concept-map edge. Endpoints are not checked.
func (o *Orchestrator) SaveEdge(ctx context.Context, edge *store.Edge) (SaveResult, error) {
	if err := store.ValidateEdge(edge); err != nil {
		return SaveResult{}, err
	}
	rec := *edge
	synced, err := o.write(ctx, remote.KindEdge, docRef(remote.KindEdge, rec.ID, rec.DocumentID), remote.EdgeToRow(&rec), func(ctx context.Context, b Backend) error {
		return b.SaveEdge(ctx, &rec)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(rec.ID, synced), nil
}

// GetGraph returns a document's nodes and edges. It is never nil.
func (o *Orchestrator) GetGraph(ctx context.Context, documentID string) *store.Graph {
	g := read(ctx, o, "GetGraph", func(ctx context.Context, b Backend) (*store.Graph, error) {
		return b.GetGraph(ctx, documentID)
	})
	if g == nil {
		return &store.Graph{}
	}
	if dangling := View(g).Dangling(); len(dangling) > 0 {
		o.log.Debug("concept map has dangling edges", "document_id", documentID, "count", len(dangling))
	}
	return g
}

// GraphStats summarises a document's concept map, ranking the top most
// connected nodes.
func (o *Orchestrator) GraphStats(ctx context.Context, documentID string, top int) graph.Stats {
	return View(o.GetGraph(ctx, documentID)).Stats(top)
}

// Neighborhood returns one node of a document's concept map with its edges,
// or nil when the map never mentions nodeID.
func (o *Orchestrator) Neighborhood(ctx context.Context, documentID, nodeID string) *graph.Neighborhood {
	return View(o.GetGraph(ctx, documentID)).Neighborhood(nodeID)
}

// View builds the adjacency view of a stored graph.
func View(g *store.Graph) *graph.Graph {
	view := graph.New()
	for _, n := range g.Nodes {
		view.AddNode(n.ID, n.Label, string(n.Type))
	}
	for _, e := range g.Edges {
		view.AddEdge(&graph.Edge{ID: e.ID, Source: e.Source, Target: e.Target, Relation: e.Relationship})
	}
	return view
}

// =============================================================================
// Annotations
// =============================================================================

// SaveAnnotation saves an annotation, stamping its timestamps.
func (o *Orchestrator) SaveAnnotation(ctx context.Context, a *store.Annotation) (SaveResult, error) {
	if err := store.ValidateAnnotation(a); err != nil {
		return SaveResult{}, err
	}
	now := o.now().UTC()
	rec := *a
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	synced, err := o.write(ctx, remote.KindAnnotation, docRef(remote.KindAnnotation, rec.ID, rec.DocumentID), remote.AnnotationToRow(&rec, o.UserID()), func(ctx context.Context, b Backend) error {
		return b.SaveAnnotation(ctx, &rec)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(rec.ID, synced), nil
}

// GetAnnotations returns a document's annotations.
func (o *Orchestrator) GetAnnotations(ctx context.Context, documentID string) []*store.Annotation {
	return read(ctx, o, "GetAnnotations", func(ctx context.Context, b Backend) ([]*store.Annotation, error) {
		return b.GetAnnotations(ctx, documentID)
	})
}

// =============================================================================
// Conversations & messages
// =============================================================================

// GetOrCreateConversation returns the session user's conversation about
// documentID, creating it on first use.
func (o *Orchestrator) GetOrCreateConversation(ctx context.Context, documentID string) (*store.Conversation, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", store.ErrInvalidInput)
	}
	userID := o.UserID()

	// Reuse a conversation created offline so queued messages keep their parent.
	candidate, err := o.local.FindConversation(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		now := o.now().UTC()
		candidate = &store.Conversation{
			ID:         "conv_" + uuid.NewString(),
			DocumentID: documentID,
			UserID:     userID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	if rb, ok := o.session(); ok {
		conv, err := o.remoteConversation(ctx, rb, candidate)
		if err == nil {
			if lerr := o.local.SaveConversation(ctx, conv); lerr != nil {
				o.log.Warn("local mirror failed", "kind", remote.KindConversation, "error", lerr)
			}
			if conv.ID == candidate.ID {
				o.settle(remote.KindConversation, syncq.Ref{Entity: entityKey(remote.KindConversation, conv.ID)})
			}
			return conv, nil
		}
		o.log.Warn("remote conversation lookup failed, using local", "document_id", documentID, "error", err)
	}

	conv, created, err := o.local.GetOrCreateConversation(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if created {
		if _, err := o.queue.Enqueue(string(remote.KindConversation), syncq.Ref{
			Entity: entityKey(remote.KindConversation, conv.ID),
			Parent: entityKey(remote.KindDocument, conv.DocumentID),
		}, remote.ConversationToRow(conv)); err != nil {
			return nil, fmt.Errorf("queue %s: %w", remote.KindConversation, err)
		}
	}
	return conv, nil
}

func (o *Orchestrator) remoteConversation(ctx context.Context, rb *remote.Backend, candidate *store.Conversation) (*store.Conversation, error) {
	rctx, cancel := o.callCtx(ctx)
	defer cancel()

	existing, err := rb.FindConversation(rctx, candidate.DocumentID, candidate.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if err := rb.SaveConversation(rctx, candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

// SaveMessage appends msg to a conversation, generating its id and creation
// time when absent.
func (o *Orchestrator) SaveMessage(ctx context.Context, conversationID string, msg *store.Message) (SaveResult, error) {
	if msg == nil {
		return SaveResult{}, fmt.Errorf("%w: message is required", store.ErrInvalidInput)
	}
	rec := *msg
	rec.ConversationID = conversationID
	if rec.ID == "" {
		rec.ID = "msg_" + uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = o.now().UTC()
	}
	if err := store.ValidateMessage(&rec); err != nil {
		return SaveResult{}, err
	}
	synced, err := o.write(ctx, remote.KindMessage, syncq.Ref{
		Entity: entityKey(remote.KindMessage, rec.ID),
		Parent: entityKey(remote.KindConversation, rec.ConversationID),
	}, remote.MessageToRow(&rec), func(ctx context.Context, b Backend) error {
		return b.AppendMessage(ctx, &rec)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(rec.ID, synced), nil
}

// GetMessages returns a conversation's messages in creation order.
func (o *Orchestrator) GetMessages(ctx context.Context, conversationID string) []*store.Message {
	return read(ctx, o, "GetMessages", func(ctx context.Context, b Backend) ([]*store.Message, error) {
		return b.GetMessages(ctx, conversationID)
	})
}

// =============================================================================
// Vocabulary
// =============================================================================

// SaveVocabulary saves a vocabulary entry.
func (o *Orchestrator) SaveVocabulary(ctx context.Context, v *store.VocabularyEntry) (SaveResult, error) {
	if err := store.ValidateVocabulary(v); err != nil {
		return SaveResult{}, err
	}
	rec := *v
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = o.now().UTC()
	}
	synced, err := o.write(ctx, remote.KindVocabulary, docRef(remote.KindVocabulary, rec.ID, rec.DocumentID), remote.VocabularyToRow(&rec, o.UserID()), func(ctx context.Context, b Backend) error {
		return b.SaveVocabulary(ctx, &rec)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(rec.ID, synced), nil
}

// GetVocabulary returns a document's vocabulary, newest first.
func (o *Orchestrator) GetVocabulary(ctx context.Context, documentID string) []*store.VocabularyEntry {
	return read(ctx, o, "GetVocabulary", func(ctx context.Context, b Backend) ([]*store.VocabularyEntry, error) {
		return b.GetVocabulary(ctx, documentID)
	})
}

// GetAllVocabulary returns the user's whole vocabulary, newest first.
func (o *Orchestrator) GetAllVocabulary(ctx context.Context) []*store.VocabularyEntry {
	return read(ctx, o, "GetAllVocabulary", func(ctx context.Context, b Backend) ([]*store.VocabularyEntry, error) {
		return b.GetAllVocabulary(ctx)
	})
}

// DeleteVocabulary removes one entry.
func (o *Orchestrator) DeleteVocabulary(ctx context.Context, id string) (SaveResult, error) {
	if id == "" {
		return SaveResult{}, fmt.Errorf("%w: vocabulary id is required", store.ErrInvalidInput)
	}
	synced, err := o.write(ctx, remote.KindVocabularyDelete, syncq.Ref{Entity: entityKey(remote.KindVocabulary, id)}, remote.DeletePayload{ID: id}, func(ctx context.Context, b Backend) error {
		return b.DeleteVocabulary(ctx, id)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(id, synced), nil
}

// =============================================================================
// Settings
// =============================================================================

// SaveSettings replaces the user's preferences.
func (o *Orchestrator) SaveSettings(ctx context.Context, settings store.Settings) (SaveResult, error) {
	userID := o.UserID()
	row := remote.SettingsToRow(settings, userID, o.now().UTC())
	synced, err := o.write(ctx, remote.KindSettings, syncq.Ref{Entity: entityKey(remote.KindSettings, userID)}, row, func(ctx context.Context, b Backend) error {
		return b.SaveSettings(ctx, row.Preferences)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return saved(userID, synced), nil
}

// GetSettings returns the user's preferences. A remote copy, when present,
// also refreshes the local one.
func (o *Orchestrator) GetSettings(ctx context.Context) store.Settings {
	if rb, ok := o.session(); ok {
		rctx, cancel := o.callCtx(ctx)
		settings, err := rb.GetSettings(rctx)
		cancel()
		switch {
		case err != nil:
			o.log.Warn("remote read failed, reading locally", "op", "GetSettings", "error", err)
		case settings != nil:
			if lerr := o.local.SaveSettings(ctx, settings); lerr != nil {
				o.log.Warn("local mirror failed", "kind", remote.KindSettings, "error", lerr)
			}
			return settings
		}
	}
	settings, err := o.local.GetSettings(ctx)
	if err != nil {
		o.log.Error("local read failed", "op", "GetSettings", "error", err)
		return store.Settings{}
	}
	return settings
}
