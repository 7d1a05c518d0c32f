package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the remote tables and the search_chunks function.
// Every statement is idempotent.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    page_count INTEGER NOT NULL DEFAULT 0 CHECK (page_count >= 0),
    full_text TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS pages (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    page_number INTEGER NOT NULL CHECK (page_number >= 1),
    text_content TEXT NOT NULL DEFAULT '',
    paragraphs JSONB NOT NULL DEFAULT '[]',
    UNIQUE (document_id, page_number)
);

CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL CHECK (chunk_index >= 0),
    text_content TEXT NOT NULL DEFAULT '',
    embedding vector
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_index);

CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    node_type TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    annotation_id TEXT,
    metadata JSONB
);

CREATE TABLE IF NOT EXISTS edges (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    source_node_id TEXT NOT NULL,
    target_node_id TEXT NOT NULL,
    relationship TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS annotations (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    page_number INTEGER NOT NULL,
    selected_text TEXT NOT NULL CHECK (selected_text <> ''),
    annotation_type TEXT NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    concept_label TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (document_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    agent_name TEXT,
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS vocabulary (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    word TEXT NOT NULL,
    translation TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    word_type TEXT NOT NULL DEFAULT '',
    review_count INTEGER NOT NULL DEFAULT 0 CHECK (review_count >= 0),
    last_reviewed TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id TEXT PRIMARY KEY,
    preferences JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE OR REPLACE FUNCTION search_chunks(query_embedding vector, match_document_id text, match_count int)
RETURNS TABLE (id text, document_id text, chunk_index int, text_content text, embedding vector, similarity float8)
LANGUAGE sql STABLE AS $$
    SELECT c.id, c.document_id, c.chunk_index, c.text_content, c.embedding,
           1 - (c.embedding <=> query_embedding) AS similarity
    FROM chunks c
    WHERE c.document_id = match_document_id AND c.embedding IS NOT NULL
    ORDER BY c.embedding <=> query_embedding, c.chunk_index
    LIMIT match_count;
$$;
`

// Credentials locate the remote backend. The API key, when set, is used as
// the connection password.
type Credentials struct {
	URL    string
	APIKey string
}

// Empty reports whether no endpoint was supplied.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.URL) == ""
}

// Postgres is the pgx-backed Gateway.
type Postgres struct {
	pool *pgxpool.Pool
}

// Dial opens a pool and verifies it with a ping.
func Dial(ctx context.Context, creds Credentials) (*Postgres, error) {
	if creds.Empty() {
		return nil, ErrNotConnected
	}
	cfg, err := pgxpool.ParseConfig(creds.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote url: %w", err)
	}
	if creds.APIKey != "" {
		cfg.ConnConfig.Password = creds.APIKey
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach remote: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema applies Schema.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// =============================================================================
// Column codecs
// =============================================================================

// vectorText renders an embedding in pgvector's text form, or nil.
func vectorText(v []float32) *string {
	if len(v) == 0 {
		return nil
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	s := "[" + strings.Join(parts, ",") + "]"
	return &s
}

func parseVector(s *string) ([]float32, error) {
	if s == nil {
		return nil, nil
	}
	body := strings.Trim(strings.TrimSpace(*s), "[]")
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// jsonText renders v as a JSON document, or nil for an absent value.
func jsonText(v any) (*string, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		if len(raw) == 0 {
			return nil, nil
		}
		s := string(raw)
		return &s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func rawJSON(s *string) json.RawMessage {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// one returns the single row collected by fn, or nil when there is none.
func one[T any](rows pgx.Rows, fn pgx.RowToFunc[T]) (*T, error) {
	row, err := pgx.CollectOneRow(rows, fn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// =============================================================================
// Documents & pages
// =============================================================================

func (p *Postgres) UpsertDocument(ctx context.Context, r DocumentRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, name, page_count, full_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			page_count = excluded.page_count,
			full_text = excluded.full_text,
			updated_at = excluded.updated_at
	`, r.ID, r.UserID, r.Name, r.PageCount, r.FullText, r.CreatedAt, r.UpdatedAt)
	return err
}

const documentColumns = `id, user_id, name, page_count, full_text, created_at, updated_at`

func scanDocument(row pgx.CollectableRow) (DocumentRow, error) {
	var r DocumentRow
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.PageCount, &r.FullText, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (p *Postgres) ListDocuments(ctx context.Context, userID string) ([]DocumentRow, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanDocument)
}

func (p *Postgres) GetDocument(ctx context.Context, id string) (*DocumentRow, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return one(rows, scanDocument)
}

// DeleteDocument relies on ON DELETE CASCADE for owned rows.
func (p *Postgres) DeleteDocument(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

func (p *Postgres) UpsertPage(ctx context.Context, r PageRow) error {
	paragraphs := r.Paragraphs
	if paragraphs == nil {
		paragraphs = []string{}
	}
	doc, err := jsonText(paragraphs)
	if err != nil {
		return fmt.Errorf("%w: paragraphs: %v", ErrInvalidPayload, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO pages (id, document_id, page_number, text_content, paragraphs)
		VALUES ($1, $2, $3, $4, $5::text::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			page_number = excluded.page_number,
			text_content = excluded.text_content,
			paragraphs = excluded.paragraphs
	`, r.ID, r.DocumentID, r.PageNumber, r.TextContent, doc)
	return err
}

func (p *Postgres) ListPages(ctx context.Context, documentID string) ([]PageRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, page_number, text_content, paragraphs::text
		FROM pages WHERE document_id = $1 ORDER BY page_number
	`, documentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PageRow, error) {
		var (
			r          PageRow
			paragraphs string
		)
		if err := row.Scan(&r.ID, &r.DocumentID, &r.PageNumber, &r.TextContent, &paragraphs); err != nil {
			return r, err
		}
		if err := json.Unmarshal([]byte(paragraphs), &r.Paragraphs); err != nil {
			return r, fmt.Errorf("invalid paragraphs for %s: %w", r.ID, err)
		}
		return r, nil
	})
}

// =============================================================================
// Chunks
// =============================================================================

func (p *Postgres) UpsertChunk(ctx context.Context, r ChunkRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, text_content, embedding)
		VALUES ($1, $2, $3, $4, $5::text::vector)
		ON CONFLICT (id) DO UPDATE SET
			chunk_index = excluded.chunk_index,
			text_content = excluded.text_content,
			embedding = excluded.embedding
	`, r.ID, r.DocumentID, r.ChunkIndex, r.TextContent, vectorText(r.Embedding))
	return err
}

func scanChunk(row pgx.CollectableRow) (ChunkRow, error) {
	var (
		r   ChunkRow
		vec *string
	)
	if err := row.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.TextContent, &vec); err != nil {
		return r, err
	}
	emb, err := parseVector(vec)
	r.Embedding = emb
	return r, err
}

func (p *Postgres) ListChunks(ctx context.Context, documentID string) ([]ChunkRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, text_content, embedding::text
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanChunk)
}

// SearchChunks calls the search_chunks function and trusts its ranking.
func (p *Postgres) SearchChunks(ctx context.Context, query []float32, documentID string, limit int) ([]ChunkMatchRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, text_content, embedding::text, similarity
		FROM search_chunks($1::text::vector, $2, $3)
	`, vectorText(query), documentID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChunkMatchRow, error) {
		var (
			r   ChunkMatchRow
			vec *string
		)
		if err := row.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.TextContent, &vec, &r.Similarity); err != nil {
			return r, err
		}
		emb, err := parseVector(vec)
		r.Embedding = emb
		return r, err
	})
}

// =============================================================================
// Graph
// =============================================================================

func (p *Postgres) UpsertNode(ctx context.Context, r NodeRow) error {
	meta, err := jsonText(r.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrInvalidPayload, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO nodes (id, document_id, label, node_type, description, source, annotation_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label,
			node_type = excluded.node_type,
			description = excluded.description,
			source = excluded.source,
			annotation_id = excluded.annotation_id,
			metadata = excluded.metadata
	`, r.ID, r.DocumentID, r.Label, r.NodeType, r.Description, r.Source, nullable(r.AnnotationID), meta)
	return err
}

func (p *Postgres) ListNodes(ctx context.Context, documentID string) ([]NodeRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, label, node_type, description, source, annotation_id, metadata::text
		FROM nodes WHERE document_id = $1 ORDER BY id
	`, documentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (NodeRow, error) {
		var (
			r            NodeRow
			annotationID *string
			meta         *string
		)
		err := row.Scan(&r.ID, &r.DocumentID, &r.Label, &r.NodeType, &r.Description, &r.Source, &annotationID, &meta)
		r.AnnotationID = deref(annotationID)
		r.Metadata = rawJSON(meta)
		return r, err
	})
}

func (p *Postgres) UpsertEdge(ctx context.Context, r EdgeRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO edges (id, document_id, source_node_id, target_node_id, relationship)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			source_node_id = excluded.source_node_id,
			target_node_id = excluded.target_node_id,
			relationship = excluded.relationship
	`, r.ID, r.DocumentID, r.SourceNodeID, r.TargetNodeID, r.Relationship)
	return err
}

func (p *Postgres) ListEdges(ctx context.Context, documentID string) ([]EdgeRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, source_node_id, target_node_id, relationship
		FROM edges WHERE document_id = $1 ORDER BY id
	`, documentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EdgeRow, error) {
		var r EdgeRow
		err := row.Scan(&r.ID, &r.DocumentID, &r.SourceNodeID, &r.TargetNodeID, &r.Relationship)
		return r, err
	})
}

// =============================================================================
// Annotations
// =============================================================================

func (p *Postgres) UpsertAnnotation(ctx context.Context, r AnnotationRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO annotations (id, document_id, user_id, page_number, selected_text, annotation_type, note, concept_label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			page_number = excluded.page_number,
			selected_text = excluded.selected_text,
			annotation_type = excluded.annotation_type,
			note = excluded.note,
			concept_label = excluded.concept_label,
			updated_at = excluded.updated_at
	`, r.ID, r.DocumentID, r.UserID, r.PageNumber, r.SelectedText, r.AnnotationType, r.Note, nullable(r.ConceptLabel), r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *Postgres) ListAnnotations(ctx context.Context, documentID string) ([]AnnotationRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, user_id, page_number, selected_text, annotation_type, note, concept_label, created_at, updated_at
		FROM annotations WHERE document_id = $1 ORDER BY created_at, id
	`, documentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AnnotationRow, error) {
		var (
			r     AnnotationRow
			label *string
		)
		err := row.Scan(&r.ID, &r.DocumentID, &r.UserID, &r.PageNumber, &r.SelectedText, &r.AnnotationType, &r.Note, &label, &r.CreatedAt, &r.UpdatedAt)
		r.ConceptLabel = deref(label)
		return r, err
	})
}

// =============================================================================
// Conversations & messages
// =============================================================================

func (p *Postgres) FindConversation(ctx context.Context, documentID, userID string) (*ConversationRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, user_id, created_at, updated_at
		FROM conversations WHERE document_id = $1 AND user_id = $2
	`, documentID, userID)
	if err != nil {
		return nil, err
	}
	return one(rows, func(row pgx.CollectableRow) (ConversationRow, error) {
		var r ConversationRow
		err := row.Scan(&r.ID, &r.DocumentID, &r.UserID, &r.CreatedAt, &r.UpdatedAt)
		return r, err
	})
}

func (p *Postgres) UpsertConversation(ctx context.Context, r ConversationRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO conversations (id, document_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at
	`, r.ID, r.DocumentID, r.UserID, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *Postgres) InsertMessage(ctx context.Context, r MessageRow) error {
	meta, err := jsonText(r.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrInvalidPayload, err)
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, agent_name, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6::text::jsonb, $7)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.ConversationID, r.Role, r.Content, nullable(r.AgentName), meta, r.CreatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, r.ConversationID, r.CreatedAt)
		return err
	})
}

func (p *Postgres) ListMessages(ctx context.Context, conversationID string) ([]MessageRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, agent_name, metadata::text, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at, id
	`, conversationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MessageRow, error) {
		var (
			r     MessageRow
			agent *string
			meta  *string
		)
		err := row.Scan(&r.ID, &r.ConversationID, &r.Role, &r.Content, &agent, &meta, &r.CreatedAt)
		r.AgentName = deref(agent)
		r.Metadata = rawJSON(meta)
		return r, err
	})
}

// =============================================================================
// Vocabulary
// =============================================================================

func (p *Postgres) UpsertVocabulary(ctx context.Context, r VocabularyRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO vocabulary (id, document_id, user_id, word, translation, note, word_type, review_count, last_reviewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			word = excluded.word,
			translation = excluded.translation,
			note = excluded.note,
			word_type = excluded.word_type,
			review_count = excluded.review_count,
			last_reviewed = excluded.last_reviewed
	`, r.ID, r.DocumentID, r.UserID, r.Word, r.Translation, r.Note, r.WordType, r.ReviewCount, r.LastReviewed, r.CreatedAt)
	return err
}

const vocabularyColumns = `id, document_id, user_id, word, translation, note, word_type, review_count, last_reviewed, created_at`

func scanVocabulary(row pgx.CollectableRow) (VocabularyRow, error) {
	var r VocabularyRow
	err := row.Scan(&r.ID, &r.DocumentID, &r.UserID, &r.Word, &r.Translation, &r.Note, &r.WordType, &r.ReviewCount, &r.LastReviewed, &r.CreatedAt)
	return r, err
}

func (p *Postgres) ListVocabulary(ctx context.Context, documentID, userID string) ([]VocabularyRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+vocabularyColumns+` FROM vocabulary
		WHERE document_id = $1 AND user_id = $2 ORDER BY created_at DESC
	`, documentID, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanVocabulary)
}

func (p *Postgres) ListAllVocabulary(ctx context.Context, userID string) ([]VocabularyRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+vocabularyColumns+` FROM vocabulary
		WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanVocabulary)
}

func (p *Postgres) DeleteVocabulary(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM vocabulary WHERE id = $1`, id)
	return err
}

// =============================================================================
// Settings
// =============================================================================

func (p *Postgres) UpsertSettings(ctx context.Context, r SettingsRow) error {
	prefs, err := jsonText(SettingsFromRow(r))
	if err != nil {
		return fmt.Errorf("%w: preferences: %v", ErrInvalidPayload, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, preferences, updated_at)
		VALUES ($1, $2::text::jsonb, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			preferences = excluded.preferences,
			updated_at = excluded.updated_at
	`, r.UserID, prefs, r.UpdatedAt)
	return err
}

func (p *Postgres) GetSettings(ctx context.Context, userID string) (*SettingsRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT user_id, preferences::text, updated_at FROM user_settings WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return one(rows, func(row pgx.CollectableRow) (SettingsRow, error) {
		var (
			r     SettingsRow
			prefs string
		)
		if err := row.Scan(&r.UserID, &prefs, &r.UpdatedAt); err != nil {
			return r, err
		}
		if err := json.Unmarshal([]byte(prefs), &r.Preferences); err != nil {
			return r, fmt.Errorf("invalid preferences for %s: %w", r.UserID, err)
		}
		return r, nil
	})
}

// Compile-time interface check
var _ Gateway = (*Postgres)(nil)
