// Package ingest turns extracted plain text into the page and chunk records
// the orchestrator persists.
package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kittclouds/readerkit/internal/orchestrator"
	"github.com/kittclouds/readerkit/internal/store"
)

const (
	// ChunkSize is the number of characters per chunk.
	ChunkSize = 1500

	// MinParagraph is the shortest trimmed paragraph worth keeping.
	MinParagraph = 20

	// PageBreak separates pages in extracted text (pdftotext emits it).
	PageBreak = "\f"
)

var blankLines = regexp.MustCompile(`\n[ \t]*\n+`)

// Result is an ingested document with its chunks. Embeddings are left nil.
type Result struct {
	Document *store.Document
	Chunks   []store.Chunk
}

// Text builds a document from extracted text. Pages are split on form feeds;
// text without one is a single page.
func Text(id, name, text string) Result {
	pages := Pages(id, text)
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	full := strings.Join(texts, "\n\n")

	return Result{
		Document: &store.Document{
			ID:        id,
			Name:      name,
			PageCount: len(pages),
			FullText:  full,
			Pages:     pages,
		},
		Chunks: Chunks(id, full, ChunkSize),
	}
}

// Pages splits text into numbered pages. Empty trailing pages are dropped.
func Pages(documentID, text string) []store.Page {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), PageBreak)
	for len(raw) > 1 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}

	pages := make([]store.Page, 0, len(raw))
	for i, body := range raw {
		n := i + 1
		body = strings.TrimSpace(body)
		pages = append(pages, store.Page{
			ID:         orchestrator.PageID(documentID, n),
			DocumentID: documentID,
			Number:     n,
			Text:       body,
			Paragraphs: Paragraphs(body),
		})
	}
	return pages
}

// Paragraphs splits on blank lines and keeps paragraphs longer than
// MinParagraph characters.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range blankLines.Split(text, -1) {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) > MinParagraph {
			out = append(out, p)
		}
	}
	return out
}

// Chunks cuts text into consecutive pieces of size characters. Indexes are
// contiguous from 0 and pieces never split a UTF-8 sequence.
func Chunks(documentID, text string, size int) []store.Chunk {
	if size <= 0 {
		size = ChunkSize
	}
	var chunks []store.Chunk
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, chunk(documentID, len(chunks), text[start:i]))
			start, count = i, 0
		}
		count++
	}
	if start < len(text) {
		chunks = append(chunks, chunk(documentID, len(chunks), text[start:]))
	}
	return chunks
}

// ChunkID is the id of chunk i of a document.
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, i)
}

func chunk(documentID string, i int, text string) store.Chunk {
	return store.Chunk{
		ID:         ChunkID(documentID, i),
		DocumentID: documentID,
		Index:      i,
		Text:       text,
	}
}
