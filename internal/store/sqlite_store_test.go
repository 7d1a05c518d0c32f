package store

import (
	"context"
	"path/filepath"
	"testing"
)

// =============================================================================
// SQLite file-backed key-space
// =============================================================================

func TestSQLiteKVSurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "readerkit.db")
	ctx := context.Background()

	kv, err := NewSQLiteKVWithDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to open key-space: %v", err)
	}
	l := NewLocal(kv)
	if err := l.SaveDocument(ctx, &Document{ID: "doc-1", Name: "Walden", PageCount: 2}); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	if err := l.SavePage(ctx, &Page{ID: "doc-1-page-1", DocumentID: "doc-1", Number: 1, Text: "When I wrote"}); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	kv, err = NewSQLiteKVWithDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to reopen key-space: %v", err)
	}
	defer kv.Close()

	doc, err := NewLocal(kv).GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc == nil {
		t.Fatal("document lost across reopen")
	}
	if doc.Name != "Walden" || len(doc.Pages) != 1 {
		t.Errorf("unexpected document after reopen: %+v", doc)
	}
}

func TestSQLiteKVKeysSorted(t *testing.T) {
	kv, err := NewSQLiteKV()
	if err != nil {
		t.Fatalf("Failed to create key-space: %v", err)
	}
	defer kv.Close()

	for _, k := range []string{"vocabulary", "chunks", "messages"} {
		if err := kv.Put(k, []byte("[]")); err != nil {
			t.Fatalf("Put %s failed: %v", k, err)
		}
	}

	keys, err := kv.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"chunks", "messages", "vocabulary"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %s, want %s", i, keys[i], want[i])
		}
	}
}
