package vector

import (
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
)

func TestIndex_RoundTrip(t *testing.T) {
	fs, err := mem.NewFS()
	if err != nil {
		t.Fatal(err)
	}

	// 1. Create and Record
	{
		ix := NewIndex()
		if err := ix.Add("chunk-1", []float32{0.1, 0.2, 0.3, 0.0}); err != nil {
			t.Fatal(err)
		}
		if err := ix.Add("chunk-2", []float32{0.9, -0.8, 0.1, 0.0}); err != nil {
			t.Fatal(err)
		}
		if err := ix.Add("chunk-3", []float32{0.1, 0.21, 0.31, 0.0}); err != nil {
			t.Fatal(err)
		}

		if err := ix.Save(fs, "doc-1.hnsw"); err != nil {
			t.Fatal(err)
		}
	}

	// 2. Load and Query
	{
		ix, err := LoadIndex(fs, "doc-1.hnsw")
		if err != nil {
			t.Fatal(err)
		}
		if ix.Len() != 3 {
			t.Fatalf("expected 3 ids, got %d", ix.Len())
		}

		results, err := ix.Search([]float32{0.1, 0.2, 0.3, 0.0}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) < 2 {
			t.Fatalf("expected at least 2 results, got %d", len(results))
		}
		if results[0] != "chunk-1" {
			t.Errorf("expected top result chunk-1, got %s", results[0])
		}
		if results[1] != "chunk-3" {
			t.Errorf("expected second result chunk-3, got %s", results[1])
		}
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := NewIndex()
	if err := ix.Add("a", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add("b", []float32{1, 0, 0}); err == nil {
		t.Error("expected dimension mismatch on Add")
	}
	if _, err := ix.Search([]float32{1, 0, 0}, 1); err == nil {
		t.Error("expected dimension mismatch on Search")
	}
}

func TestIndex_EmptySearch(t *testing.T) {
	ids, err := NewIndex().Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no results, got %v", ids)
	}
}

func TestLoadIndex_Missing(t *testing.T) {
	fs, err := mem.NewFS()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIndex(fs, "nope.hnsw"); err == nil {
		t.Error("expected error for missing index file")
	}
}
