package vector

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector" // fogfish/hnsw/vector alias, imports kshard/vector
	"github.com/hack-pad/hackpadfs"
	kvector "github.com/kshard/vector" // Underlying vector types
)

// Index is an HNSW graph over one document's chunk embeddings.
// HNSW keys are uint32, so chunk ids are kept in insertion order and
// key k maps to ids[k-1].
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.HNSW[vector.VF32]
	ids   []string
	dim   int
}

// snapshot is the gob-encoded form of an Index.
type snapshot struct {
	IDs   []string
	Nodes hnsw.Nodes[vector.VF32]
}

// NewIndex creates an empty cosine index.
func NewIndex() *Index {
	return &Index{
		graph: hnsw.New[vector.VF32](vector.SurfaceVF32(kvector.Cosine())),
	}
}

// Add inserts a vector for a chunk id.
// Returns error if vector dimension doesn't match existing index.
func (ix *Index) Add(id string, vec []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(vec) == 0 {
		return fmt.Errorf("empty vector for %s", id)
	}
	if ix.dim != 0 && len(vec) != ix.dim {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", ix.dim, len(vec))
	}
	ix.dim = len(vec)

	ix.ids = append(ix.ids, id)
	ix.graph.Insert(vector.VF32{
		Key: uint32(len(ix.ids)),
		Vec: vec,
	})
	return nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// IDs returns the indexed chunk ids in insertion order.
func (ix *Index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.ids...)
}

// Search returns the chunk ids of the approximate k nearest vectors.
func (ix *Index) Search(vec []float32, k int) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.ids) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", ix.dim, len(vec))
	}

	ef := k * 2
	if ef < 100 {
		ef = 100
	}

	results := ix.graph.Search(vector.VF32{Vec: vec}, k, ef)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if r.Key == 0 || int(r.Key) > len(ix.ids) {
			continue
		}
		ids = append(ids, ix.ids[r.Key-1])
	}
	return ids, nil
}

// Save persists the index to path in fs.
func (ix *Index) Save(fs hackpadfs.FS, path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(snapshot{IDs: ix.ids, Nodes: ix.graph.Nodes()}); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := hackpadfs.WriteFullFile(fs, path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// LoadIndex reads an index previously written by Save.
func LoadIndex(fs hackpadfs.FS, path string) (*Index, error) {
	content, err := hackpadfs.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	dec := gob.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}

	ix := &Index{
		graph: hnsw.FromNodes[vector.VF32](
			vector.SurfaceVF32(kvector.Cosine()),
			snap.Nodes,
		),
		ids: snap.IDs,
	}
	if ix.graph.Size() > 0 {
		ix.dim = len(ix.graph.Head().Vec)
	}
	return ix, nil
}
