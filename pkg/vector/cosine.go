// Package vector ranks embedding vectors by cosine similarity and keeps an
// optional HNSW candidate index for large chunk sets.
package vector

import (
	"math"
	"slices"
)

// DefaultLimit is the result count used when a caller passes limit <= 0.
const DefaultLimit = 5

// CosineSimilarity returns dot(a,b)/(|a||b|).
// It returns 0 when either vector is empty, when their lengths differ, or
// when either has zero magnitude. A 0 result is therefore not proof of
// orthogonality.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}

// Scored pairs a candidate with its similarity to the query.
type Scored[T any] struct {
	Item       T
	Similarity float64
}

// Rank scores every candidate against query, sorts descending and keeps
// the first limit results. Equal scores keep their input order.
func Rank[T any](query []float32, candidates []T, embedding func(T) []float32, limit int) []Scored[T] {
	if len(query) == 0 || len(candidates) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	scored := make([]Scored[T], len(candidates))
	for i, c := range candidates {
		scored[i] = Scored[T]{Item: c, Similarity: CosineSimilarity(query, embedding(c))}
	}
	slices.SortStableFunc(scored, func(a, b Scored[T]) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
