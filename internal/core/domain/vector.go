package domain

import (
	"fmt"
	"math"
	"sort"
)

// SparseVector is a variable-length weighted term representation.
// Indices are sorted ascending and unique; values are non-negative.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Len returns the number of non-zero entries.
func (v *SparseVector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Indices)
}

// Validate checks the structural invariants of the vector.
func (v *SparseVector) Validate() error {
	if v == nil {
		return nil
	}
	if len(v.Indices) != len(v.Values) {
		return fmt.Errorf("%w: sparse vector has %d indices and %d values",
			ErrInvalidInput, len(v.Indices), len(v.Values))
	}
	for i := range v.Indices {
		if i > 0 && v.Indices[i] <= v.Indices[i-1] {
			return fmt.Errorf("%w: sparse indices must be strictly ascending", ErrInvalidInput)
		}
		if v.Values[i] < 0 || math.IsNaN(float64(v.Values[i])) {
			return fmt.Errorf("%w: sparse value at %d is negative or NaN", ErrInvalidInput, i)
		}
	}
	return nil
}

// Dot returns the inner product of two sorted sparse vectors.
func (v *SparseVector) Dot(other *SparseVector) float64 {
	if v.Len() == 0 || other.Len() == 0 {
		return 0
	}
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(other.Indices) {
		switch {
		case v.Indices[i] == other.Indices[j]:
			sum += float64(v.Values[i]) * float64(other.Values[j])
			i++
			j++
		case v.Indices[i] < other.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// NewSparseVector builds a sorted sparse vector from an index to weight map.
// Zero weights are dropped.
func NewSparseVector(weights map[uint32]float32) *SparseVector {
	v := &SparseVector{
		Indices: make([]uint32, 0, len(weights)),
		Values:  make([]float32, 0, len(weights)),
	}
	for idx, w := range weights {
		if w > 0 {
			v.Indices = append(v.Indices, idx)
		}
	}
	sort.Slice(v.Indices, func(a, b int) bool { return v.Indices[a] < v.Indices[b] })
	for _, idx := range v.Indices {
		v.Values = append(v.Values, weights[idx])
	}
	return v
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Point is one chunk with its embeddings, as written to a vector index.
type Point struct {
	Chunk  Chunk
	Dense  []float32
	Sparse *SparseVector
}

// ScoredChunk is a chunk returned from a vector index search.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// IndexSchema describes the vector fields of an index collection.
type IndexSchema struct {
	CollectionID string
	DenseDim     int
	HasSparse    bool
}

// SearchType returns the search type implied by the schema.
func (s IndexSchema) SearchType() SearchType {
	if s.HasSparse {
		return SearchTypeHybrid
	}
	return SearchTypeDense
}

// SearchRequest is a vector index query.
type SearchRequest struct {
	// Dense is the query embedding. Required.
	Dense []float32

	// Sparse is the query's sparse vector. Ignored by dense-only collections;
	// nil forces pure dense search.
	Sparse *SparseVector

	// Limit is the number of results to return.
	Limit int

	// PaperIDs restricts results to the listed papers. Empty means all.
	PaperIDs []string
}
