// Package sparse provides a hashing sparse encoder for hybrid search.
//
// Each distinct term of a text maps to a 32-bit FNV-1a index and gets the
// BM25 term-frequency weight tf*(k1+1)/(tf+k1). Document frequency is left
// to the index: Qdrant applies its IDF modifier server-side, and the
// embedded backend ranks by raw inner product. Terms that collide on an
// index have their weights summed.
package sparse

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Encoder names understood by New.
const (
	EncoderHashing = "hashing"
)

// DefaultK1 is the BM25 term-frequency saturation constant.
const DefaultK1 = 1.2

// Ensure Encoder implements the interface.
var _ driven.SparseEmbeddingService = (*Encoder)(nil)

// Encoder turns text into term-weighted sparse vectors.
type Encoder struct {
	k1 float64
}

// New creates the named encoder. An empty name selects hashing.
func New(name string, k1 float64) (*Encoder, error) {
	switch name {
	case EncoderHashing, "":
	default:
		return nil, fmt.Errorf("%w: unknown sparse encoder %q", domain.ErrInvalidConfig, name)
	}
	if k1 <= 0 {
		k1 = DefaultK1
	}
	return &Encoder{k1: k1}, nil
}

// TermIndex returns the sparse index of a term.
func TermIndex(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32()
}

// EmbedSparse encodes one text. Text without terms yields an empty vector.
func (e *Encoder) EmbedSparse(ctx context.Context, text string) (*domain.SparseVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tf := make(map[string]int)
	for _, tok := range Tokenize(text) {
		tf[tok]++
	}

	weights := make(map[uint32]float32, len(tf))
	for term, n := range tf {
		f := float64(n)
		weights[TermIndex(term)] += float32(f * (e.k1 + 1) / (f + e.k1))
	}
	return domain.NewSparseVector(weights), nil
}

// EmbedSparseBatch encodes texts in input order.
func (e *Encoder) EmbedSparseBatch(ctx context.Context, texts []string) ([]*domain.SparseVector, error) {
	out := make([]*domain.SparseVector, len(texts))
	for i, text := range texts {
		v, err := e.EmbedSparse(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ModelName returns the encoder name.
func (e *Encoder) ModelName() string {
	return EncoderHashing
}
