// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// EmbeddingService generates dense vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores and searches vectors.
// EmbeddingService generates vectors; VectorIndex stores them.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result has one vector per input, in input order, and is
	// equivalent to calling Embed for each text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	// It may probe the model on first use; the result is cached.
	Dimensions(ctx context.Context) (int, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// SparseEmbeddingService generates sparse term vectors for lexical matching.
// Only hybrid collections need one.
type SparseEmbeddingService interface {
	// EmbedSparse encodes one text. Empty text yields an empty vector.
	EmbedSparse(ctx context.Context, text string) (*domain.SparseVector, error)

	// EmbedSparseBatch encodes texts in input order.
	EmbedSparseBatch(ctx context.Context, texts []string) ([]*domain.SparseVector, error)

	// ModelName returns the name of the sparse encoder.
	ModelName() string
}
