package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// VectorIndex stores chunk points per collection and serves similarity search.
//
// Implementations must apply the paper filter inside the store query and
// must rank hybrid results by normalised weighted fusion with ties broken
// by ascending surrogate key.
type VectorIndex interface {
	// Create provisions a collection with one dense field of denseDim
	// dimensions and, for hybrid collections, a sparse field.
	// Returns domain.ErrAlreadyExists if the collection exists.
	Create(ctx context.Context, collectionID string, denseDim int, searchType domain.SearchType) error

	// Exists reports whether the collection exists.
	Exists(ctx context.Context, collectionID string) (bool, error)

	// Schema describes the collection's vector fields.
	// Returns domain.ErrNotFound if the collection does not exist.
	Schema(ctx context.Context, collectionID string) (*domain.IndexSchema, error)

	// Upsert writes points. Points without a surrogate key get a fresh one,
	// written back into points[i].Chunk.ID, so retrying the identical
	// slice overwrites instead of duplicating.
	Upsert(ctx context.Context, collectionID string, points []domain.Point) error

	// Search returns up to req.Limit chunks, best first.
	Search(ctx context.Context, collectionID string, req domain.SearchRequest) ([]domain.ScoredChunk, error)

	// DeleteByPaper removes every point of one paper. No-op when none match.
	DeleteByPaper(ctx context.Context, collectionID, paperID string) error

	// PaperCounts returns the number of points held per paper.
	PaperCounts(ctx context.Context, collectionID string) (map[string]int, error)

	// Drop removes the collection. No-op when absent.
	Drop(ctx context.Context, collectionID string) error

	// Close releases resources.
	Close() error
}
