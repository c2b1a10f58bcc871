package driving

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// CreateCollectionRequest describes a new collection.
type CreateCollectionRequest struct {
	// ID is the collection id. Derived from Name when empty.
	ID          string
	Name        string
	Description string
	SearchType  domain.SearchType
}

// CollectionService owns collection lifecycle across the filesystem
// and the vector index.
type CollectionService interface {
	// Create provisions the collection directory and the index collection.
	Create(ctx context.Context, req CreateCollectionRequest) (*domain.Collection, error)

	// List returns all collections with derived status.
	List(ctx context.Context) ([]domain.Collection, error)

	// Get returns one collection with derived status.
	Get(ctx context.Context, id string) (*domain.Collection, error)

	// Delete drops the index collection and, with domain.RemoveFiles,
	// the collection directory. Deleting an absent collection is a no-op.
	Delete(ctx context.Context, id string, retention domain.FileRetention) error

	// Verify returns an error wrapping domain.ErrInconsistent when the
	// filesystem and the index disagree.
	Verify(ctx context.Context, id string) (*domain.Collection, error)

	// Papers lists the paper records of a collection with their point counts.
	Papers(ctx context.Context, id string) ([]domain.PaperSummary, error)
}
