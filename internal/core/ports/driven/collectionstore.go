package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// CollectionStore persists collection directories and paper records.
// It is the filesystem half of the two sources of truth.
type CollectionStore interface {
	// Create makes the collection directory and writes its info record.
	// Returns domain.ErrConflict if the directory already exists.
	Create(ctx context.Context, collection domain.Collection) error

	// Get reads a collection's info record.
	// Returns domain.ErrNotFound if the collection does not exist.
	Get(ctx context.Context, id string) (*domain.Collection, error)

	// List returns all collections ordered by id.
	List(ctx context.Context) ([]domain.Collection, error)

	// Exists reports whether the collection directory exists.
	Exists(ctx context.Context, id string) (bool, error)

	// Remove deletes the collection directory. No-op when absent.
	Remove(ctx context.Context, id string) error

	// SaveDocument writes a paper record into the collection.
	SaveDocument(ctx context.Context, collectionID string, doc *domain.Document) error

	// GetDocument reads a paper record.
	// Returns domain.ErrNotFound if the paper does not exist.
	GetDocument(ctx context.Context, collectionID, paperID string) (*domain.Document, error)

	// ListDocuments returns the ids of all paper records, sorted.
	ListDocuments(ctx context.Context, collectionID string) ([]string, error)

	// DeleteDocument removes a paper record. No-op when absent.
	DeleteDocument(ctx context.Context, collectionID, paperID string) error
}
