package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// IngestJournal records the last ingestion state of each paper.
// It is diagnostic: the filesystem and the vector index remain the
// sources of truth.
type IngestJournal interface {
	// Record stores the record, replacing any previous one for the paper.
	Record(ctx context.Context, rec domain.IngestRecord) error

	// Get returns the record for one paper.
	// Returns domain.ErrNotFound if no record exists.
	Get(ctx context.Context, collectionID, paperID string) (*domain.IngestRecord, error)

	// List returns all records of a collection.
	List(ctx context.Context, collectionID string) ([]domain.IngestRecord, error)

	// Delete removes the record for one paper.
	Delete(ctx context.Context, collectionID, paperID string) error

	// DeleteCollection removes every record of a collection.
	DeleteCollection(ctx context.Context, collectionID string) error

	// Close releases resources.
	Close() error
}
