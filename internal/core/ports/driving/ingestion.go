package driving

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// IngestionService turns documents into searchable points.
type IngestionService interface {
	// Ingest runs one document through the full pipeline. Re-ingesting
	// a paper replaces its points.
	Ingest(ctx context.Context, collectionID string, doc *domain.Document) (*domain.IngestReport, error)

	// IngestBatch ingests documents with a bounded worker pool.
	// Results are returned in input order.
	IngestBatch(ctx context.Context, collectionID string, docs []*domain.Document, workers int) []domain.BatchResult

	// Reindex re-ingests a paper from its stored record.
	Reindex(ctx context.Context, collectionID, paperID string) (*domain.IngestReport, error)

	// Repair re-ingests every paper on disk that has no points.
	Repair(ctx context.Context, collectionID string) []domain.BatchResult

	// Remove deletes a paper's points and record.
	Remove(ctx context.Context, collectionID, paperID string) error

	// Status returns the journal record for a paper.
	Status(ctx context.Context, collectionID, paperID string) (*domain.IngestRecord, error)
}
