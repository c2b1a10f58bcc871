package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Ensure IngestJournal implements the interface.
var _ driven.IngestJournal = (*IngestJournal)(nil)

// IngestJournal is an in-memory implementation of driven.IngestJournal.
type IngestJournal struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.IngestRecord
}

// NewIngestJournal creates a new in-memory ingest journal.
func NewIngestJournal() *IngestJournal {
	return &IngestJournal{
		records: make(map[string]map[string]domain.IngestRecord),
	}
}

// Record stores or replaces the record for a paper.
func (j *IngestJournal) Record(_ context.Context, rec domain.IngestRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.records[rec.CollectionID] == nil {
		j.records[rec.CollectionID] = make(map[string]domain.IngestRecord)
	}
	j.records[rec.CollectionID][rec.PaperID] = rec
	return nil
}

// Get retrieves the record for a paper.
func (j *IngestJournal) Get(_ context.Context, collectionID, paperID string) (*domain.IngestRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	rec, ok := j.records[collectionID][paperID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// List returns a collection's records ordered by paper id.
func (j *IngestJournal) List(_ context.Context, collectionID string) ([]domain.IngestRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	result := make([]domain.IngestRecord, 0, len(j.records[collectionID]))
	for _, rec := range j.records[collectionID] {
		result = append(result, rec)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].PaperID < result[b].PaperID })
	return result, nil
}

// Delete removes the record for a paper.
func (j *IngestJournal) Delete(_ context.Context, collectionID, paperID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.records[collectionID], paperID)
	return nil
}

// DeleteCollection removes all records of a collection.
func (j *IngestJournal) DeleteCollection(_ context.Context, collectionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.records, collectionID)
	return nil
}

// Close is a no-op.
func (j *IngestJournal) Close() error {
	return nil
}
