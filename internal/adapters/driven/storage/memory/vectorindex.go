package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/hybrid"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// UpsertFault decides the outcome of the n-th Upsert call (starting at 1).
// apply reports whether the points are written; err is returned to the caller.
// Returning apply=true with a non-nil err simulates an indeterminate write.
type UpsertFault func(call int) (apply bool, err error)

type indexCollection struct {
	schema domain.IndexSchema
	points map[string]domain.Point
}

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// It ranks exactly like the SQLite backend and is meant for tests.
type VectorIndex struct {
	mu          sync.RWMutex
	fusion      hybrid.Config
	collections map[string]*indexCollection
	upserts     int
	fault       UpsertFault
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex(cfg hybrid.Config) *VectorIndex {
	return &VectorIndex{
		fusion:      cfg,
		collections: make(map[string]*indexCollection),
	}
}

// SetUpsertFault installs a fault injector for Upsert. Nil clears it.
func (x *VectorIndex) SetUpsertFault(f UpsertFault) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.fault = f
	x.upserts = 0
}

// UpsertCalls returns the number of Upsert calls since the last SetUpsertFault.
func (x *VectorIndex) UpsertCalls() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.upserts
}

// Create provisions a collection.
func (x *VectorIndex) Create(_ context.Context, collectionID string, denseDim int, searchType domain.SearchType) error {
	if denseDim <= 0 || !searchType.IsValid() {
		return fmt.Errorf("%w: dense dimension %d, search type %q", domain.ErrInvalidConfig, denseDim, searchType)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.collections[collectionID]; ok {
		return fmt.Errorf("index collection %s: %w", collectionID, domain.ErrAlreadyExists)
	}
	x.collections[collectionID] = &indexCollection{
		schema: domain.IndexSchema{
			CollectionID: collectionID,
			DenseDim:     denseDim,
			HasSparse:    searchType == domain.SearchTypeHybrid,
		},
		points: make(map[string]domain.Point),
	}
	return nil
}

// Exists reports whether the collection exists.
func (x *VectorIndex) Exists(_ context.Context, collectionID string) (bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.collections[collectionID]
	return ok, nil
}

// Schema describes the collection's vector fields.
func (x *VectorIndex) Schema(_ context.Context, collectionID string) (*domain.IndexSchema, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	c, ok := x.collections[collectionID]
	if !ok {
		return nil, fmt.Errorf("index collection %s: %w", collectionID, domain.ErrNotFound)
	}
	schema := c.schema
	return &schema, nil
}

// Upsert writes points, assigning keys to those without one.
func (x *VectorIndex) Upsert(_ context.Context, collectionID string, points []domain.Point) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.upserts++
	apply, faultErr := true, error(nil)
	if x.fault != nil {
		apply, faultErr = x.fault(x.upserts)
	}

	c, ok := x.collections[collectionID]
	if !ok {
		return fmt.Errorf("index collection %s: %w", collectionID, domain.ErrNotFound)
	}
	for i := range points {
		p := &points[i]
		if len(p.Dense) != c.schema.DenseDim {
			return fmt.Errorf("%w: dense vector has %d dimensions, collection expects %d",
				domain.ErrInvalidInput, len(p.Dense), c.schema.DenseDim)
		}
		if p.Sparse.Len() > 0 && !c.schema.HasSparse {
			return fmt.Errorf("%w: collection %s has no sparse field", domain.ErrInvalidInput, collectionID)
		}
		if err := p.Sparse.Validate(); err != nil {
			return err
		}
	}

	for i := range points {
		if points[i].Chunk.ID == "" {
			points[i].Chunk.ID = uuid.New().String()
		}
	}
	if apply {
		for _, p := range points {
			c.points[p.Chunk.ID] = p
		}
	}
	return faultErr
}

// Search ranks the collection's points against the query.
func (x *VectorIndex) Search(
	_ context.Context, collectionID string, req domain.SearchRequest,
) ([]domain.ScoredChunk, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	c, ok := x.collections[collectionID]
	if !ok {
		return nil, fmt.Errorf("index collection %s: %w", collectionID, domain.ErrNotFound)
	}
	if len(req.Dense) != c.schema.DenseDim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection expects %d",
			domain.ErrInvalidInput, len(req.Dense), c.schema.DenseDim)
	}

	allowed := make(map[string]bool, len(req.PaperIDs))
	for _, id := range req.PaperIDs {
		allowed[id] = true
	}

	useSparse := c.schema.HasSparse && req.Sparse.Len() > 0
	k := req.Limit
	if useSparse {
		k = x.fusion.CandidateLimit(req.Limit)
	}

	denseTop := hybrid.NewTopK(k)
	sparseTop := hybrid.NewTopK(k)
	for id, p := range c.points {
		if len(allowed) > 0 && !allowed[p.Chunk.PaperID] {
			continue
		}
		denseTop.Push(hybrid.Candidate{ID: id, Score: domain.CosineSimilarity(req.Dense, p.Dense)})
		if useSparse {
			if dot := p.Sparse.Dot(req.Sparse); dot > 0 {
				sparseTop.Push(hybrid.Candidate{ID: id, Score: dot})
			}
		}
	}

	ranked := denseTop.Result()
	if useSparse {
		ranked = hybrid.Fuse(ranked, sparseTop.Result(), x.fusion, req.Limit)
	}

	results := make([]domain.ScoredChunk, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, domain.ScoredChunk{Chunk: c.points[r.ID].Chunk, Score: r.Score})
	}
	return results, nil
}

// DeleteByPaper removes every point of one paper.
func (x *VectorIndex) DeleteByPaper(_ context.Context, collectionID, paperID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	c, ok := x.collections[collectionID]
	if !ok {
		return fmt.Errorf("index collection %s: %w", collectionID, domain.ErrNotFound)
	}
	for id, p := range c.points {
		if p.Chunk.PaperID == paperID {
			delete(c.points, id)
		}
	}
	return nil
}

// PaperCounts returns the number of points per paper.
func (x *VectorIndex) PaperCounts(_ context.Context, collectionID string) (map[string]int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	c, ok := x.collections[collectionID]
	if !ok {
		return nil, fmt.Errorf("index collection %s: %w", collectionID, domain.ErrNotFound)
	}
	counts := make(map[string]int)
	for _, p := range c.points {
		counts[p.Chunk.PaperID]++
	}
	return counts, nil
}

// Drop removes the collection.
func (x *VectorIndex) Drop(_ context.Context, collectionID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.collections, collectionID)
	return nil
}

// Close is a no-op.
func (x *VectorIndex) Close() error {
	return nil
}
