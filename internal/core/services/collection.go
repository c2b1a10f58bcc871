package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure CollectionService implements the interface.
var _ driving.CollectionService = (*CollectionService)(nil)

// cleanupTimeout bounds compensating writes made after the caller's
// context is already done.
const cleanupTimeout = 30 * time.Second

// CollectionService keeps collection directories and index collections
// in step.
type CollectionService struct {
	store    driven.CollectionStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	journal  driven.IngestJournal
}

// NewCollectionService creates a new collection service.
// The journal is optional.
func NewCollectionService(
	store driven.CollectionStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	journal driven.IngestJournal,
) *CollectionService {
	return &CollectionService{
		store:    store,
		index:    index,
		embedder: embedder,
		journal:  journal,
	}
}

// Create provisions the collection directory and the index collection.
// The directory is removed again when the index step fails.
func (s *CollectionService) Create(ctx context.Context, req driving.CreateCollectionRequest) (*domain.Collection, error) {
	id := req.ID
	if id == "" {
		id = domain.CollectionIDFromName(req.Name)
	}
	opErr := func(err error) error {
		return &domain.OpError{Op: "create collection", CollectionID: id, Err: err}
	}

	if err := domain.ValidateCollectionID(id); err != nil {
		return nil, opErr(err)
	}

	searchType := req.SearchType
	if searchType == "" {
		searchType = domain.SearchTypeHybrid
	}
	if !searchType.IsValid() {
		return nil, opErr(fmt.Errorf("%w: unknown search type %q", domain.ErrInvalidConfig, searchType))
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = id
	}

	onDisk, err := s.store.Exists(ctx, id)
	if err != nil {
		return nil, opErr(err)
	}
	if onDisk {
		return nil, opErr(fmt.Errorf("%w: collection directory exists", domain.ErrConflict))
	}
	inIndex, err := s.index.Exists(ctx, id)
	if err != nil {
		return nil, opErr(err)
	}
	if inIndex {
		return nil, opErr(fmt.Errorf("%w: index collection exists", domain.ErrConflict))
	}

	dim, err := s.embedder.Dimensions(ctx)
	if err != nil {
		return nil, opErr(fmt.Errorf("probe embedding dimension: %w", err))
	}
	logger.Debug("Embedding model %s has %d dimensions", s.embedder.ModelName(), dim)

	if err := ctx.Err(); err != nil {
		return nil, opErr(err)
	}

	collection := domain.Collection{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		SearchType:  searchType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(ctx, collection); err != nil {
		return nil, opErr(err)
	}

	if err := s.index.Create(ctx, id, dim, searchType); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if rmErr := s.store.Remove(cleanupCtx, id); rmErr != nil {
			logger.Warn("Failed to roll back collection directory %s: %v", id, rmErr)
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			err = fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
		return nil, opErr(fmt.Errorf("create index collection: %w", err))
	}

	logger.Info("Created %s collection %s (%d dimensions)", searchType, id, dim)

	collection.IndexPresent = true
	return &collection, nil
}

// List returns all collections with derived status.
func (s *CollectionService) List(ctx context.Context) ([]domain.Collection, error) {
	collections, err := s.store.List(ctx)
	if err != nil {
		return nil, &domain.OpError{Op: "list collections", Err: err}
	}
	for i := range collections {
		if err := s.fillStatus(ctx, &collections[i]); err != nil {
			return nil, err
		}
	}
	return collections, nil
}

// Get returns one collection with derived status.
func (s *CollectionService) Get(ctx context.Context, id string) (*domain.Collection, error) {
	collection, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, &domain.OpError{Op: "get collection", CollectionID: id, Err: err}
	}
	if err := s.fillStatus(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// fillStatus compares the paper records on disk with the points in the index.
// A paper recorded visible with zero chunks legitimately has no points.
func (s *CollectionService) fillStatus(ctx context.Context, c *domain.Collection) error {
	opErr := func(err error) error {
		return &domain.OpError{Op: "collection status", CollectionID: c.ID, Err: err}
	}

	papers, err := s.store.ListDocuments(ctx, c.ID)
	if err != nil {
		return opErr(err)
	}
	c.PaperCount = len(papers)
	c.NeedsReindex = nil
	c.StrayPapers = nil
	c.IndexedPapers = 0

	c.IndexPresent, err = s.index.Exists(ctx, c.ID)
	if err != nil {
		return opErr(err)
	}
	if !c.IndexPresent {
		c.NeedsReindex = append(c.NeedsReindex, papers...)
		return nil
	}

	counts, err := s.index.PaperCounts(ctx, c.ID)
	if err != nil {
		return opErr(err)
	}
	c.IndexedPapers = len(counts)

	onDisk := make(map[string]bool, len(papers))
	for _, paperID := range papers {
		onDisk[paperID] = true
		if counts[paperID] > 0 || s.emptyAndVisible(ctx, c.ID, paperID) {
			continue
		}
		c.NeedsReindex = append(c.NeedsReindex, paperID)
	}
	for paperID := range counts {
		if !onDisk[paperID] {
			c.StrayPapers = append(c.StrayPapers, paperID)
		}
	}
	sort.Strings(c.StrayPapers)
	return nil
}

func (s *CollectionService) emptyAndVisible(ctx context.Context, collectionID, paperID string) bool {
	if s.journal == nil {
		return false
	}
	rec, err := s.journal.Get(ctx, collectionID, paperID)
	if err != nil {
		return false
	}
	return rec.State == domain.IngestVisible && rec.Chunks == 0
}

// Delete drops the index collection, clears its journal and, with
// domain.RemoveFiles, removes the directory.
func (s *CollectionService) Delete(ctx context.Context, id string, retention domain.FileRetention) error {
	opErr := func(err error) error {
		return &domain.OpError{Op: "delete collection", CollectionID: id, Err: err}
	}
	if err := domain.ValidateCollectionID(id); err != nil {
		return opErr(err)
	}

	if err := s.index.Drop(ctx, id); err != nil {
		return opErr(fmt.Errorf("drop index collection: %w", err))
	}
	if s.journal != nil {
		if err := s.journal.DeleteCollection(ctx, id); err != nil {
			return opErr(fmt.Errorf("clear journal: %w", err))
		}
	}
	if retention == domain.RemoveFiles {
		if err := s.store.Remove(ctx, id); err != nil {
			return opErr(err)
		}
	}

	logger.Info("Deleted collection %s (files removed: %t)", id, retention == domain.RemoveFiles)
	return nil
}

// Verify returns the collection with an error wrapping domain.ErrInconsistent
// when the directory and the index disagree.
func (s *CollectionService) Verify(ctx context.Context, id string) (*domain.Collection, error) {
	collection, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if collection.Consistent() {
		return collection, nil
	}
	return collection, &domain.OpError{
		Op:           "verify collection",
		CollectionID: id,
		Err: fmt.Errorf("%w: index present=%t, %d paper(s) need reindex, %d stray paper(s)",
			domain.ErrInconsistent, collection.IndexPresent, len(collection.NeedsReindex), len(collection.StrayPapers)),
	}
}

// Papers lists the collection's paper records in id order. Points is zero
// for every paper when the index collection is missing.
func (s *CollectionService) Papers(ctx context.Context, id string) ([]domain.PaperSummary, error) {
	opErr := func(err error) error {
		return &domain.OpError{Op: "list papers", CollectionID: id, Err: err}
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, opErr(err)
	}
	paperIDs, err := s.store.ListDocuments(ctx, id)
	if err != nil {
		return nil, opErr(err)
	}

	counts := map[string]int{}
	present, err := s.index.Exists(ctx, id)
	if err != nil {
		return nil, opErr(err)
	}
	if present {
		if counts, err = s.index.PaperCounts(ctx, id); err != nil {
			return nil, opErr(err)
		}
	}

	papers := make([]domain.PaperSummary, 0, len(paperIDs))
	for _, paperID := range paperIDs {
		doc, err := s.store.GetDocument(ctx, id, paperID)
		if err != nil {
			return nil, opErr(err)
		}
		papers = append(papers, domain.PaperSummary{
			PaperID:    doc.PaperID,
			UniqueID:   doc.UniqueID,
			Title:      doc.Title,
			Authors:    doc.Authors,
			Year:       doc.Year,
			SourcePath: doc.SourcePath,
			IngestedAt: doc.IngestedAt,
			Points:     counts[paperID],
		})
	}
	return papers, nil
}
