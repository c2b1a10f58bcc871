package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// DefaultRetrieveLimit is used when neither the request nor the settings set a limit.
const DefaultRetrieveLimit = 10

// RetrievalService embeds queries and searches a collection's vector index.
type RetrievalService struct {
	index        driven.VectorIndex
	embedder     driven.EmbeddingService
	sparse       driven.SparseEmbeddingService
	defaultLimit int
}

// NewRetrievalService creates a new retrieval service.
// The sparse encoder may be nil, in which case hybrid collections are
// searched by dense similarity only.
func NewRetrievalService(
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	sparse driven.SparseEmbeddingService,
	defaultLimit int,
) *RetrievalService {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRetrieveLimit
	}
	return &RetrievalService{
		index:        index,
		embedder:     embedder,
		sparse:       sparse,
		defaultLimit: defaultLimit,
	}
}

// Retrieve returns up to req.Limit chunks of the collection, best first.
func (s *RetrievalService) Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]domain.RetrievalResult, error) {
	logger.Section("Retrieve")
	opErr := func(err error) error {
		return &domain.OpError{Op: "retrieve", CollectionID: req.CollectionID, Err: err}
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, opErr(fmt.Errorf("%w: empty query", domain.ErrInvalidInput))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	logger.Debug("Query: %q, limit: %d, papers: %v", query, limit, req.PaperIDs)

	schema, err := s.index.Schema(ctx, req.CollectionID)
	if err != nil {
		return nil, opErr(err)
	}

	dense, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, opErr(fmt.Errorf("embed query: %w", err))
	}

	search := domain.SearchRequest{Dense: dense, Limit: limit, PaperIDs: req.PaperIDs}
	if schema.HasSparse && s.sparse != nil {
		search.Sparse, err = s.sparse.EmbedSparse(ctx, query)
		if err != nil {
			return nil, opErr(fmt.Errorf("encode sparse query: %w", err))
		}
	}
	logger.Debug("Search type: %s, sparse terms: %d", schema.SearchType(), search.Sparse.Len())

	scored, err := s.index.Search(ctx, req.CollectionID, search)
	if err != nil {
		return nil, opErr(err)
	}

	results := make([]domain.RetrievalResult, 0, len(scored))
	for _, sc := range scored {
		results = append(results, domain.RetrievalResult{
			PaperID:    sc.Chunk.PaperID,
			UniqueID:   sc.Chunk.UniqueID,
			PageNumber: sc.Chunk.PageNumber,
			Type:       sc.Chunk.Type,
			Text:       sc.Chunk.Text,
			Score:      sc.Score,
			Metadata:   sc.Chunk.Metadata,
		})
	}
	logger.Info("Retrieved %d chunks from %s", len(results), req.CollectionID)
	return results, nil
}
