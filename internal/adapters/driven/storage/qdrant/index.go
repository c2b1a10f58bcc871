package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/hybrid"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Vector field names and payload keys.
const (
	denseField  = "dense"
	sparseField = "sparse"
	keyPaperID  = "paper_id"
)

// Upserts are sent in slices of this many points.
const upsertBatchSize = 256

// scrollPageSize is the page size used when counting points.
const scrollPageSize = 512

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a VectorIndex stored in Qdrant.
type Index struct {
	client *client
	fusion hybrid.Config
}

// NewIndex creates a Qdrant-backed vector index.
func NewIndex(cfg Config, fusion hybrid.Config) *Index {
	return &Index{
		client: newClient(cfg),
		fusion: fusion,
	}
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type sparseParams struct {
	Modifier string `json:"modifier,omitempty"`
}

type createRequest struct {
	Vectors       map[string]vectorParams `json:"vectors"`
	SparseVectors map[string]sparseParams `json:"sparse_vectors,omitempty"`
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors       json.RawMessage         `json:"vectors"`
			SparseVectors map[string]sparseParams `json:"sparse_vectors"`
		} `json:"params"`
	} `json:"config"`
}

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

type payload struct {
	PaperID    string         `json:"paper_id"`
	UniqueID   string         `json:"unique_id"`
	ChunkText  string         `json:"chunk_text"`
	ChunkType  string         `json:"chunk_type"`
	PageNumber int            `json:"page_number"`
	Position   int            `json:"position"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type pointStruct struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload payload        `json:"payload"`
}

type upsertRequest struct {
	Points []pointStruct `json:"points"`
}

type match struct {
	Value string   `json:"value,omitempty"`
	Any   []string `json:"any,omitempty"`
}

type condition struct {
	Key   string `json:"key"`
	Match match  `json:"match"`
}

type filter struct {
	Must []condition `json:"must"`
}

type queryRequest struct {
	Query       any     `json:"query"`
	Using       string  `json:"using"`
	Filter      *filter `json:"filter,omitempty"`
	Limit       int     `json:"limit"`
	WithPayload bool    `json:"with_payload"`
}

type scoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload payload         `json:"payload"`
}

type queryResult struct {
	Points []scoredPoint `json:"points"`
}

type deleteRequest struct {
	Filter filter `json:"filter"`
}

type scrollRequest struct {
	Limit       int             `json:"limit"`
	Offset      json.RawMessage `json:"offset,omitempty"`
	WithPayload []string        `json:"with_payload"`
	WithVector  bool            `json:"with_vector"`
}

type scrollResult struct {
	Points []struct {
		Payload struct {
			PaperID string `json:"paper_id"`
		} `json:"payload"`
	} `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

// Create provisions a collection.
func (x *Index) Create(ctx context.Context, collectionID string, denseDim int, searchType domain.SearchType) error {
	if denseDim <= 0 {
		return fmt.Errorf("%w: dense dimension %d must be positive", domain.ErrInvalidConfig, denseDim)
	}
	if !searchType.IsValid() {
		return fmt.Errorf("%w: unknown search type %q", domain.ErrInvalidConfig, searchType)
	}

	exists, err := x.Exists(ctx, collectionID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("index collection %s: %w", collectionID, domain.ErrAlreadyExists)
	}

	req := createRequest{
		Vectors: map[string]vectorParams{
			denseField: {Size: denseDim, Distance: "Cosine"},
		},
	}
	if searchType == domain.SearchTypeHybrid {
		req.SparseVectors = map[string]sparseParams{
			sparseField: {Modifier: "idf"},
		}
	}
	if err := x.client.do(ctx, http.MethodPut, collectionPath(collectionID), req, nil); err != nil {
		return fmt.Errorf("creating index collection: %w", err)
	}
	return nil
}

// Exists reports whether the collection exists.
func (x *Index) Exists(ctx context.Context, collectionID string) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	if err := x.client.do(ctx, http.MethodGet, collectionPath(collectionID, "exists"), nil, &result); err != nil {
		return false, fmt.Errorf("checking index collection: %w", err)
	}
	return result.Exists, nil
}

// Schema describes the collection's vector fields.
func (x *Index) Schema(ctx context.Context, collectionID string) (*domain.IndexSchema, error) {
	var info collectionInfo
	if err := x.client.do(ctx, http.MethodGet, collectionPath(collectionID), nil, &info); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("index collection %s: %w", collectionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading index schema: %w", err)
	}

	schema := &domain.IndexSchema{CollectionID: collectionID}

	var named map[string]vectorParams
	if err := json.Unmarshal(info.Config.Params.Vectors, &named); err == nil && named[denseField].Size > 0 {
		schema.DenseDim = named[denseField].Size
	} else {
		// Collections created by other tools may use a single unnamed vector.
		var single vectorParams
		if err := json.Unmarshal(info.Config.Params.Vectors, &single); err != nil || single.Size == 0 {
			return nil, fmt.Errorf("%w: collection %s has no %q vector", domain.ErrInconsistent, collectionID, denseField)
		}
		schema.DenseDim = single.Size
	}
	_, schema.HasSparse = info.Config.Params.SparseVectors[sparseField]

	return schema, nil
}

// Upsert writes points in batches.
func (x *Index) Upsert(ctx context.Context, collectionID string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	schema, err := x.Schema(ctx, collectionID)
	if err != nil {
		return err
	}
	for i := range points {
		if err := checkPoint(schema, &points[i]); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}

	for i := range points {
		if points[i].Chunk.ID == "" {
			points[i].Chunk.ID = uuid.New().String()
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}

		req := upsertRequest{Points: make([]pointStruct, 0, end-start)}
		for _, p := range points[start:end] {
			req.Points = append(req.Points, toPointStruct(p))
		}

		err := x.client.do(ctx, http.MethodPut, collectionPath(collectionID, "points")+"?wait=true", req, nil)
		if err != nil {
			if errors.Is(err, domain.ErrUpstreamUnavailable) || start > 0 {
				// The write may have been applied in part or in full.
				return fmt.Errorf("%w: upserting points: %w", domain.ErrIndeterminate, err)
			}
			return fmt.Errorf("upserting points: %w", err)
		}
	}
	return nil
}

func toPointStruct(p domain.Point) pointStruct {
	vector := map[string]any{denseField: p.Dense}
	if p.Sparse.Len() > 0 {
		vector[sparseField] = sparseVector{Indices: p.Sparse.Indices, Values: p.Sparse.Values}
	}
	return pointStruct{
		ID:     p.Chunk.ID,
		Vector: vector,
		Payload: payload{
			PaperID:    p.Chunk.PaperID,
			UniqueID:   p.Chunk.UniqueID,
			ChunkText:  p.Chunk.Text,
			ChunkType:  string(p.Chunk.Type),
			PageNumber: p.Chunk.PageNumber,
			Position:   p.Chunk.Position,
			Metadata:   p.Chunk.Metadata,
		},
	}
}

// checkPoint rejects a point that does not fit the collection schema.
func checkPoint(schema *domain.IndexSchema, p *domain.Point) error {
	if len(p.Dense) != schema.DenseDim {
		return fmt.Errorf("%w: dense vector has %d dimensions, collection expects %d",
			domain.ErrInvalidInput, len(p.Dense), schema.DenseDim)
	}
	if p.Sparse.Len() > 0 && !schema.HasSparse {
		return fmt.Errorf("%w: collection %s has no sparse field", domain.ErrInvalidInput, schema.CollectionID)
	}
	if p.Chunk.PaperID == "" {
		return fmt.Errorf("%w: point has no paper id", domain.ErrInvalidInput)
	}
	return p.Sparse.Validate()
}

// Search runs the dense query and, for hybrid collections with a sparse
// query, the sparse query, then fuses the two candidate lists.
func (x *Index) Search(ctx context.Context, collectionID string, req domain.SearchRequest) ([]domain.ScoredChunk, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}

	schema, err := x.Schema(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if len(req.Dense) != schema.DenseDim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection expects %d",
			domain.ErrInvalidInput, len(req.Dense), schema.DenseDim)
	}

	var f *filter
	if len(req.PaperIDs) > 0 {
		f = &filter{Must: []condition{{Key: keyPaperID, Match: match{Any: req.PaperIDs}}}}
	}

	useSparse := schema.HasSparse && req.Sparse.Len() > 0
	k := req.Limit
	if useSparse {
		k = x.fusion.CandidateLimit(req.Limit)
	}

	payloads := make(map[string]payload)

	dense, err := x.query(ctx, collectionID, queryRequest{
		Query: req.Dense, Using: denseField, Filter: f, Limit: k, WithPayload: true,
	}, payloads)
	if err != nil {
		return nil, err
	}

	ranked := dense
	if useSparse {
		sparse, err := x.query(ctx, collectionID, queryRequest{
			Query:       sparseVector{Indices: req.Sparse.Indices, Values: req.Sparse.Values},
			Using:       sparseField,
			Filter:      f,
			Limit:       k,
			WithPayload: true,
		}, payloads)
		if err != nil {
			return nil, err
		}
		ranked = hybrid.Fuse(dense, sparse, x.fusion, req.Limit)
	} else {
		hybrid.Sort(ranked)
		if len(ranked) > req.Limit {
			ranked = ranked[:req.Limit]
		}
	}

	results := make([]domain.ScoredChunk, 0, len(ranked))
	for _, c := range ranked {
		pl := payloads[c.ID]
		results = append(results, domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:         c.ID,
				PaperID:    pl.PaperID,
				UniqueID:   pl.UniqueID,
				Text:       pl.ChunkText,
				Type:       domain.ChunkType(pl.ChunkType),
				PageNumber: pl.PageNumber,
				Position:   pl.Position,
				Metadata:   pl.Metadata,
			},
			Score: c.Score,
		})
	}
	return results, nil
}

// query runs one query and records payloads by point id.
func (x *Index) query(
	ctx context.Context, collectionID string, req queryRequest, payloads map[string]payload,
) ([]hybrid.Candidate, error) {
	var result queryResult
	if err := x.client.do(ctx, http.MethodPost, collectionPath(collectionID, "points", "query"), req, &result); err != nil {
		return nil, fmt.Errorf("querying %s vectors: %w", req.Using, err)
	}

	cands := make([]hybrid.Candidate, 0, len(result.Points))
	for _, p := range result.Points {
		id := pointID(p.ID)
		payloads[id] = p.Payload
		cands = append(cands, hybrid.Candidate{ID: id, Score: p.Score})
	}
	return cands, nil
}

// pointID renders a Qdrant point id, which is a UUID string or an integer.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return string(raw)
}

// DeleteByPaper removes every point of one paper.
func (x *Index) DeleteByPaper(ctx context.Context, collectionID, paperID string) error {
	req := deleteRequest{Filter: filter{Must: []condition{{Key: keyPaperID, Match: match{Value: paperID}}}}}
	err := x.client.do(ctx, http.MethodPost, collectionPath(collectionID, "points", "delete")+"?wait=true", req, nil)
	if err != nil {
		return fmt.Errorf("deleting paper points: %w", err)
	}
	return nil
}

// PaperCounts scrolls the collection and counts points per paper.
func (x *Index) PaperCounts(ctx context.Context, collectionID string) (map[string]int, error) {
	counts := make(map[string]int)
	req := scrollRequest{Limit: scrollPageSize, WithPayload: []string{keyPaperID}}

	for {
		var page scrollResult
		if err := x.client.do(ctx, http.MethodPost, collectionPath(collectionID, "points", "scroll"), req, &page); err != nil {
			return nil, fmt.Errorf("scrolling points: %w", err)
		}
		for _, p := range page.Points {
			counts[p.Payload.PaperID]++
		}
		if len(page.NextPageOffset) == 0 || string(page.NextPageOffset) == "null" {
			return counts, nil
		}
		req.Offset = page.NextPageOffset
	}
}

// Drop removes the collection.
func (x *Index) Drop(ctx context.Context, collectionID string) error {
	err := x.client.do(ctx, http.MethodDelete, collectionPath(collectionID), nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("dropping index collection: %w", err)
	}
	return nil
}

// Close releases resources.
func (x *Index) Close() error {
	x.client.http.CloseIdleConnections()
	return nil
}
