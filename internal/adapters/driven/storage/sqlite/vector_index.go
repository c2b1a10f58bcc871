package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/hybrid"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// vectorIndex implements driven.VectorIndex.
type vectorIndex struct {
	store  *Store
	fusion hybrid.Config
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Create provisions a collection.
func (v *vectorIndex) Create(ctx context.Context, collectionID string, denseDim int, searchType domain.SearchType) error {
	if denseDim <= 0 {
		return fmt.Errorf("%w: dense dimension %d must be positive", domain.ErrInvalidConfig, denseDim)
	}
	if !searchType.IsValid() {
		return fmt.Errorf("%w: unknown search type %q", domain.ErrInvalidConfig, searchType)
	}

	exists, err := v.Exists(ctx, collectionID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("index collection %s: %w", collectionID, domain.ErrAlreadyExists)
	}

	_, err = v.store.db.ExecContext(ctx,
		"INSERT INTO collections (id, dense_dim, has_sparse) VALUES (?, ?, ?)",
		collectionID, denseDim, searchType == domain.SearchTypeHybrid,
	)
	if err != nil {
		return fmt.Errorf("creating index collection: %w", err)
	}
	return nil
}

// Exists reports whether the collection exists.
func (v *vectorIndex) Exists(ctx context.Context, collectionID string) (bool, error) {
	var n int
	err := v.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM collections WHERE id = ?", collectionID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking index collection: %w", err)
	}
	return n > 0, nil
}

// Schema describes the collection's vector fields.
func (v *vectorIndex) Schema(ctx context.Context, collectionID string) (*domain.IndexSchema, error) {
	schema := domain.IndexSchema{CollectionID: collectionID}
	err := v.store.db.QueryRowContext(ctx,
		"SELECT dense_dim, has_sparse FROM collections WHERE id = ?", collectionID,
	).Scan(&schema.DenseDim, &schema.HasSparse)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index collection %s: %w", collectionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index schema: %w", err)
	}
	return &schema, nil
}

// Upsert writes points in one transaction.
func (v *vectorIndex) Upsert(ctx context.Context, collectionID string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	schema, err := v.Schema(ctx, collectionID)
	if err != nil {
		return err
	}
	for i := range points {
		if err := checkPoint(schema, &points[i]); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}

	// Keys are assigned before the write so a retry of the same slice
	// overwrites rather than duplicates.
	for i := range points {
		if points[i].Chunk.ID == "" {
			points[i].Chunk.ID = uuid.New().String()
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection_id, id, paper_id, unique_id, text, chunk_type,
			page_number, position, metadata, dense, sparse_indices, sparse_values)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			paper_id = excluded.paper_id,
			unique_id = excluded.unique_id,
			text = excluded.text,
			chunk_type = excluded.chunk_type,
			page_number = excluded.page_number,
			position = excluded.position,
			metadata = excluded.metadata,
			dense = excluded.dense,
			sparse_indices = excluded.sparse_indices,
			sparse_values = excluded.sparse_values
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for i := range points {
		p := &points[i]
		metadataJSON, err := json.Marshal(p.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}

		var sparseIdx, sparseVal []byte
		if p.Sparse.Len() > 0 {
			sparseIdx = uint32SliceToBytes(p.Sparse.Indices)
			sparseVal = float32SliceToBytes(p.Sparse.Values)
		}

		_, err = stmt.ExecContext(ctx,
			collectionID, p.Chunk.ID, p.Chunk.PaperID, p.Chunk.UniqueID, p.Chunk.Text,
			string(p.Chunk.Type), p.Chunk.PageNumber, p.Chunk.Position, string(metadataJSON),
			float32SliceToBytes(p.Dense), sparseIdx, sparseVal,
		)
		if err != nil {
			return fmt.Errorf("upserting point %s: %w", p.Chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
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

// Search ranks the collection's points against the query.
func (v *vectorIndex) Search(
	ctx context.Context, collectionID string, req domain.SearchRequest,
) ([]domain.ScoredChunk, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}

	schema, err := v.Schema(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if len(req.Dense) != schema.DenseDim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection expects %d",
			domain.ErrInvalidInput, len(req.Dense), schema.DenseDim)
	}

	useSparse := schema.HasSparse && req.Sparse.Len() > 0
	k := req.Limit
	if useSparse {
		k = v.fusion.CandidateLimit(req.Limit)
	}

	where, args := paperFilter(collectionID, req.PaperIDs)
	rows, err := v.store.db.QueryContext(ctx,
		"SELECT id, dense, sparse_indices, sparse_values FROM points WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning points: %w", err)
	}
	defer rows.Close()

	denseTop := hybrid.NewTopK(k)
	sparseTop := hybrid.NewTopK(k)
	for rows.Next() {
		var (
			id                   string
			dense, sIdx, sValues []byte
		)
		if err := rows.Scan(&id, &dense, &sIdx, &sValues); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}
		denseTop.Push(hybrid.Candidate{
			ID:    id,
			Score: domain.CosineSimilarity(req.Dense, bytesToFloat32Slice(dense)),
		})
		if !useSparse || len(sIdx) == 0 {
			continue
		}
		sv := &domain.SparseVector{Indices: bytesToUint32Slice(sIdx), Values: bytesToFloat32Slice(sValues)}
		if dot := sv.Dot(req.Sparse); dot > 0 {
			sparseTop.Push(hybrid.Candidate{ID: id, Score: dot})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}

	ranked := denseTop.Result()
	if useSparse {
		ranked = hybrid.Fuse(ranked, sparseTop.Result(), v.fusion, req.Limit)
	}

	return v.loadRanked(ctx, collectionID, ranked)
}

// paperFilter builds the WHERE clause restricting a scan to papers.
func paperFilter(collectionID string, paperIDs []string) (string, []any) {
	args := []any{collectionID}
	if len(paperIDs) == 0 {
		return "collection_id = ?", args
	}
	placeholders := make([]string, len(paperIDs))
	for i, id := range paperIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	return "collection_id = ? AND paper_id IN (" + strings.Join(placeholders, ", ") + ")", args
}

// loadRanked fetches the payloads of ranked candidates, keeping their order.
func (v *vectorIndex) loadRanked(
	ctx context.Context, collectionID string, ranked []hybrid.Candidate,
) ([]domain.ScoredChunk, error) {
	if len(ranked) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	args := []any{collectionID}
	placeholders := make([]string, len(ranked))
	for i, c := range ranked {
		placeholders[i] = "?"
		args = append(args, c.ID)
	}

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, paper_id, unique_id, text, chunk_type, page_number, position, metadata
		FROM points WHERE collection_id = ? AND id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("loading points: %w", err)
	}
	defer rows.Close()

	chunks := make(map[string]domain.Chunk, len(ranked))
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks[chunk.ID] = *chunk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(ranked))
	for _, c := range ranked {
		chunk, ok := chunks[c.ID]
		if !ok {
			// Deleted between the scan and the load.
			continue
		}
		results = append(results, domain.ScoredChunk{Chunk: chunk, Score: c.Score})
	}
	return results, nil
}

// DeleteByPaper removes every point of one paper.
func (v *vectorIndex) DeleteByPaper(ctx context.Context, collectionID, paperID string) error {
	if _, err := v.Schema(ctx, collectionID); err != nil {
		return err
	}
	_, err := v.store.db.ExecContext(ctx,
		"DELETE FROM points WHERE collection_id = ? AND paper_id = ?", collectionID, paperID)
	if err != nil {
		return fmt.Errorf("deleting paper points: %w", err)
	}
	return nil
}

// PaperCounts returns the number of points per paper.
func (v *vectorIndex) PaperCounts(ctx context.Context, collectionID string) (map[string]int, error) {
	if _, err := v.Schema(ctx, collectionID); err != nil {
		return nil, err
	}

	rows, err := v.store.db.QueryContext(ctx,
		"SELECT paper_id, COUNT(*) FROM points WHERE collection_id = ? GROUP BY paper_id", collectionID)
	if err != nil {
		return nil, fmt.Errorf("counting points: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			paperID string
			n       int
		)
		if err := rows.Scan(&paperID, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[paperID] = n
	}
	return counts, rows.Err()
}

// Drop removes the collection and its points.
func (v *vectorIndex) Drop(ctx context.Context, collectionID string) error {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM points WHERE collection_id = ?", collectionID); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", collectionID); err != nil {
		return fmt.Errorf("deleting index collection: %w", err)
	}
	return tx.Commit()
}

// Close is a no-op; the Store owns the database handle.
func (v *vectorIndex) Close() error {
	return nil
}

// scanChunk scans a point payload row.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var (
		chunk        domain.Chunk
		chunkType    string
		metadataJSON sql.NullString
	)
	err := rows.Scan(&chunk.ID, &chunk.PaperID, &chunk.UniqueID, &chunk.Text, &chunkType,
		&chunk.PageNumber, &chunk.Position, &metadataJSON)
	if err != nil {
		return nil, fmt.Errorf("scanning point: %w", err)
	}
	chunk.Type = domain.ChunkType(chunkType)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	return &chunk, nil
}
