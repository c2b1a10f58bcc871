package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/hybrid"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "scholar-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// setupIndex creates a vector index with one collection.
func setupIndex(t *testing.T, dim int, searchType domain.SearchType) (driven.VectorIndex, func()) {
	t.Helper()
	store, cleanup := setupTestStore(t)
	index := store.VectorIndex(hybrid.DefaultConfig())
	require.NoError(t, index.Create(context.Background(), "papers", dim, searchType))
	return index, cleanup
}

func point(paperID, text string, dense []float32, sparse map[uint32]float32) domain.Point {
	p := domain.Point{
		Chunk: domain.Chunk{
			PaperID:  paperID,
			UniqueID: "U" + paperID,
			Text:     text,
			Type:     domain.ChunkTypeBody,
			Metadata: map[string]any{"section_index": 0},
		},
		Dense: dense,
	}
	if sparse != nil {
		p.Sparse = domain.NewSparseVector(sparse)
	}
	return p
}

func TestNewStore(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, dbFile, filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.VectorIndex(hybrid.DefaultConfig()).Create(ctx, "c1", 3, domain.SearchTypeDense))
	require.NoError(t, store.Close())

	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	exists, err := store.VectorIndex(hybrid.DefaultConfig()).Exists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBinaryHelpers(t *testing.T) {
	floats := []float32{0.5, -1.25, 3}
	assert.Equal(t, floats, bytesToFloat32Slice(float32SliceToBytes(floats)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))

	idx := []uint32{1, 42, 1 << 31}
	assert.Equal(t, idx, bytesToUint32Slice(uint32SliceToBytes(idx)))
	assert.Nil(t, bytesToUint32Slice(nil))
}

func TestVectorIndex_CreateAndSchema(t *testing.T) {
	ctx := context.Background()
	index, cleanup := setupIndex(t, 4, domain.SearchTypeHybrid)
	defer cleanup()

	schema, err := index.Schema(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, 4, schema.DenseDim)
	assert.True(t, schema.HasSparse)
	assert.Equal(t, domain.SearchTypeHybrid, schema.SearchType())

	err = index.Create(ctx, "papers", 4, domain.SearchTypeHybrid)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = index.Schema(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, index.Create(ctx, "bad", 0, domain.SearchTypeDense), domain.ErrInvalidConfig)
	assert.ErrorIs(t, index.Create(ctx, "bad", 3, "fuzzy"), domain.ErrInvalidConfig)
}

func TestVectorIndex_UpsertAssignsKeys(t *testing.T) {
	ctx := context.Background()
	index, cleanup := setupIndex(t, 2, domain.SearchTypeDense)
	defer cleanup()

	points := []domain.Point{
		point("p1", "first", []float32{1, 0}, nil),
		point("p1", "second", []float32{0, 1}, nil),
	}
	require.NoError(t, index.Upsert(ctx, "papers", points))
	assert.NotEmpty(t, points[0].Chunk.ID)
	assert.NotEqual(t, points[0].Chunk.ID, points[1].Chunk.ID)

	// Retrying the same slice overwrites.
	require.NoError(t, index.Upsert(ctx, "papers", points))

	counts, err := index.PaperCounts(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2}, counts)
}

func TestVectorIndex_UpsertRejectsBadPoints(t *testing.T) {
	ctx := context.Background()
	index, cleanup := setupIndex(t, 2, domain.SearchTypeDense)
	defer cleanup()

	err := index.Upsert(ctx, "papers", []domain.Point{point("p1", "x", []float32{1, 0, 0}, nil)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = index.Upsert(ctx, "papers", []domain.Point{point("p1", "x", []float32{1, 0}, map[uint32]float32{3: 1})})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = index.Upsert(ctx, "missing", []domain.Point{point("p1", "x", []float32{1, 0}, nil)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	counts, err := index.PaperCounts(ctx, "papers")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestVectorIndex_DenseSearch(t *testing.T) {
	ctx := context.Background()
	index, cleanup := setupIndex(t, 2, domain.SearchTypeDense)
	defer cleanup()

	require.NoError(t, index.Upsert(ctx, "papers", []domain.Point{
		point("p1", "east", []float32{1, 0}, nil),
		point("p2", "north", []float32{0, 1}, nil),
		point("p2", "north-east", []float32{1, 1}, nil),
	}))

	results, err := index.Search(ctx, "papers", domain.SearchRequest{Dense: []float32{1, 0}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "east", results[0].Chunk.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "north-east", results[1].Chunk.Text)
	assert.Equal(t, "Up2", results[1].Chunk.UniqueID)
	assert.Equal(t, float64(0), results[1].Chunk.Metadata["section_index"])
}

func TestVectorIndex_SearchPaperFilter(t *testing.T) {
	ctx := context.Background()
	index, cleanup := setupIndex(t, 2, domain.SearchTypeDense)
	defer cleanup()

	require.NoError(t, index.Upsert(ctx, "papers", []domain.Point{
		point("p1", "a", []float32{1, 0}, nil),
		point("p2", "b", []float32{0.9, 0.1}, nil),
		point("p3", "c", []float32{0, 1}, nil),
	}))

	results, err := index.Search(ctx, "papers", domain.SearchRequest{
		Dense:    []float32{1, 0},
		Limit:    10,
		PaperIDs: []string{"p3", "p2"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Contains(t, []string{"p2", "p3"}, r.Chunk.PaperID)
	}
	assert.Equal(t, "p2", results[0].Chunk.PaperID)

	results, err = index.Search(ctx, "papers", domain.SearchRequest{
		Dense:    []float32{1, 0},
		Limit:    10,
		PaperIDs: []string{"nobody"},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorIndex_HybridSearch(t *testing.T) {
	ctx := context.Background()
	index, cleanup := setupIndex(t, 2, domain.SearchTypeHybrid)
	defer cleanup()

	require.NoError(t, index.Upsert(ctx, "papers", []domain.Point{
		point("p1", "dense match", []float32{1, 0}, map[uint32]float32{1: 1}),
		point("p2", "term match", []float32{0, 1}, map[uint32]float32{7: 2}),
		point("p3", "both", []float32{0.8, 0.6}, map[uint32]float32{7: 1}),
	}))

	results, err := index.Search(ctx, "papers", domain.SearchRequest{
		Dense:  []float32{1, 0},
		Sparse: domain.NewSparseVector(map[uint32]float32{7: 1}),
		Limit:  3,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// p1 is only in the dense list, where it is best. p2 is worst dense
	// and best sparse. p3 is 0.8 dense and worst sparse.
	assert.Equal(t, "p1", results[0].Chunk.PaperID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "p2", results[1].Chunk.PaperID)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)
	assert.Equal(t, "p3", results[2].Chunk.PaperID)
	assert.InDelta(t, 0.4, results[2].Score, 1e-6)

	// A nil sparse query forces pure dense ranking.
	dense, err := index.Search(ctx, "papers", domain.SearchRequest{Dense: []float32{0, 1}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, dense, 1)
	assert.Equal(t, "p2", dense[0].Chunk.PaperID)
}

func TestVectorIndex_SearchRejectsBadQuery(t *testing.T) {
	ctx := context.Background()
	index, cleanup := setupIndex(t, 2, domain.SearchTypeDense)
	defer cleanup()

	_, err := index.Search(ctx, "papers", domain.SearchRequest{Dense: []float32{1}, Limit: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = index.Search(ctx, "papers", domain.SearchRequest{Dense: []float32{1, 0}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = index.Search(ctx, "missing", domain.SearchRequest{Dense: []float32{1, 0}, Limit: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVectorIndex_DeleteByPaperAndDrop(t *testing.T) {
	ctx := context.Background()
	index, cleanup := setupIndex(t, 2, domain.SearchTypeDense)
	defer cleanup()

	require.NoError(t, index.Upsert(ctx, "papers", []domain.Point{
		point("p1", "a", []float32{1, 0}, nil),
		point("p1", "b", []float32{1, 0}, nil),
		point("p2", "c", []float32{0, 1}, nil),
	}))

	require.NoError(t, index.DeleteByPaper(ctx, "papers", "p1"))
	require.NoError(t, index.DeleteByPaper(ctx, "papers", "p1"))

	counts, err := index.PaperCounts(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p2": 1}, counts)

	require.NoError(t, index.Drop(ctx, "papers"))
	require.NoError(t, index.Drop(ctx, "papers"))

	exists, err := index.Exists(ctx, "papers")
	require.NoError(t, err)
	assert.False(t, exists)

	// Recreating after drop starts empty.
	require.NoError(t, index.Create(ctx, "papers", 2, domain.SearchTypeDense))
	counts, err = index.PaperCounts(ctx, "papers")
	require.NoError(t, err)
	assert.Empty(t, counts)
}
