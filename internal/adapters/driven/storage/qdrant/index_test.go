package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/hybrid"
	"github.com/custodia-labs/scholar/internal/core/domain"
)

// fakeQdrant implements the subset of the Qdrant REST API the index uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	apiKeys     []string
	failUpserts int
	lastCreate  createRequest
	lastFilters []*filter
}

type fakeCollection struct {
	dim    int
	sparse bool
	points map[string]pointStruct
	dense  map[string][]float32
	terms  map[string]*domain.SparseVector
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *Index) {
	t.Helper()
	f := &fakeQdrant{collections: make(map[string]*fakeCollection)}

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /collections/{name}", f.create)
	mux.HandleFunc("GET /collections/{name}", f.info)
	mux.HandleFunc("DELETE /collections/{name}", f.drop)
	mux.HandleFunc("GET /collections/{name}/exists", f.exists)
	mux.HandleFunc("PUT /collections/{name}/points", f.upsert)
	mux.HandleFunc("POST /collections/{name}/points/query", f.query)
	mux.HandleFunc("POST /collections/{name}/points/delete", f.delete)
	mux.HandleFunc("POST /collections/{name}/points/scroll", f.scroll)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	return f, NewIndex(Config{URL: server.URL, APIKey: "secret"}, hybrid.DefaultConfig())
}

func reply(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

func fail(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": map[string]string{"error": msg}})
}

func (f *fakeQdrant) collection(w http.ResponseWriter, r *http.Request) *fakeCollection {
	c, ok := f.collections[r.PathValue("name")]
	if !ok {
		fail(w, http.StatusNotFound, "Collection not found")
		return nil
	}
	return c
}

func (f *fakeQdrant) create(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var req createRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.lastCreate = req
	_, sparse := req.SparseVectors[sparseField]
	f.collections[r.PathValue("name")] = &fakeCollection{
		dim:    req.Vectors[denseField].Size,
		sparse: sparse,
		points: make(map[string]pointStruct),
		dense:  make(map[string][]float32),
		terms:  make(map[string]*domain.SparseVector),
	}
	reply(w, true)
}

func (f *fakeQdrant) info(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collection(w, r)
	if c == nil {
		return
	}
	params := map[string]any{
		"vectors": map[string]vectorParams{denseField: {Size: c.dim, Distance: "Cosine"}},
	}
	if c.sparse {
		params["sparse_vectors"] = map[string]sparseParams{sparseField: {Modifier: "idf"}}
	}
	reply(w, map[string]any{"config": map[string]any{"params": params}})
}

func (f *fakeQdrant) exists(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[r.PathValue("name")]
	reply(w, map[string]bool{"exists": ok})
}

func (f *fakeQdrant) drop(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[r.PathValue("name")]
	delete(f.collections, r.PathValue("name"))
	reply(w, ok)
}

func (f *fakeQdrant) upsert(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collection(w, r)
	if c == nil {
		return
	}
	var req struct {
		Points []struct {
			ID     string `json:"id"`
			Vector struct {
				Dense  []float32     `json:"dense"`
				Sparse *sparseVector `json:"sparse"`
			} `json:"vector"`
			Payload payload `json:"payload"`
		} `json:"points"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	for _, p := range req.Points {
		c.points[p.ID] = pointStruct{ID: p.ID, Payload: p.Payload}
		c.dense[p.ID] = p.Vector.Dense
		if p.Vector.Sparse != nil {
			c.terms[p.ID] = &domain.SparseVector{Indices: p.Vector.Sparse.Indices, Values: p.Vector.Sparse.Values}
		}
	}
	if f.failUpserts > 0 {
		// Applied, but the caller sees a server error.
		f.failUpserts--
		fail(w, http.StatusServiceUnavailable, "overloaded")
		return
	}
	reply(w, map[string]string{"status": "completed"})
}

func matches(f *filter, pl payload) bool {
	if f == nil {
		return true
	}
	for _, cond := range f.Must {
		if cond.Match.Value != "" && pl.PaperID != cond.Match.Value {
			return false
		}
		if len(cond.Match.Any) > 0 {
			found := false
			for _, id := range cond.Match.Any {
				if id == pl.PaperID {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (f *fakeQdrant) query(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collection(w, r)
	if c == nil {
		return
	}
	var req struct {
		Query  json.RawMessage `json:"query"`
		Using  string          `json:"using"`
		Filter *filter         `json:"filter"`
		Limit  int             `json:"limit"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.lastFilters = append(f.lastFilters, req.Filter)

	var scored []map[string]any
	for id, p := range c.points {
		if !matches(req.Filter, p.Payload) {
			continue
		}
		var score float64
		if req.Using == denseField {
			var q []float32
			_ = json.Unmarshal(req.Query, &q)
			score = domain.CosineSimilarity(q, c.dense[id])
		} else {
			var q sparseVector
			_ = json.Unmarshal(req.Query, &q)
			score = c.terms[id].Dot(&domain.SparseVector{Indices: q.Indices, Values: q.Values})
			if score == 0 {
				continue
			}
		}
		scored = append(scored, map[string]any{"id": id, "score": score, "payload": p.Payload})
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i]["score"].(float64) > scored[j]["score"].(float64)
	})
	if len(scored) > req.Limit {
		scored = scored[:req.Limit]
	}
	reply(w, map[string]any{"points": scored})
}

func (f *fakeQdrant) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collection(w, r)
	if c == nil {
		return
	}
	var req deleteRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	for id, p := range c.points {
		if matches(&req.Filter, p.Payload) {
			delete(c.points, id)
		}
	}
	reply(w, map[string]string{"status": "completed"})
}

func (f *fakeQdrant) scroll(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.collection(w, r)
	if c == nil {
		return
	}
	var req struct {
		Limit  int     `json:"limit"`
		Offset *string `json:"offset"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	ids := make([]string, 0, len(c.points))
	for id := range c.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if req.Offset != nil {
		start = sort.SearchStrings(ids, *req.Offset)
	}
	// Tiny pages exercise pagination.
	end := start + 2
	var next any
	if end < len(ids) {
		next = ids[end]
	} else {
		end = len(ids)
	}

	points := make([]map[string]any, 0, end-start)
	for _, id := range ids[start:end] {
		points = append(points, map[string]any{"id": id, "payload": map[string]string{"paper_id": c.points[id].Payload.PaperID}})
	}
	reply(w, map[string]any{"points": points, "next_page_offset": next})
}

func qpoint(paperID string, dense []float32, sparse map[uint32]float32) domain.Point {
	p := domain.Point{
		Chunk: domain.Chunk{PaperID: paperID, UniqueID: "U" + paperID, Text: "text " + paperID, Type: domain.ChunkTypeBody, PageNumber: 3},
		Dense: dense,
	}
	if sparse != nil {
		p.Sparse = domain.NewSparseVector(sparse)
	}
	return p
}

func TestIndex_CreateHybrid(t *testing.T) {
	f, index := newFakeQdrant(t)
	ctx := context.Background()

	require.NoError(t, index.Create(ctx, "papers", 3, domain.SearchTypeHybrid))
	assert.Equal(t, 3, f.lastCreate.Vectors[denseField].Size)
	assert.Equal(t, "Cosine", f.lastCreate.Vectors[denseField].Distance)
	assert.Equal(t, "idf", f.lastCreate.SparseVectors[sparseField].Modifier)
	assert.Contains(t, f.apiKeys, "secret")

	err := index.Create(ctx, "papers", 3, domain.SearchTypeHybrid)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	schema, err := index.Schema(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, 3, schema.DenseDim)
	assert.True(t, schema.HasSparse)

	_, err = index.Schema(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndex_CreateDense(t *testing.T) {
	f, index := newFakeQdrant(t)
	require.NoError(t, index.Create(context.Background(), "papers", 2, domain.SearchTypeDense))
	assert.Empty(t, f.lastCreate.SparseVectors)
}

func TestIndex_UpsertSearchAndFilter(t *testing.T) {
	f, index := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, index.Create(ctx, "papers", 2, domain.SearchTypeDense))

	points := []domain.Point{
		qpoint("p1", []float32{1, 0}, nil),
		qpoint("p2", []float32{0.9, 0.1}, nil),
		qpoint("p3", []float32{0, 1}, nil),
	}
	require.NoError(t, index.Upsert(ctx, "papers", points))
	for _, p := range points {
		assert.NotEmpty(t, p.Chunk.ID)
	}

	results, err := index.Search(ctx, "papers", domain.SearchRequest{Dense: []float32{1, 0}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].Chunk.PaperID)
	assert.Equal(t, "Up1", results[0].Chunk.UniqueID)
	assert.Equal(t, 3, results[0].Chunk.PageNumber)
	assert.Equal(t, points[0].Chunk.ID, results[0].Chunk.ID)

	results, err = index.Search(ctx, "papers", domain.SearchRequest{
		Dense: []float32{1, 0}, Limit: 5, PaperIDs: []string{"p3"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p3", results[0].Chunk.PaperID)

	last := f.lastFilters[len(f.lastFilters)-1]
	require.NotNil(t, last)
	assert.Equal(t, keyPaperID, last.Must[0].Key)
	assert.Equal(t, []string{"p3"}, last.Must[0].Match.Any)
}

func TestIndex_HybridSearchFuses(t *testing.T) {
	_, index := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, index.Create(ctx, "papers", 2, domain.SearchTypeHybrid))

	require.NoError(t, index.Upsert(ctx, "papers", []domain.Point{
		qpoint("p1", []float32{1, 0}, map[uint32]float32{1: 1}),
		qpoint("p2", []float32{0, 1}, map[uint32]float32{7: 2}),
		qpoint("p3", []float32{0.8, 0.6}, map[uint32]float32{7: 1}),
	}))

	results, err := index.Search(ctx, "papers", domain.SearchRequest{
		Dense:  []float32{1, 0},
		Sparse: domain.NewSparseVector(map[uint32]float32{7: 1}),
		Limit:  3,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "p1", results[0].Chunk.PaperID)
	assert.Equal(t, "p2", results[1].Chunk.PaperID)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)
	assert.Equal(t, "p3", results[2].Chunk.PaperID)
	assert.InDelta(t, 0.4, results[2].Score, 1e-6)
}

func TestIndex_UpsertServerErrorIsIndeterminate(t *testing.T) {
	f, index := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, index.Create(ctx, "papers", 2, domain.SearchTypeDense))

	f.failUpserts = 1
	points := []domain.Point{qpoint("p1", []float32{1, 0}, nil)}
	err := index.Upsert(ctx, "papers", points)
	assert.ErrorIs(t, err, domain.ErrIndeterminate)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	// The retry reuses the written-back key.
	require.NoError(t, index.Upsert(ctx, "papers", points))
	counts, err := index.PaperCounts(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 1}, counts)
}

func TestIndex_UpsertRejectsBadPoints(t *testing.T) {
	_, index := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, index.Create(ctx, "papers", 2, domain.SearchTypeDense))

	err := index.Upsert(ctx, "papers", []domain.Point{qpoint("p1", []float32{1}, nil)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotErrorIs(t, err, domain.ErrIndeterminate)

	err = index.Upsert(ctx, "papers", []domain.Point{qpoint("p1", []float32{1, 0}, map[uint32]float32{2: 1})})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_DeleteCountAndDrop(t *testing.T) {
	_, index := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, index.Create(ctx, "papers", 2, domain.SearchTypeDense))

	require.NoError(t, index.Upsert(ctx, "papers", []domain.Point{
		qpoint("p1", []float32{1, 0}, nil),
		qpoint("p1", []float32{1, 0}, nil),
		qpoint("p2", []float32{0, 1}, nil),
		qpoint("p2", []float32{0, 1}, nil),
		qpoint("p2", []float32{0, 1}, nil),
	}))

	counts, err := index.PaperCounts(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 3}, counts)

	require.NoError(t, index.DeleteByPaper(ctx, "papers", "p2"))
	counts, err = index.PaperCounts(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 2}, counts)

	require.NoError(t, index.Drop(ctx, "papers"))
	require.NoError(t, index.Drop(ctx, "papers"))

	exists, err := index.Exists(ctx, "papers")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = index.PaperCounts(ctx, "papers")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndex_UnreachableServer(t *testing.T) {
	index := NewIndex(Config{URL: "http://127.0.0.1:1"}, hybrid.DefaultConfig())
	_, err := index.Exists(context.Background(), "papers")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.NoError(t, index.Close())
}

func TestPointID(t *testing.T) {
	assert.Equal(t, "abc", pointID(json.RawMessage(`"abc"`)))
	assert.Equal(t, "42", pointID(json.RawMessage(`42`)))
}
