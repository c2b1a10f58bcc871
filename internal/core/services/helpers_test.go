package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driven/embedding/sparse"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/hybrid"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/postprocessors"
	"github.com/custodia-labs/scholar/internal/postprocessors/chunker"
	"github.com/custodia-labs/scholar/internal/postprocessors/references"
)

const testDim = 64

// fakeEmbedder hashes words into a fixed number of buckets, so texts
// sharing words have similar vectors.
type fakeEmbedder struct {
	dim int

	mu    sync.Mutex
	calls int
	err   error
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, f.dim)
		vec[0] = 0.01
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%uint32(f.dim)]++
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions(context.Context) (int, error) { return f.dim, nil }
func (f *fakeEmbedder) ModelName() string                       { return "fake" }
func (f *fakeEmbedder) Ping(context.Context) error              { return nil }
func (f *fakeEmbedder) Close() error                            { return nil }

func (f *fakeEmbedder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	store       *memory.CollectionStore
	index       *memory.VectorIndex
	journal     *memory.IngestJournal
	embedder    *fakeEmbedder
	collections *CollectionService
	ingestion   *IngestionService
	retrieval   *RetrievalService
}

func newTestEnv(t *testing.T, opts IngestOptions) *testEnv {
	t.Helper()

	encoder, err := sparse.New(sparse.EncoderHashing, sparse.DefaultK1)
	require.NoError(t, err)
	ch, err := chunker.New(chunker.WithChunkSize(60), chunker.WithOverlap(10))
	require.NoError(t, err)

	env := &testEnv{
		store:    memory.NewCollectionStore(),
		index:    memory.NewVectorIndex(hybrid.DefaultConfig()),
		journal:  memory.NewIngestJournal(),
		embedder: newFakeEmbedder(testDim),
	}
	env.collections = NewCollectionService(env.store, env.index, env.embedder, env.journal)
	env.ingestion = NewIngestionService(env.store, env.index, env.embedder, encoder,
		postprocessors.NewPipeline(references.New(), ch), env.journal, opts)
	env.retrieval = NewRetrievalService(env.index, env.embedder, encoder, 5)
	return env
}

func (e *testEnv) createCollection(t *testing.T, id string, searchType domain.SearchType) {
	t.Helper()
	_, err := e.collections.Create(context.Background(), driving.CreateCollectionRequest{
		ID:         id,
		Name:       id,
		SearchType: searchType,
	})
	require.NoError(t, err)
}

func (e *testEnv) ingest(t *testing.T, collectionID string, doc *domain.Document) *domain.IngestReport {
	t.Helper()
	report, err := e.ingestion.Ingest(context.Background(), collectionID, doc)
	require.NoError(t, err)
	return report
}

func (e *testEnv) pointCount(t *testing.T, collectionID, paperID string) int {
	t.Helper()
	counts, err := e.index.PaperCounts(context.Background(), collectionID)
	require.NoError(t, err)
	return counts[paperID]
}

func paper(id, title, body string) *domain.Document {
	return &domain.Document{
		PaperID:         id,
		Title:           title,
		Authors:         []string{"Ada Lovelace", "Charles Babbage"},
		PublicationDate: "1843-10-01",
		Venue:           "Scientific Memoirs",
		Abstract:        "An abstract about " + title + ".",
		Sections: []domain.Section{
			{Type: domain.ChunkTypeBody, Text: body, PageNumber: 2},
		},
	}
}
