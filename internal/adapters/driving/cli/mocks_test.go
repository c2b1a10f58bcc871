package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

type mockCollectionService struct {
	collections []domain.Collection
	collection  *domain.Collection
	papers      []domain.PaperSummary
	err         error

	created   driving.CreateCollectionRequest
	deleted   string
	retention domain.FileRetention
}

func (m *mockCollectionService) Create(_ context.Context, req driving.CreateCollectionRequest) (*domain.Collection, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	id := req.ID
	if id == "" {
		id = domain.CollectionIDFromName(req.Name)
	}
	return &domain.Collection{ID: id, Name: req.Name, SearchType: req.SearchType}, nil
}

func (m *mockCollectionService) List(_ context.Context) ([]domain.Collection, error) {
	return m.collections, m.err
}

func (m *mockCollectionService) Get(_ context.Context, _ string) (*domain.Collection, error) {
	return m.collection, m.err
}

func (m *mockCollectionService) Delete(_ context.Context, id string, retention domain.FileRetention) error {
	m.deleted = id
	m.retention = retention
	return m.err
}

func (m *mockCollectionService) Verify(_ context.Context, _ string) (*domain.Collection, error) {
	return m.collection, m.err
}

func (m *mockCollectionService) Papers(_ context.Context, _ string) ([]domain.PaperSummary, error) {
	return m.papers, m.err
}

type mockIngestionService struct {
	ingested []*domain.Document
	removed  []string
	reindex  []string
	repair   []domain.BatchResult
	record   *domain.IngestRecord
	failIDs  map[string]error
	err      error
}

func (m *mockIngestionService) Ingest(_ context.Context, collectionID string, doc *domain.Document) (*domain.IngestReport, error) {
	if err := m.failIDs[doc.PaperID]; err != nil {
		return nil, err
	}
	m.ingested = append(m.ingested, doc)
	return &domain.IngestReport{CollectionID: collectionID, PaperID: doc.PaperID, UniqueID: doc.UniqueID, Chunks: 2}, nil
}

func (m *mockIngestionService) IngestBatch(
	ctx context.Context,
	collectionID string,
	docs []*domain.Document,
	_ int,
) []domain.BatchResult {
	results := make([]domain.BatchResult, len(docs))
	for i, doc := range docs {
		report, err := m.Ingest(ctx, collectionID, doc)
		results[i] = domain.BatchResult{PaperID: doc.PaperID, Report: report, Err: err}
	}
	return results
}

func (m *mockIngestionService) Reindex(_ context.Context, collectionID, paperID string) (*domain.IngestReport, error) {
	if err := m.failIDs[paperID]; err != nil {
		return nil, err
	}
	m.reindex = append(m.reindex, paperID)
	return &domain.IngestReport{CollectionID: collectionID, PaperID: paperID, Chunks: 3}, nil
}

func (m *mockIngestionService) Repair(_ context.Context, _ string) []domain.BatchResult {
	return m.repair
}

func (m *mockIngestionService) Remove(_ context.Context, _, paperID string) error {
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, paperID)
	return nil
}

func (m *mockIngestionService) Status(_ context.Context, _, _ string) (*domain.IngestRecord, error) {
	return m.record, m.err
}

type mockRetrievalService struct {
	results []domain.RetrievalResult
	err     error
	lastReq domain.RetrieveRequest
}

func (m *mockRetrievalService) Retrieve(_ context.Context, req domain.RetrieveRequest) ([]domain.RetrievalResult, error) {
	m.lastReq = req
	return m.results, m.err
}

type mockAnswerService struct {
	answer  *domain.Answer
	err     error
	lastReq domain.AnswerRequest
}

func (m *mockAnswerService) Answer(_ context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	m.lastReq = req
	return m.answer, m.err
}

type mockSynthesisService struct {
	synthesis   *domain.Synthesis
	err         error
	summarize   domain.SummarizeRequest
	compare     domain.CompareRequest
	comparisons int
}

func (m *mockSynthesisService) Summarize(_ context.Context, req domain.SummarizeRequest) (*domain.Synthesis, error) {
	m.summarize = req
	return m.synthesis, m.err
}

func (m *mockSynthesisService) Compare(_ context.Context, req domain.CompareRequest) (*domain.Synthesis, error) {
	m.compare = req
	m.comparisons++
	return m.synthesis, m.err
}

type mockSettingsService struct {
	settings domain.AppSettings
	set      map[string]string
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return m.err
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.set == nil {
		m.set = map[string]string{}
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"chunking.overlap", "chunking.size"}
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding.Provider = provider
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	return m.err
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider = provider
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	return m.err
}

func (m *mockSettingsService) Validate() error                 { return m.settings.Validate() }
func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ValidateEmbeddingConfig() error  { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error        { return nil }

// mockLoader loads any .md file as a paper named after its stem.
type mockLoader struct{}

func (l mockLoader) Load(_ context.Context, path string) (*domain.Document, error) {
	if !l.Supports(path) {
		return nil, domain.ErrUnsupportedType
	}
	stem := filepath.Base(path)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	return &domain.Document{PaperID: stem, UniqueID: stem, Title: stem, SourcePath: path}, nil
}

func (mockLoader) Register(driven.Normaliser) {}

func (mockLoader) Supports(path string) bool {
	return filepath.Ext(path) == ".md"
}

// withServices swaps in services for one test and resets command flags.
func withServices(t *testing.T, s Services) {
	t.Helper()

	old := Services{
		Collections: collectionService,
		Ingestion:   ingestionService,
		Retrieval:   retrievalService,
		Answer:      answerService,
		Synthesis:   synthesisService,
		Settings:    settingsService,
		Loader:      documentLoader,
		InitErr:     initErr,
	}
	SetServices(s)
	resetFlags()
	t.Cleanup(func() {
		SetServices(old)
		resetFlags()
	})
}

func resetFlags() {
	collectionID, collectionDescription = "", ""
	collectionSearchType = string(domain.SearchTypeHybrid)
	collectionRemoveFiles, collectionJSON = false, false

	ingestWorkers, ingestWatch, ingestNoBar = 0, false, true
	ingestInclude, ingestExclude = nil, nil

	queryPapers, queryMode = nil, string(domain.QueryModeMulti)
	queryLimit, queryJSON, queryAnswer, queryWords = 0, false, false, 0

	synthesisJSON, summarizeMaxTokens, compareAspect = false, 0, string(domain.CompareAll)

	versionShort = false
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
