package mcp

import (
	"context"
	"testing"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results []domain.RetrievalResult
	err     error
	lastReq domain.RetrieveRequest
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	req domain.RetrieveRequest,
) ([]domain.RetrievalResult, error) {
	m.lastReq = req
	return m.results, m.err
}

// mockCollectionService is a mock implementation of driving.CollectionService.
type mockCollectionService struct {
	collections []domain.Collection
	collection  *domain.Collection
	papers      []domain.PaperSummary
	err         error
}

func (m *mockCollectionService) Create(_ context.Context, _ driving.CreateCollectionRequest) (*domain.Collection, error) {
	return m.collection, m.err
}

func (m *mockCollectionService) List(_ context.Context) ([]domain.Collection, error) {
	return m.collections, m.err
}

func (m *mockCollectionService) Get(_ context.Context, _ string) (*domain.Collection, error) {
	return m.collection, m.err
}

func (m *mockCollectionService) Delete(_ context.Context, _ string, _ domain.FileRetention) error {
	return m.err
}

func (m *mockCollectionService) Verify(_ context.Context, _ string) (*domain.Collection, error) {
	return m.collection, m.err
}

func (m *mockCollectionService) Papers(_ context.Context, _ string) ([]domain.PaperSummary, error) {
	return m.papers, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer  *domain.Answer
	err     error
	lastReq domain.AnswerRequest
}

func (m *mockAnswerService) Answer(_ context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	m.lastReq = req
	return m.answer, m.err
}

// mockSynthesisService is a mock implementation of driving.SynthesisService.
type mockSynthesisService struct {
	synthesis *domain.Synthesis
	err       error
	summarize domain.SummarizeRequest
	compare   domain.CompareRequest
}

func (m *mockSynthesisService) Summarize(_ context.Context, req domain.SummarizeRequest) (*domain.Synthesis, error) {
	m.summarize = req
	return m.synthesis, m.err
}

func (m *mockSynthesisService) Compare(_ context.Context, req domain.CompareRequest) (*domain.Synthesis, error) {
	m.compare = req
	return m.synthesis, m.err
}

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	if ports.Retrieval == nil {
		ports.Retrieval = &mockRetrievalService{}
	}
	if ports.Collections == nil {
		ports.Collections = &mockCollectionService{}
	}
	s, err := NewServer(ports, "test")
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	return s
}
