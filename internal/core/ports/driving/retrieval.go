package driving

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// RetrievalService serves ranked, filterable search over a collection.
type RetrievalService interface {
	// Retrieve returns up to req.Limit chunks, best first.
	Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]domain.RetrievalResult, error)
}

// AnswerService generates answers grounded in retrieved chunks.
type AnswerService interface {
	// Answer retrieves context and asks the LLM to answer from it.
	// Returns domain.ErrLLMUnavailable when no LLM is configured.
	Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error)
}

// SynthesisService generates text over whole papers rather than a query.
type SynthesisService interface {
	// Summarize writes one summary covering the requested papers.
	Summarize(ctx context.Context, req domain.SummarizeRequest) (*domain.Synthesis, error)

	// Compare contrasts two or more papers, optionally on one aspect.
	Compare(ctx context.Context, req domain.CompareRequest) (*domain.Synthesis, error)
}
