// Package ai provides factory functions for creating AI service adapters
// and the vector index backend they feed.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	ollamaembed "github.com/custodia-labs/scholar/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/scholar/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/scholar/internal/adapters/driven/embedding/sparse"
	anthropicllm "github.com/custodia-labs/scholar/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/scholar/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/scholar/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/scholar/internal/adapters/driven/retry"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/hybrid"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of backend initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	SparseEncoder    driven.SparseEmbeddingService
	LLMService       driven.LLMService // nil when no LLM is configured.
	VectorIndex      driven.VectorIndex
	Warnings         []string // Non-fatal issues, such as an unreachable LLM.

	closers []io.Closer
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() error {
	var errs []error
	if r.EmbeddingService != nil {
		errs = append(errs, r.EmbeddingService.Close())
	}
	if r.LLMService != nil {
		errs = append(errs, r.LLMService.Close())
	}
	if r.VectorIndex != nil {
		errs = append(errs, r.VectorIndex.Close())
	}
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Init builds every backend named by settings. The embedding service and
// the vector index are required; an LLM that fails to build is reported as
// a warning and left nil so retrieval keeps working.
func Init(settings *domain.AppSettings) (*InitResult, error) {
	result := &InitResult{}

	embedder, err := CreateEmbeddingService(&settings.Embedding, settings.Retry)
	if err != nil {
		return nil, err
	}
	result.EmbeddingService = embedder

	encoder, err := CreateSparseEncoder(settings.Sparse)
	if err != nil {
		_ = result.Close()
		return nil, err
	}
	result.SparseEncoder = encoder

	index, closer, err := CreateVectorIndex(settings)
	if err != nil {
		_ = result.Close()
		return nil, err
	}
	result.VectorIndex = index
	if closer != nil {
		result.closers = append(result.closers, closer)
	}

	llm, err := CreateLLMService(&settings.LLM, settings.Retry)
	if err != nil {
		msg := fmt.Sprintf("answer generation disabled: %v", err)
		logger.Warn("%s", msg)
		result.Warnings = append(result.Warnings, msg)
	}
	result.LLMService = llm

	return result, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// This is intended for use by the settings commands to validate credentials on configuration.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings, domain.RetrySettings{MaxAttempts: 1})
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings, domain.RetrySettings{MaxAttempts: 1})
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the dense embedding service named by settings.
func CreateEmbeddingService(settings *domain.EmbeddingSettings, retrySettings domain.RetrySettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider is not configured", domain.ErrInvalidConfig)
	}
	policy := retry.PolicyFrom(retrySettings)

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Timeout:           settings.Timeout,
			Retry:             policy,
			RequestsPerSecond: settings.RequestsPerSecond,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            settings.APIKey,
			BaseURL:           cloudBaseURL(settings.BaseURL),
			Model:             settings.Model,
			Timeout:           settings.Timeout,
			BatchSize:         settings.BatchSize,
			Retry:             policy,
			RequestsPerSecond: settings.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("%w: anthropic does not support embeddings, use ollama or openai",
			domain.ErrUnsupportedType)

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateSparseEncoder creates the sparse encoder named by settings.
func CreateSparseEncoder(settings domain.SparseSettings) (driven.SparseEmbeddingService, error) {
	return sparse.New(settings.Encoder, settings.K1)
}

// CreateLLMService creates the LLM service named by settings.
// Returns nil without error when no provider is configured.
func CreateLLMService(settings *domain.LLMSettings, retrySettings domain.RetrySettings) (driven.LLMService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: LLM provider %s needs an API key", domain.ErrInvalidConfig, settings.Provider)
	}
	policy := retry.PolicyFrom(retrySettings)

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Retry:   policy,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: cloudBaseURL(settings.BaseURL),
			Model:   settings.Model,
			Retry:   policy,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: cloudBaseURL(settings.BaseURL),
			Model:   settings.Model,
			Retry:   policy,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateVectorIndex creates the vector index backend named by settings.
// The returned closer, when non-nil, owns storage behind the index and must
// be closed after it.
func CreateVectorIndex(settings *domain.AppSettings) (driven.VectorIndex, io.Closer, error) {
	fusion := FusionConfig(settings.Retrieval)

	switch settings.VectorIndex.Backend {
	case domain.IndexBackendSQLite, "":
		store, err := sqlite.NewStore(settings.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite index: %w", err)
		}
		return store.VectorIndex(fusion), store, nil

	case domain.IndexBackendQdrant:
		return qdrant.NewIndex(qdrant.Config{
			URL:     settings.VectorIndex.URL,
			APIKey:  settings.VectorIndex.APIKey,
			Timeout: settings.VectorIndex.Timeout,
		}, fusion), nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: vector index backend %q",
			domain.ErrUnsupportedType, settings.VectorIndex.Backend)
	}
}

// FusionConfig converts retrieval settings into the hybrid ranking config.
func FusionConfig(s domain.RetrievalSettings) hybrid.Config {
	return hybrid.Config{
		DenseWeight:         s.DenseWeight,
		CandidateMultiplier: s.CandidateMultiplier,
		MinCandidates:       s.MinCandidates,
	}
}

// openAIBaseURL ignores the Ollama default URL left over from a provider switch.
func cloudBaseURL(u string) string {
	if u == ollamaembed.DefaultBaseURL {
		return ""
	}
	return u
}
