package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// ChunkUnit names the unit chunk size and overlap are measured in.
type ChunkUnit string

// Available chunk units.
const (
	ChunkUnitCharacters ChunkUnit = "characters"
	ChunkUnitTokens     ChunkUnit = "tokens"
)

// IsValid returns true if the unit is recognised.
func (u ChunkUnit) IsValid() bool {
	return u == ChunkUnitCharacters || u == ChunkUnitTokens
}

// IndexBackend names a vector index implementation.
type IndexBackend string

// Available vector index backends.
const (
	// IndexBackendSQLite stores vectors in the local SQLite database.
	IndexBackendSQLite IndexBackend = "sqlite"

	// IndexBackendQdrant talks to a Qdrant server over REST.
	IndexBackendQdrant IndexBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	return b == IndexBackendSQLite || b == IndexBackendQdrant
}

// Description returns a human-readable description of the backend.
func (b IndexBackend) Description() string {
	switch b {
	case IndexBackendSQLite:
		return "SQLite (embedded, brute-force scan)"
	case IndexBackendQdrant:
		return "Qdrant (server)"
	default:
		return unknownDescription
	}
}

// ChunkingSettings holds chunker configuration.
type ChunkingSettings struct {
	// Size is the chunk length in units.
	Size int

	// Overlap is the number of units shared by consecutive chunks.
	Overlap int

	// Unit is what Size and Overlap are measured in.
	Unit ChunkUnit
}

// EmbeddingSettings holds dense embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize is the number of texts per embedding call.
	BatchSize int

	// Timeout bounds a single embedding request.
	Timeout time.Duration

	// RequestsPerSecond caps the request rate to the provider.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// SparseSettings holds sparse encoder configuration.
type SparseSettings struct {
	// Encoder names the sparse encoder. Only "hashing" is built in.
	Encoder string

	// K1 is the term-frequency saturation constant.
	K1 float64
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the index implementation.
	Backend IndexBackend

	// URL is the server address (for Qdrant).
	URL string

	// APIKey is the server API key (for Qdrant).
	APIKey string

	// Timeout bounds a single index request.
	Timeout time.Duration
}

// RetrievalSettings holds ranking configuration.
type RetrievalSettings struct {
	// DenseWeight is the weight of the dense list in hybrid fusion.
	// The sparse list gets 1 - DenseWeight.
	DenseWeight float64

	// CandidateMultiplier widens each per-list candidate pool before fusion.
	CandidateMultiplier int

	// MinCandidates is the floor for the widened candidate pool.
	MinCandidates int

	// DefaultLimit is used when a query does not set a limit.
	DefaultLimit int
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// MaxTokens caps the generated answer length.
	MaxTokens int

	// Temperature controls randomness of generated answers.
	Temperature float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RetrySettings bounds retries of transient upstream failures.
type RetrySettings struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// IngestSettings holds ingestion pipeline configuration.
type IngestSettings struct {
	// Workers is the number of documents ingested in parallel.
	Workers int

	// MaxIndexAttempts bounds the redo loop after an indeterminate upsert.
	MaxIndexAttempts int

	// Pipeline is the ordered list of post-processors to run.
	Pipeline []string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// DataDir is the root of the collection directories and local stores.
	DataDir string

	Chunking    ChunkingSettings
	Embedding   EmbeddingSettings
	Sparse      SparseSettings
	VectorIndex VectorIndexSettings
	Retrieval   RetrievalSettings
	LLM         LLMSettings
	Retry       RetrySettings
	Ingest      IngestSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The LLM is left unconfigured; answer generation needs it set explicitly.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			Size:    1000,
			Overlap: 200,
			Unit:    ChunkUnitCharacters,
		},
		Embedding: EmbeddingSettings{
			Provider:          AIProviderOllama,
			Model:             "nomic-embed-text",
			BaseURL:           "http://localhost:11434",
			BatchSize:         32,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 20,
		},
		Sparse: SparseSettings{
			Encoder: "hashing",
			K1:      1.2,
		},
		VectorIndex: VectorIndexSettings{
			Backend: IndexBackendSQLite,
			URL:     "http://localhost:6333",
			Timeout: 30 * time.Second,
		},
		Retrieval: RetrievalSettings{
			DenseWeight:         0.5,
			CandidateMultiplier: 3,
			MinCandidates:       20,
			DefaultLimit:        10,
		},
		LLM: LLMSettings{
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Retry: RetrySettings{
			MaxAttempts:    4,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     8 * time.Second,
		},
		Ingest: IngestSettings{
			Workers:          4,
			MaxIndexAttempts: 3,
			Pipeline:         []string{"references", "chunker"},
		},
	}
}

// Validate rejects settings that can never work.
func (s *AppSettings) Validate() error {
	if s.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, %d)",
			ErrInvalidConfig, s.Chunking.Overlap, s.Chunking.Size)
	}
	if !s.Chunking.Unit.IsValid() {
		return fmt.Errorf("%w: unknown chunk unit %q", ErrInvalidConfig, s.Chunking.Unit)
	}
	if !s.VectorIndex.Backend.IsValid() {
		return fmt.Errorf("%w: unknown vector index backend %q", ErrInvalidConfig, s.VectorIndex.Backend)
	}
	if s.Retrieval.DenseWeight < 0 || s.Retrieval.DenseWeight > 1 {
		return fmt.Errorf("%w: dense weight must be in [0, 1]", ErrInvalidConfig)
	}
	if s.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding batch size must be positive", ErrInvalidConfig)
	}
	if s.Ingest.MaxIndexAttempts <= 0 {
		return fmt.Errorf("%w: max index attempts must be positive", ErrInvalidConfig)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}
