package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/scholar/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.EmbeddingSettings
		wantModel string
		wantErr   error
	}{
		{
			name:    "nil settings",
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:     "openai without key",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantErr:  domain.ErrInvalidConfig,
		},
		{
			name:     "anthropic has no embeddings",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"},
			wantErr:  domain.ErrUnsupportedType,
		},
		{
			name:      "ollama",
			settings:  &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "mxbai-embed-large"},
			wantModel: "mxbai-embed-large",
		},
		{
			name: "openai",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "sk-test",
				Model:    "text-embedding-3-large",
			},
			wantModel: "text-embedding-3-large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings, domain.RetrySettings{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, svc.ModelName())
			assert.NoError(t, svc.Close())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	svc, err := CreateLLMService(nil, domain.RetrySettings{})
	require.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateLLMService(&domain.LLMSettings{}, domain.RetrySettings{})
	require.NoError(t, err)
	assert.Nil(t, svc)

	_, err = CreateLLMService(&domain.LLMSettings{Provider: domain.AIProviderAnthropic}, domain.RetrySettings{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = CreateLLMService(&domain.LLMSettings{Provider: "mistral"}, domain.RetrySettings{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	for _, p := range domain.AllLLMProviders() {
		svc, err := CreateLLMService(&domain.LLMSettings{Provider: p, APIKey: "k", Model: "m"}, domain.RetrySettings{})
		require.NoError(t, err, p)
		assert.Equal(t, "m", svc.ModelName())
	}
}

func TestCreateSparseEncoder(t *testing.T) {
	enc, err := CreateSparseEncoder(domain.SparseSettings{Encoder: "hashing", K1: 1.2})
	require.NoError(t, err)
	assert.Equal(t, "hashing", enc.ModelName())

	_, err = CreateSparseEncoder(domain.SparseSettings{Encoder: "splade"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestCreateVectorIndex(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.DataDir = t.TempDir()

	index, closer, err := CreateVectorIndex(&settings)
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.NoError(t, index.Close())
	assert.NoError(t, closer.Close())

	settings.VectorIndex.Backend = domain.IndexBackendQdrant
	index, closer, err = CreateVectorIndex(&settings)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &qdrant.Index{}, index)

	settings.VectorIndex.Backend = "faiss"
	_, _, err = CreateVectorIndex(&settings)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestInit(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.DataDir = t.TempDir()
	settings.LLM.Provider = domain.AIProviderOpenAI // no key: warning, not failure

	result, err := Init(&settings)
	require.NoError(t, err)
	assert.NotNil(t, result.EmbeddingService)
	assert.NotNil(t, result.SparseEncoder)
	assert.NotNil(t, result.VectorIndex)
	assert.Nil(t, result.LLMService)
	assert.Len(t, result.Warnings, 1)
	assert.NoError(t, result.Close())
}

func TestInit_InvalidEmbedding(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.DataDir = t.TempDir()
	settings.Embedding.Provider = domain.AIProviderOpenAI

	_, err := Init(&settings)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestFusionConfig(t *testing.T) {
	cfg := FusionConfig(domain.RetrievalSettings{DenseWeight: 0.7, CandidateMultiplier: 4, MinCandidates: 10})
	assert.Equal(t, 0.7, cfg.DenseWeight)
	assert.Equal(t, 40, cfg.CandidateLimit(10))
}
