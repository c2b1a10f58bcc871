package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyDataDir             = "data_dir"
	keyChunkSize           = "chunking.size"
	keyChunkOverlap        = "chunking.overlap"
	keyChunkUnit           = "chunking.unit"
	keyEmbedProvider       = "embedding.provider"
	keyEmbedModel          = "embedding.model"
	keyEmbedBaseURL        = "embedding.base_url"
	keyEmbedAPIKey         = "embedding.api_key"
	keyEmbedBatchSize      = "embedding.batch_size"
	keyEmbedTimeout        = "embedding.timeout"
	keyEmbedRPS            = "embedding.requests_per_second"
	keySparseEncoder       = "sparse.encoder"
	keySparseK1            = "sparse.k1"
	keyIndexBackend        = "vector_index.backend"
	keyIndexURL            = "vector_index.url"
	keyIndexAPIKey         = "vector_index.api_key"
	keyIndexTimeout        = "vector_index.timeout"
	keyDenseWeight         = "retrieval.dense_weight"
	keyCandidateMultiplier = "retrieval.candidate_multiplier"
	keyMinCandidates       = "retrieval.min_candidates"
	keyDefaultLimit        = "retrieval.default_limit"
	keyLLMProvider         = "llm.provider"
	keyLLMModel            = "llm.model"
	keyLLMBaseURL          = "llm.base_url"
	keyLLMAPIKey           = "llm.api_key"
	keyLLMMaxTokens        = "llm.max_tokens"
	keyLLMTemperature      = "llm.temperature"
	keyRetryMaxAttempts    = "retry.max_attempts"
	keyRetryInitialBackoff = "retry.initial_backoff"
	keyRetryMaxBackoff     = "retry.max_backoff"
	keyIngestWorkers       = "ingest.workers"
	keyIngestIndexAttempts = "ingest.max_index_attempts"
	keyIngestPipeline      = "ingest.pipeline"
)

// valueKind is how a key's string form is parsed by Set.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindDuration
	kindList
)

var settingKinds = map[string]valueKind{
	keyDataDir:             kindString,
	keyChunkSize:           kindInt,
	keyChunkOverlap:        kindInt,
	keyChunkUnit:           kindString,
	keyEmbedProvider:       kindString,
	keyEmbedModel:          kindString,
	keyEmbedBaseURL:        kindString,
	keyEmbedAPIKey:         kindString,
	keyEmbedBatchSize:      kindInt,
	keyEmbedTimeout:        kindDuration,
	keyEmbedRPS:            kindFloat,
	keySparseEncoder:       kindString,
	keySparseK1:            kindFloat,
	keyIndexBackend:        kindString,
	keyIndexURL:            kindString,
	keyIndexAPIKey:         kindString,
	keyIndexTimeout:        kindDuration,
	keyDenseWeight:         kindFloat,
	keyCandidateMultiplier: kindInt,
	keyMinCandidates:       kindInt,
	keyDefaultLimit:        kindInt,
	keyLLMProvider:         kindString,
	keyLLMModel:            kindString,
	keyLLMBaseURL:          kindString,
	keyLLMAPIKey:           kindString,
	keyLLMMaxTokens:        kindInt,
	keyLLMTemperature:      kindFloat,
	keyRetryMaxAttempts:    kindInt,
	keyRetryInitialBackoff: kindDuration,
	keyRetryMaxBackoff:     kindDuration,
	keyIngestWorkers:       kindInt,
	keyIngestIndexAttempts: kindInt,
	keyIngestPipeline:      kindList,
}

// SettingKeys returns every key Set accepts, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Keys returns every key Set accepts, sorted.
func (s *SettingsService) Keys() []string {
	return SettingKeys()
}

// Get retrieves current application settings. Unset keys take their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		DataDir: s.getString(keyDataDir, d.DataDir),
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap: s.getIntAllowZero(keyChunkOverlap, d.Chunking.Overlap),
			Unit:    domain.ChunkUnit(s.getString(keyChunkUnit, string(d.Chunking.Unit))),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:           s.getString(keyEmbedBaseURL, d.Embedding.BaseURL),
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			Timeout:           s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
		},
		Sparse: domain.SparseSettings{
			Encoder: s.getString(keySparseEncoder, d.Sparse.Encoder),
			K1:      s.getFloat(keySparseK1, d.Sparse.K1),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend: domain.IndexBackend(s.getString(keyIndexBackend, string(d.VectorIndex.Backend))),
			URL:     s.getString(keyIndexURL, d.VectorIndex.URL),
			APIKey:  s.configStore.GetString(keyIndexAPIKey),
			Timeout: s.getDuration(keyIndexTimeout, d.VectorIndex.Timeout),
		},
		Retrieval: domain.RetrievalSettings{
			DenseWeight:         s.getFloat(keyDenseWeight, d.Retrieval.DenseWeight),
			CandidateMultiplier: s.getInt(keyCandidateMultiplier, d.Retrieval.CandidateMultiplier),
			MinCandidates:       s.getInt(keyMinCandidates, d.Retrieval.MinCandidates),
			DefaultLimit:        s.getInt(keyDefaultLimit, d.Retrieval.DefaultLimit),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, d.LLM.Provider),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			MaxTokens:   s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
		},
		Retry: domain.RetrySettings{
			MaxAttempts:    s.getInt(keyRetryMaxAttempts, d.Retry.MaxAttempts),
			InitialBackoff: s.getDuration(keyRetryInitialBackoff, d.Retry.InitialBackoff),
			MaxBackoff:     s.getDuration(keyRetryMaxBackoff, d.Retry.MaxBackoff),
		},
		Ingest: domain.IngestSettings{
			Workers:          s.getInt(keyIngestWorkers, d.Ingest.Workers),
			MaxIndexAttempts: s.getInt(keyIngestIndexAttempts, d.Ingest.MaxIndexAttempts),
			Pipeline:         s.getStringSlice(keyIngestPipeline, d.Ingest.Pipeline),
		},
	}
	settings.LLM.Model = s.getString(keyLLMModel, domain.DefaultLLMModels()[settings.LLM.Provider])

	return settings, nil
}

// Save persists application settings.
// API keys are only written when set, so keys supplied by the environment stay out of the file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyDataDir, settings.DataDir},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyChunkUnit, string(settings.Chunking.Unit)},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keySparseEncoder, settings.Sparse.Encoder},
		{keySparseK1, settings.Sparse.K1},
		{keyIndexBackend, string(settings.VectorIndex.Backend)},
		{keyIndexURL, settings.VectorIndex.URL},
		{keyIndexTimeout, settings.VectorIndex.Timeout.String()},
		{keyDenseWeight, settings.Retrieval.DenseWeight},
		{keyCandidateMultiplier, settings.Retrieval.CandidateMultiplier},
		{keyMinCandidates, settings.Retrieval.MinCandidates},
		{keyDefaultLimit, settings.Retrieval.DefaultLimit},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyRetryMaxAttempts, settings.Retry.MaxAttempts},
		{keyRetryInitialBackoff, settings.Retry.InitialBackoff.String()},
		{keyRetryMaxBackoff, settings.Retry.MaxBackoff.String()},
		{keyIngestWorkers, settings.Ingest.Workers},
		{keyIngestIndexAttempts, settings.Ingest.MaxIndexAttempts},
		{keyIngestPipeline, settings.Ingest.Pipeline},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	secrets := map[string]string{
		keyEmbedAPIKey: settings.Embedding.APIKey,
		keyIndexAPIKey: settings.VectorIndex.APIKey,
		keyLLMAPIKey:   settings.LLM.APIKey,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return nil
}

// Set parses value according to key and stores it. The value is only
// stored when the resulting settings validate.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidConfig, key)
	}

	parsed, err := parseSetting(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfig, key, err)
	}

	probe := &SettingsService{configStore: &pendingValue{ConfigStore: s.configStore, key: key, value: parsed}}
	if err := probe.Validate(); err != nil {
		return err
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func parseSetting(kind valueKind, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	case kindList:
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

// pendingValue overlays one unsaved value on a config store.
type pendingValue struct {
	driven.ConfigStore
	key   string
	value any
}

func (p *pendingValue) Get(key string) (any, bool) {
	if key == p.key {
		return p.value, true
	}
	return p.ConfigStore.Get(key)
}

func (p *pendingValue) GetString(key string) string {
	if key == p.key {
		v, _ := p.value.(string)
		return v
	}
	return p.ConfigStore.GetString(key)
}

func (p *pendingValue) GetInt(key string) int {
	if key == p.key {
		v, _ := p.value.(int)
		return v
	}
	return p.ConfigStore.GetInt(key)
}

func (p *pendingValue) GetFloat(key string) float64 {
	if key == p.key {
		v, _ := p.value.(float64)
		return v
	}
	return p.ConfigStore.GetFloat(key)
}

func (p *pendingValue) GetStringSlice(key string) []string {
	if key == p.key {
		v, _ := p.value.([]string)
		return v
	}
	return p.ConfigStore.GetStringSlice(key)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidConfig, provider)
	}

	// Validate provider supports embeddings
	valid := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidConfig, provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidConfig, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	// Local providers need a base URL; cloud providers use their own.
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = domain.DefaultAppSettings().Embedding.BaseURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidConfig, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidConfig, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	} else {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = domain.DefaultAppSettings().Embedding.BaseURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the current settings can work.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// PipelineConfigs returns per-processor settings for the post-processor
// registry, keyed by processor name.
func PipelineConfigs(settings *domain.AppSettings) map[string]map[string]any {
	return map[string]map[string]any{
		"chunker": {
			"chunk_size": settings.Chunking.Size,
			"overlap":    settings.Chunking.Overlap,
			"unit":       string(settings.Chunking.Unit),
		},
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero keeps an explicit zero, e.g. no chunk overlap.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if v, exists := s.configStore.Get(key); !exists || v == "" {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

// getFloat keeps an explicit zero, e.g. a sparse-only dense weight.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if v, exists := s.configStore.Get(key); !exists || v == "" {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	val := s.configStore.GetStringSlice(key)
	if len(val) == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
