// Command scholar ingests converted academic papers into collections and
// serves hybrid retrieval over them from the command line and over MCP.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/scholar/internal/adapters/driven/ai"
	"github.com/custodia-labs/scholar/internal/adapters/driven/config/file"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/filesystem"
	"github.com/custodia-labs/scholar/internal/adapters/driving/cli"
	"github.com/custodia-labs/scholar/internal/core/services"
	"github.com/custodia-labs/scholar/internal/logger"
	"github.com/custodia-labs/scholar/internal/normalisers"
	"github.com/custodia-labs/scholar/internal/postprocessors"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	home, err := file.DefaultDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := file.LoadEnv(".env", filepath.Join(home, ".env")); err != nil {
		logger.Warn("loading .env: %v", err)
	}

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open config: %v\n", err)
		return 1
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	svcs := cli.Services{
		Settings: settingsService,
		Loader:   normalisers.DefaultRegistry(),
	}

	backend, closeBackend, err := build(settingsService, home)
	if err != nil {
		svcs.InitErr = err
	} else {
		defer closeBackend()
		svcs.Collections = backend.Collections
		svcs.Ingestion = backend.Ingestion
		svcs.Retrieval = backend.Retrieval
		if backend.Answer != nil {
			svcs.Answer = backend.Answer
		}
		if backend.Synthesis != nil {
			svcs.Synthesis = backend.Synthesis
		}
	}

	cli.SetVersion(version)
	cli.SetServices(svcs)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitCode(err)
	}
	return 0
}

// backend holds the services that need storage, an embedder and an index.
type backend struct {
	Collections *services.CollectionService
	Ingestion   *services.IngestionService
	Retrieval   *services.RetrievalService
	Answer      *services.AnswerService    // nil when no LLM is configured.
	Synthesis   *services.SynthesisService // nil when no LLM is configured.
}

// build wires storage, AI adapters and services from the saved settings.
// The returned func releases everything build opened.
func build(settingsService *services.SettingsService, home string) (*backend, func(), error) {
	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}
	if settings.DataDir == "" {
		settings.DataDir = home
	}
	if err := settings.Validate(); err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(settings.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := filesystem.NewStore(filepath.Join(settings.DataDir, "collections"))
	if err != nil {
		return nil, nil, fmt.Errorf("open collection store: %w", err)
	}

	journal, err := bolt.NewJournal(settings.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open ingest journal: %w", err)
	}

	pipeline, err := postprocessors.DefaultRegistry().BuildPipeline(
		settings.Ingest.Pipeline, services.PipelineConfigs(settings))
	if err != nil {
		_ = journal.Close()
		return nil, nil, err
	}

	result, err := ai.Init(settings)
	if err != nil {
		_ = journal.Close()
		return nil, nil, err
	}
	for _, w := range result.Warnings {
		logger.Debug("%s", w)
	}

	closeAll := func() {
		if err := errors.Join(result.Close(), journal.Close()); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}

	b := &backend{
		Collections: services.NewCollectionService(store, result.VectorIndex, result.EmbeddingService, journal),
		Ingestion: services.NewIngestionService(
			store,
			result.VectorIndex,
			result.EmbeddingService,
			result.SparseEncoder,
			pipeline,
			journal,
			services.IngestOptions{
				BatchSize:        settings.Embedding.BatchSize,
				MaxIndexAttempts: settings.Ingest.MaxIndexAttempts,
				Workers:          settings.Ingest.Workers,
				OnResult:         cli.IngestProgress,
			},
		),
		Retrieval: services.NewRetrievalService(
			result.VectorIndex, result.EmbeddingService, result.SparseEncoder, settings.Retrieval.DefaultLimit),
	}

	if result.LLMService != nil {
		opts := services.AnswerOptions{
			MaxTokens:   settings.LLM.MaxTokens,
			Temperature: settings.LLM.Temperature,
		}
		b.Answer = services.NewAnswerService(b.Retrieval, store, result.LLMService, opts)
		b.Synthesis = services.NewSynthesisService(store, result.LLMService, opts)
		prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
		if err != nil {
			logger.Warn("prompt store: %v", err)
		} else {
			b.Answer.SetPromptStore(prompts)
			b.Synthesis.SetPromptStore(prompts)
		}
	}

	return b, closeAll, nil
}
