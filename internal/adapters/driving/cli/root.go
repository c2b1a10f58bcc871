// Package cli provides the scholar command line interface built on cobra.
// Commands are thin: they parse flags, call a driving port and render the
// result. Services are injected once at startup with SetServices.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/connectors/filesystem"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var verbose bool

// Injected services. Commands report a configuration error when the one
// they need is nil.
var (
	collectionService driving.CollectionService
	ingestionService  driving.IngestionService
	retrievalService  driving.RetrievalService
	answerService     driving.AnswerService
	synthesisService  driving.SynthesisService
	settingsService   driving.SettingsService
	documentLoader    driven.NormaliserRegistry

	// initErr is why backend services could not be built, if they could not.
	initErr error
)

// Services bundles the ports the commands call.
type Services struct {
	Collections driving.CollectionService
	Ingestion   driving.IngestionService
	Retrieval   driving.RetrievalService
	Answer      driving.AnswerService
	Synthesis   driving.SynthesisService
	Settings    driving.SettingsService
	Loader      driven.NormaliserRegistry

	// InitErr reports a backend that failed to start. Commands that need
	// the missing services return it; settings and version still work.
	InitErr error
}

// SetServices injects the services used by all commands.
func SetServices(s Services) {
	collectionService = s.Collections
	ingestionService = s.Ingestion
	retrievalService = s.Retrieval
	answerService = s.Answer
	synthesisService = s.Synthesis
	settingsService = s.Settings
	documentLoader = s.Loader
	initErr = s.InitErr
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "scholar",
	Short: "Ingest and search academic papers",
	Long: `Scholar ingests converted academic papers into isolated collections and
serves hybrid dense and sparse retrieval over them, with optional
LLM-generated answers grounded in the retrieved passages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error onto a process exit status.
func ExitCode(err error) int {
	switch domain.KindOf(err) {
	case "":
		return 0
	case domain.KindInvalidInput, domain.KindInvalidConfig:
		return 2
	case domain.KindNotFound:
		return 3
	case domain.KindConflict, domain.KindInconsistent:
		return 4
	case domain.KindUpstreamUnavailable:
		return 5
	case domain.KindCancelled:
		return 130
	default:
		return 1
	}
}

// errNotConfigured reports a service missing from the composition root.
func errNotConfigured(name string) error {
	if initErr != nil {
		return fmt.Errorf("%s service unavailable: %w", name, initErr)
	}
	return fmt.Errorf("%w: %s service not configured", domain.ErrInvalidConfig, name)
}

// commandContext returns the command's context, or Background when run
// outside Execute (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// scannerFor builds an inbox scanner over the loader's extensions.
func scannerFor(includes, excludes []string) *filesystem.Scanner {
	var supports func(string) bool
	if documentLoader != nil {
		supports = documentLoader.Supports
	}
	if len(excludes) > 0 {
		excludes = append(excludes, filesystem.DefaultExcludes...)
	}
	return filesystem.NewScanner(supports, includes, excludes)
}
