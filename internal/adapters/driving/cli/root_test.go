package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "scholar", rootCmd.Use)
}

func TestRootCmd_HasCommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"collection", "ingest", "query", "reindex", "remove", "status", "summarize", "compare", "settings", "mcp", "tui", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidInput), 2},
		{domain.ErrInvalidConfig, 2},
		{domain.ErrNotFound, 3},
		{domain.ErrConflict, 4},
		{domain.ErrInconsistent, 4},
		{domain.ErrUpstreamUnavailable, 5},
		{context.Canceled, 130},
		{errors.New("boom"), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("")
	assert.Equal(t, original, version)
	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b c", truncate("a\n b   c", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestErrNotConfigured_ReportsInitError(t *testing.T) {
	withServices(t, Services{InitErr: fmt.Errorf("open index: %w", domain.ErrUpstreamUnavailable)})

	_, err := execute(t, "query", "ml", "x")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "retrieval service unavailable")
	assert.Equal(t, 5, ExitCode(err))
}
