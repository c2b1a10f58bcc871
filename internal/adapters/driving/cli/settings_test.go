package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsSet(t *testing.T) {
	svc := &mockSettingsService{settings: domain.DefaultAppSettings()}
	withServices(t, Services{Settings: svc})

	out, err := execute(t, "settings", "set", "chunking.size", "800")
	require.NoError(t, err)
	assert.Equal(t, "800", svc.set["chunking.size"])
	assert.Contains(t, out, "Set chunking.size = 800")
}

func TestSettingsSet_Rejected(t *testing.T) {
	svc := &mockSettingsService{err: domain.ErrInvalidConfig}
	withServices(t, Services{Settings: svc})

	_, err := execute(t, "config", "set", "chunking.overlap", "5000")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSettingsKeys(t *testing.T) {
	withServices(t, Services{Settings: &mockSettingsService{}})

	out, err := execute(t, "settings", "keys")
	require.NoError(t, err)
	assert.Equal(t, "chunking.overlap\nchunking.size\n", out)
}

func TestSettingsShow(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.DataDir = "/data/scholar"
	withServices(t, Services{Settings: &mockSettingsService{settings: settings}})

	out, err := execute(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Data dir: /data/scholar")
	assert.Contains(t, out, "Size: 1000 characters")
	assert.Contains(t, out, "Ollama (local)")
	assert.Contains(t, out, "Dense weight: 0.50")
	assert.Contains(t, out, "Provider: (not set)")
	assert.Contains(t, out, "Configuration is valid.")
}
