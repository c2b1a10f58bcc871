package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func testSynthesis() *domain.Synthesis {
	return &domain.Synthesis{
		Text:     "Both papers study engines [LovelaceSketchOf1843].",
		PaperIDs: []string{"p1", "p2"},
		Papers: []domain.PaperSource{
			{PaperID: "p1", UniqueID: "LovelaceSketchOf1843", Title: "Sketch of the Analytical Engine",
				APA: "Lovelace, A. (1843). Sketch of the Analytical Engine."},
			{PaperID: "p2", UniqueID: "BabbageOnThe1864"},
		},
	}
}

func TestSummarize(t *testing.T) {
	svc := &mockSynthesisService{synthesis: testSynthesis()}
	withServices(t, Services{Synthesis: svc})

	out, err := execute(t, "summarize", "ml", "p1", "p2", "--max-tokens", "800")
	require.NoError(t, err)
	assert.Equal(t, "ml", svc.summarize.CollectionID)
	assert.Equal(t, []string{"p1", "p2"}, svc.summarize.PaperIDs)
	assert.Equal(t, 800, svc.summarize.MaxTokens)
	assert.Contains(t, out, "Both papers study engines")
	assert.Contains(t, out, "[LovelaceSketchOf1843] Sketch of the Analytical Engine")
	assert.Contains(t, out, "Lovelace, A. (1843).")
	assert.Contains(t, out, "[BabbageOnThe1864] p2")
}

func TestSummarize_RequiresPaper(t *testing.T) {
	withServices(t, Services{Synthesis: &mockSynthesisService{}})

	_, err := execute(t, "summarize", "ml")
	require.Error(t, err)
}

func TestCompare(t *testing.T) {
	t.Run("aspect and json", func(t *testing.T) {
		svc := &mockSynthesisService{synthesis: testSynthesis()}
		withServices(t, Services{Synthesis: svc})

		out, err := execute(t, "compare", "ml", "p1", "p2", "--aspect", "findings", "--json")
		require.NoError(t, err)
		assert.Equal(t, domain.CompareFindings, svc.compare.Aspect)
		assert.Equal(t, []string{"p1", "p2"}, svc.compare.PaperIDs)

		var got domain.Synthesis
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, []string{"p1", "p2"}, got.PaperIDs)
	})

	t.Run("defaults to all aspects", func(t *testing.T) {
		svc := &mockSynthesisService{synthesis: testSynthesis()}
		withServices(t, Services{Synthesis: svc})

		_, err := execute(t, "compare", "ml", "p1", "p2")
		require.NoError(t, err)
		assert.Equal(t, domain.CompareAll, svc.compare.Aspect)
	})

	t.Run("needs two papers", func(t *testing.T) {
		svc := &mockSynthesisService{}
		withServices(t, Services{Synthesis: svc})

		_, err := execute(t, "compare", "ml", "p1")
		require.Error(t, err)
		assert.Zero(t, svc.comparisons)
	})

	t.Run("service error", func(t *testing.T) {
		withServices(t, Services{Synthesis: &mockSynthesisService{err: domain.ErrNotFound}})

		_, err := execute(t, "compare", "ml", "p1", "ghost")
		assert.Equal(t, 3, ExitCode(err))
	})
}

func TestSynthesis_NotConfigured(t *testing.T) {
	withServices(t, Services{})

	_, err := execute(t, "summarize", "ml", "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
