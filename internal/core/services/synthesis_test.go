package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func seedSynthesis(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t, IngestOptions{})
	env.createCollection(t, "papers", domain.SearchTypeHybrid)
	env.ingest(t, "papers", paper("sketch", "Analytical Engines", "The engine weaves algebraic patterns (2, 3)."))
	env.ingest(t, "papers", paper("tables", "Difference Engines", "Tables of polynomials computed by differences."))
	return env
}

func TestSynthesisService_Summarize(t *testing.T) {
	env := seedSynthesis(t)
	llm := &fakeLLM{reply: "  Both papers describe engines.  "}
	service := NewSynthesisService(env.store, llm, AnswerOptions{MaxTokens: 300, Temperature: 0.3})

	out, err := service.Summarize(context.Background(), domain.SummarizeRequest{
		CollectionID: "papers",
		PaperIDs:     []string{"sketch", "tables", "sketch"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Both papers describe engines.", out.Text)
	assert.Equal(t, []string{"sketch", "tables"}, out.PaperIDs)
	require.Len(t, out.Papers, 2)
	assert.Equal(t, "Analytical Engines", out.Papers[0].Title)
	assert.NotEmpty(t, out.Papers[0].APA)

	sketch, err := env.store.GetDocument(context.Background(), "papers", "sketch")
	require.NoError(t, err)
	assert.Contains(t, llm.prompt, "the 2 research paper(s)")
	assert.Contains(t, llm.prompt, "["+sketch.UniqueID+"]: An abstract about Analytical Engines.\n\n"+
		"The engine weaves algebraic patterns .")
	assert.Contains(t, llm.prompt, "Tables of polynomials")
	assert.Equal(t, 300, llm.opts.MaxTokens)
	assert.InDelta(t, 0.3, llm.opts.Temperature, 1e-9)
}

func TestSynthesisService_Summarize_MaxTokensOverride(t *testing.T) {
	env := seedSynthesis(t)
	llm := &fakeLLM{reply: "ok"}
	service := NewSynthesisService(env.store, llm, AnswerOptions{MaxTokens: 300})

	_, err := service.Summarize(context.Background(), domain.SummarizeRequest{
		CollectionID: "papers",
		PaperIDs:     []string{"sketch"},
		MaxTokens:    800,
	})
	require.NoError(t, err)
	assert.Equal(t, 800, llm.opts.MaxTokens)
	assert.Contains(t, llm.prompt, "the 1 research paper(s)")
}

func TestSynthesisService_Compare(t *testing.T) {
	env := seedSynthesis(t)
	llm := &fakeLLM{reply: "Similarities: both are engines."}
	service := NewSynthesisService(env.store, llm, AnswerOptions{})

	out, err := service.Compare(context.Background(), domain.CompareRequest{
		CollectionID: "papers",
		PaperIDs:     []string{"tables", "sketch"},
		Aspect:       domain.CompareMethodology,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tables", "sketch"}, out.PaperIDs)

	a := strings.Index(llm.prompt, "Paper A (")
	b := strings.Index(llm.prompt, "Paper B (")
	require.GreaterOrEqual(t, a, 0)
	require.Greater(t, b, a)
	assert.Contains(t, llm.prompt[a:b], "Tables of polynomials")
	assert.Contains(t, llm.prompt[b:], "The engine weaves")
	assert.Contains(t, llm.prompt, "\n\n---\n\n")
	assert.Contains(t, llm.prompt, aspectInstructions[domain.CompareMethodology])
}

func TestSynthesisService_Compare_DefaultAspect(t *testing.T) {
	env := seedSynthesis(t)
	llm := &fakeLLM{reply: "ok"}
	service := NewSynthesisService(env.store, llm, AnswerOptions{})

	_, err := service.Compare(context.Background(), domain.CompareRequest{
		CollectionID: "papers",
		PaperIDs:     []string{"sketch", "tables"},
	})
	require.NoError(t, err)
	assert.Contains(t, llm.prompt, aspectInstructions[domain.CompareAll])
}

func TestSynthesisService_PromptStore(t *testing.T) {
	env := seedSynthesis(t)
	llm := &fakeLLM{reply: "ok"}
	service := NewSynthesisService(env.store, llm, AnswerOptions{})
	service.SetPromptStore(fakePrompts{template: "N=%[1]d"})

	_, err := service.Summarize(context.Background(), domain.SummarizeRequest{
		CollectionID: "papers", PaperIDs: []string{"sketch"},
	})
	require.NoError(t, err)
	assert.Equal(t, "N=1", llm.prompt)
}

func TestSynthesisService_Errors(t *testing.T) {
	env := seedSynthesis(t)
	ctx := context.Background()

	t.Run("no llm", func(t *testing.T) {
		service := NewSynthesisService(env.store, nil, AnswerOptions{})
		_, err := service.Summarize(ctx, domain.SummarizeRequest{CollectionID: "papers", PaperIDs: []string{"sketch"}})
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
		_, err = service.Compare(ctx, domain.CompareRequest{CollectionID: "papers", PaperIDs: []string{"sketch", "tables"}})
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})

	t.Run("invalid requests", func(t *testing.T) {
		llm := &fakeLLM{}
		service := NewSynthesisService(env.store, llm, AnswerOptions{})
		_, err := service.Summarize(ctx, domain.SummarizeRequest{CollectionID: "papers"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = service.Compare(ctx, domain.CompareRequest{CollectionID: "papers", PaperIDs: []string{"sketch", "sketch"}})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = service.Compare(ctx, domain.CompareRequest{
			CollectionID: "papers", PaperIDs: []string{"sketch", "tables"}, Aspect: "style",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, llm.calls)
	})

	t.Run("unknown paper", func(t *testing.T) {
		llm := &fakeLLM{}
		service := NewSynthesisService(env.store, llm, AnswerOptions{})
		_, err := service.Compare(ctx, domain.CompareRequest{CollectionID: "papers", PaperIDs: []string{"sketch", "ghost"}})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorContains(t, err, "ghost")
		assert.Zero(t, llm.calls)
	})

	t.Run("llm failure", func(t *testing.T) {
		service := NewSynthesisService(env.store, &fakeLLM{err: errors.New("overloaded")}, AnswerOptions{})
		_, err := service.Summarize(ctx, domain.SummarizeRequest{CollectionID: "papers", PaperIDs: []string{"sketch"}})
		assert.ErrorContains(t, err, "overloaded")
	})
}

func TestPaperExcerpt(t *testing.T) {
	doc := &domain.Document{
		Abstract: "Fallback abstract.",
		Sections: []domain.Section{
			{Type: domain.ChunkTypeAbstract, Text: "Short abstract [4]."},
			{Type: domain.ChunkTypeBody, Text: "   "},
			{Type: domain.ChunkTypeBody, Text: strings.Repeat("é", 20)},
		},
	}

	assert.Equal(t, "Short abstract .\n\n"+strings.Repeat("é", 20), paperExcerpt(doc, 1000))

	cut := paperExcerpt(doc, 21)
	assert.True(t, utf8.ValidString(cut))
	assert.LessOrEqual(t, len(cut), 21)
	assert.Equal(t, "Short abstract .\n\né", cut)

	assert.Equal(t, "Fallback abstract.", paperExcerpt(&domain.Document{Abstract: "Fallback abstract."}, 100))
}

func TestPaperLetter(t *testing.T) {
	assert.Equal(t, "A", paperLetter(0))
	assert.Equal(t, "Z", paperLetter(25))
	assert.Equal(t, "AA", paperLetter(26))
	assert.Equal(t, "AB", paperLetter(27))
}

func TestCollectionService_Papers(t *testing.T) {
	env := seedSynthesis(t)
	ctx := context.Background()
	env.ingest(t, "papers", &domain.Document{PaperID: "empty", Title: "No Text"})

	papers, err := env.collections.Papers(ctx, "papers")
	require.NoError(t, err)
	require.Len(t, papers, 3)

	byID := map[string]domain.PaperSummary{}
	for _, p := range papers {
		byID[p.PaperID] = p
	}
	sketch := byID["sketch"]
	assert.Equal(t, "Analytical Engines", sketch.Title)
	assert.Equal(t, []string{"Ada Lovelace", "Charles Babbage"}, sketch.Authors)
	assert.Equal(t, 1843, sketch.Year)
	assert.Equal(t, env.pointCount(t, "papers", "sketch"), sketch.Points)
	assert.Positive(t, sketch.Points)
	assert.Zero(t, byID["empty"].Points)

	_, err = env.collections.Papers(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
