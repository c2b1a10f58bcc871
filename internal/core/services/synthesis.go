package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure SynthesisService implements the interfaces.
var (
	_ driving.SynthesisService = (*SynthesisService)(nil)
	_ driven.PromptStoreAware  = (*SynthesisService)(nil)
)

const (
	// SummaryContextChars is the excerpt budget of a summary, shared by its papers.
	SummaryContextChars = 12000

	// CompareContextChars is the excerpt budget of each compared paper.
	CompareContextChars = 4000
)

const fallbackSummarizePrompt = `Summarize the %[1]d research paper(s) below from their excerpts. ` +
	`Cover the research question, the methodology, the key findings and their significance. ` +
	`When there are several papers, bring out their common themes. ` +
	`Cite papers by their labels in square brackets. Write two or three paragraphs.

Excerpts:
%[2]s

Summary:`

const fallbackComparePrompt = `Compare the following %[1]d research papers. %[2]s

%[3]s

Give a structured comparison with Similarities, Differences and Key Insights. ` +
	`Refer to the papers by their labels (Paper A, Paper B, ...).`

var aspectInstructions = map[domain.CompareAspect]string{
	domain.CompareAll: "Compare all aspects including methodologies, findings and implications.",
	domain.CompareMethodology: "Focus on the research methodologies, experimental designs and " +
		"approaches used.",
	domain.CompareFindings: "Focus on the key findings, results and conclusions.",
}

// SynthesisService summarizes and compares whole papers from their stored
// records with an LLM.
type SynthesisService struct {
	store   driven.CollectionStore
	llm     driven.LLMService
	prompts driven.PromptStore
	opts    AnswerOptions
}

// NewSynthesisService creates a new synthesis service. A nil LLM disables it.
func NewSynthesisService(store driven.CollectionStore, llm driven.LLMService, opts AnswerOptions) *SynthesisService {
	return &SynthesisService{store: store, llm: llm, opts: opts}
}

// SetPromptStore sets the store the prompts are loaded from.
func (s *SynthesisService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Summarize writes one summary covering the requested papers.
func (s *SynthesisService) Summarize(ctx context.Context, req domain.SummarizeRequest) (*domain.Synthesis, error) {
	opErr := func(err error) error {
		return &domain.OpError{Op: "summarize", CollectionID: req.CollectionID, Err: err}
	}
	if err := req.Validate(); err != nil {
		return nil, opErr(err)
	}
	if s.llm == nil {
		return nil, opErr(domain.ErrLLMUnavailable)
	}

	docs, err := s.papers(ctx, req.CollectionID, req.PaperIDs)
	if err != nil {
		return nil, opErr(err)
	}

	budget := SummaryContextChars / len(docs)
	excerpts := make([]string, 0, len(docs))
	for _, doc := range docs {
		excerpts = append(excerpts, fmt.Sprintf("[%s]: %s", paperLabel(doc), paperExcerpt(doc, budget)))
	}

	template, err := s.template(driven.PromptSummarize, fallbackSummarizePrompt)
	if err != nil {
		return nil, opErr(err)
	}
	prompt := fmt.Sprintf(template, len(docs), strings.Join(excerpts, "\n\n"))

	text, err := s.generate(ctx, prompt, req.MaxTokens)
	if err != nil {
		return nil, opErr(fmt.Errorf("generate summary: %w", err))
	}
	return synthesis(text, docs), nil
}

// Compare contrasts two or more papers. Papers are labelled A, B, C in
// request order.
func (s *SynthesisService) Compare(ctx context.Context, req domain.CompareRequest) (*domain.Synthesis, error) {
	opErr := func(err error) error {
		return &domain.OpError{Op: "compare", CollectionID: req.CollectionID, Err: err}
	}
	if err := req.Validate(); err != nil {
		return nil, opErr(err)
	}
	if s.llm == nil {
		return nil, opErr(domain.ErrLLMUnavailable)
	}
	aspect := req.Aspect
	if aspect == "" {
		aspect = domain.CompareAll
	}

	docs, err := s.papers(ctx, req.CollectionID, req.PaperIDs)
	if err != nil {
		return nil, opErr(err)
	}

	sections := make([]string, 0, len(docs))
	for i, doc := range docs {
		sections = append(sections, fmt.Sprintf("Paper %s (%s):\n%s",
			paperLetter(i), paperLabel(doc), paperExcerpt(doc, CompareContextChars)))
	}

	template, err := s.template(driven.PromptCompare, fallbackComparePrompt)
	if err != nil {
		return nil, opErr(err)
	}
	prompt := fmt.Sprintf(template, len(docs), aspectInstructions[aspect], strings.Join(sections, "\n\n---\n\n"))

	text, err := s.generate(ctx, prompt, 0)
	if err != nil {
		return nil, opErr(fmt.Errorf("generate comparison: %w", err))
	}
	return synthesis(text, docs), nil
}

// papers reads the records of the distinct paper ids in request order.
func (s *SynthesisService) papers(ctx context.Context, collectionID string, paperIDs []string) ([]*domain.Document, error) {
	seen := make(map[string]bool, len(paperIDs))
	docs := make([]*domain.Document, 0, len(paperIDs))
	for _, paperID := range paperIDs {
		if seen[paperID] {
			continue
		}
		seen[paperID] = true
		doc, err := s.store.GetDocument(ctx, collectionID, paperID)
		if err != nil {
			return nil, fmt.Errorf("paper %s: %w", paperID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *SynthesisService) template(name, fallback string) (string, error) {
	if s.prompts == nil {
		return fallback, nil
	}
	loaded, err := s.prompts.Load(name)
	if err != nil {
		return "", fmt.Errorf("load %s prompt: %w", name, err)
	}
	return loaded, nil
}

func (s *SynthesisService) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = s.opts.MaxTokens
	}
	logger.Debug("Asking %s for a synthesis (%d prompt bytes)", s.llm.ModelName(), len(prompt))
	text, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   maxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func synthesis(text string, docs []*domain.Document) *domain.Synthesis {
	out := &domain.Synthesis{Text: text}
	for _, doc := range docs {
		out.PaperIDs = append(out.PaperIDs, doc.PaperID)
		out.Papers = append(out.Papers, citedSource(doc))
	}
	return out
}

func paperLabel(doc *domain.Document) string {
	if doc.UniqueID != "" {
		return doc.UniqueID
	}
	return doc.PaperID
}

// paperLetter returns A..Z, then AA, AB and so on.
func paperLetter(i int) string {
	letter := string(rune('A' + i%26))
	if i < 26 {
		return letter
	}
	return paperLetter(i/26-1) + letter
}

// paperExcerpt joins the paper's non-blank sections in order, cleaned of
// citation markers, and cuts the result to at most budget bytes on a rune
// boundary.
func paperExcerpt(doc *domain.Document, budget int) string {
	var b strings.Builder
	for _, section := range doc.Sections {
		text := CleanContext(section.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
		if b.Len() >= budget {
			break
		}
	}
	if b.Len() == 0 && doc.Abstract != "" {
		b.WriteString(CleanContext(doc.Abstract))
	}

	out := b.String()
	if len(out) <= budget {
		return out
	}
	cut := budget
	for cut > 0 && !utf8.RuneStart(out[cut]) {
		cut--
	}
	return out[:cut]
}
