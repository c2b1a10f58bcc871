package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure AnswerService implements the interfaces.
var (
	_ driving.AnswerService   = (*AnswerService)(nil)
	_ driven.PromptStoreAware = (*AnswerService)(nil)
)

const (
	// DefaultTargetWords is the answer length asked for when the request sets none.
	DefaultTargetWords = 250

	// CannotAnswerPhrase is what the model is told to reply when the
	// excerpts are insufficient.
	CannotAnswerPhrase = "Sorry, I do not know the answer for this"

	// InsufficientContextMessage replaces a cannot-answer reply.
	InsufficientContextMessage = "The retrieved passages do not contain enough information to answer " +
		"this question. Try broadening your query or selecting different papers."
)

// fallbackAnswerPrompt is used when no prompt store is set.
const fallbackAnswerPrompt = `Answer the question in about %[1]d words using only the excerpts below. ` +
	`Cite sources by their labels in square brackets. ` +
	`If the excerpts are insufficient, reply with "%[2]s"

Question: %[3]s

Excerpts:
%[4]s

Answer:`

// Numeric citation markers carried over from the papers themselves,
// e.g. "(2, 3)", "[7,32]", "[2][3]". They would clash with the
// [UniqueID] labels the model is asked to cite.
var citationMarkers = []*regexp.Regexp{
	regexp.MustCompile(`\(\s*\d+(?:\s*,\s*\d+)*\s*\)`),
	regexp.MustCompile(`\[\s*\d+(?:\s*,\s*\d+)*\s*\]`),
	regexp.MustCompile(`(?:\[\d+\])+`),
}

// AnswerOptions tunes generation.
type AnswerOptions struct {
	MaxTokens   int
	Temperature float64
}

// AnswerService answers questions from retrieved chunks with an LLM.
type AnswerService struct {
	retrieval driving.RetrievalService
	store     driven.CollectionStore
	llm       driven.LLMService
	prompts   driven.PromptStore
	opts      AnswerOptions
}

// NewAnswerService creates a new answer service. A nil LLM disables Answer.
func NewAnswerService(
	retrieval driving.RetrievalService,
	store driven.CollectionStore,
	llm driven.LLMService,
	opts AnswerOptions,
) *AnswerService {
	return &AnswerService{
		retrieval: retrieval,
		store:     store,
		llm:       llm,
		opts:      opts,
	}
}

// SetPromptStore sets the store the answer prompt is loaded from.
func (s *AnswerService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Answer retrieves context for the question and asks the LLM to answer from it.
func (s *AnswerService) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	opErr := func(err error) error {
		return &domain.OpError{Op: "answer", CollectionID: req.CollectionID, Err: err}
	}
	if s.llm == nil {
		return nil, opErr(domain.ErrLLMUnavailable)
	}

	results, err := s.retrieval.Retrieve(ctx, req.RetrieveRequest)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Chunks:  results,
		Sources: s.sources(ctx, req.CollectionID, results),
	}
	if len(results) == 0 {
		answer.Text = InsufficientContextMessage
		return answer, nil
	}

	prompt, err := s.buildPrompt(req, results)
	if err != nil {
		return nil, opErr(err)
	}

	logger.Debug("Asking %s with %d excerpts", s.llm.ModelName(), len(results))
	text, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return nil, opErr(fmt.Errorf("generate answer: %w", err))
	}

	text = strings.TrimSpace(text)
	if strings.Contains(strings.ToLower(text), strings.ToLower(CannotAnswerPhrase)) {
		logger.Info("Model reported insufficient context")
		answer.Text = InsufficientContextMessage
		return answer, nil
	}

	answer.Text = text
	answer.Answerable = true
	return answer, nil
}

func (s *AnswerService) buildPrompt(req domain.AnswerRequest, results []domain.RetrievalResult) (string, error) {
	template := fallbackAnswerPrompt
	if s.prompts != nil {
		loaded, err := s.prompts.Load(driven.PromptAnswer)
		if err != nil {
			return "", fmt.Errorf("load answer prompt: %w", err)
		}
		template = loaded
	}

	words := req.TargetWords
	if words <= 0 {
		words = DefaultTargetWords
	}

	excerpts := make([]string, 0, len(results))
	for _, r := range results {
		label := r.UniqueID
		if label == "" {
			label = r.PaperID
		}
		excerpts = append(excerpts, fmt.Sprintf("[%s]: %s", label, CleanContext(r.Text)))
	}

	return fmt.Sprintf(template, words, CannotAnswerPhrase, strings.TrimSpace(req.Query),
		strings.Join(excerpts, "\n\n")), nil
}

// CleanContext strips numeric citation markers from chunk text.
func CleanContext(text string) string {
	for _, re := range citationMarkers {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// sources groups results per paper in rank order. Papers whose record
// cannot be read are listed without bibliographic fields.
func (s *AnswerService) sources(ctx context.Context, collectionID string, results []domain.RetrievalResult) []domain.PaperSource {
	var sources []domain.PaperSource
	index := make(map[string]int)
	pages := make(map[string]map[int]bool)

	for _, r := range results {
		i, ok := index[r.PaperID]
		if !ok {
			i = len(sources)
			index[r.PaperID] = i
			pages[r.PaperID] = make(map[int]bool)
			sources = append(sources, s.source(ctx, collectionID, r))
		}
		sources[i].Excerpts = append(sources[i].Excerpts, r.Text)
		if r.PageNumber > 0 && !pages[r.PaperID][r.PageNumber] {
			pages[r.PaperID][r.PageNumber] = true
			sources[i].Pages = append(sources[i].Pages, r.PageNumber)
		}
	}

	for i := range sources {
		sort.Ints(sources[i].Pages)
	}
	return sources
}

func (s *AnswerService) source(ctx context.Context, collectionID string, r domain.RetrievalResult) domain.PaperSource {
	src := domain.PaperSource{PaperID: r.PaperID, UniqueID: r.UniqueID}
	if s.store == nil {
		return src
	}
	doc, err := s.store.GetDocument(ctx, collectionID, r.PaperID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Read record of %s for citation: %v", r.PaperID, err)
		}
		return src
	}
	return citedSource(doc)
}

// citedSource describes a paper record with its formatted citations.
func citedSource(doc *domain.Document) domain.PaperSource {
	return domain.PaperSource{
		PaperID:  doc.PaperID,
		UniqueID: doc.UniqueID,
		Title:    doc.Title,
		Authors:  doc.Authors,
		Year:     doc.Year,
		APA:      domain.FormatAPA(doc),
		BibTeX:   domain.FormatBibTeX(doc),
	}
}
