package domain

import "fmt"

// RetrieveRequest is a natural-language query against one collection.
type RetrieveRequest struct {
	// CollectionID is the collection to search.
	CollectionID string

	// Query is the natural-language query text.
	Query string

	// PaperIDs restricts results to the listed papers. Empty means all.
	PaperIDs []string

	// Limit is the maximum number of results. Zero uses the configured default.
	Limit int
}

// RetrievalResult is one ranked chunk with citation-grade provenance.
type RetrievalResult struct {
	PaperID    string         `json:"paper_id"`
	UniqueID   string         `json:"unique_id"`
	PageNumber int            `json:"page_number,omitempty"`
	Type       ChunkType      `json:"chunk_type"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// QueryMode is the caller-declared scope of a query.
type QueryMode string

// Query modes.
const (
	// QueryModeMulti searches the whole collection or a set of papers.
	QueryModeMulti QueryMode = "multi"

	// QueryModeSingle searches exactly one paper.
	QueryModeSingle QueryMode = "single"
)

// ScopeFilter validates the paper ids supplied for a query mode and returns
// the filter to pass to Retrieve. Single mode needs exactly one paper;
// multi mode accepts none or at least two.
func ScopeFilter(mode QueryMode, paperIDs []string) ([]string, error) {
	switch mode {
	case QueryModeSingle:
		if len(paperIDs) != 1 {
			return nil, fmt.Errorf("%w: single-paper mode needs exactly one paper id, got %d",
				ErrInvalidInput, len(paperIDs))
		}
	case QueryModeMulti, "":
		if len(paperIDs) == 1 {
			return nil, fmt.Errorf("%w: multi-paper mode needs zero or at least two paper ids",
				ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: unknown query mode %q", ErrInvalidInput, mode)
	}
	return paperIDs, nil
}

// AnswerRequest asks for a generated answer grounded in retrieved chunks.
type AnswerRequest struct {
	RetrieveRequest

	// TargetWords is the approximate answer length. Zero uses the default.
	TargetWords int
}

// PaperSource groups the retrieved excerpts of one paper behind an answer.
type PaperSource struct {
	PaperID  string   `json:"paper_id"`
	UniqueID string   `json:"unique_id"`
	Title    string   `json:"title,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Year     int      `json:"year,omitempty"`
	Pages    []int    `json:"pages,omitempty"`
	Excerpts []string `json:"excerpts"`
	APA      string   `json:"apa,omitempty"`
	BibTeX   string   `json:"bibtex,omitempty"`
}

// Answer is a generated answer with its supporting sources.
type Answer struct {
	Text    string            `json:"answer"`
	Sources []PaperSource     `json:"sources"`
	Chunks  []RetrievalResult `json:"chunks,omitempty"`

	// Answerable is false when the model reported insufficient context.
	Answerable bool `json:"answerable"`
}
