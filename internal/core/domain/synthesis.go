package domain

import (
	"fmt"
	"time"
)

// CompareAspect narrows what a paper comparison focuses on.
type CompareAspect string

// Comparison aspects.
const (
	CompareAll         CompareAspect = "all"
	CompareMethodology CompareAspect = "methodology"
	CompareFindings    CompareAspect = "findings"
)

// IsValid returns true if the aspect is recognised.
func (a CompareAspect) IsValid() bool {
	switch a {
	case CompareAll, CompareMethodology, CompareFindings:
		return true
	default:
		return false
	}
}

// SummarizeRequest asks for one summary over one or more papers.
type SummarizeRequest struct {
	CollectionID string
	PaperIDs     []string

	// MaxTokens overrides the configured generation limit when positive.
	MaxTokens int
}

// Validate checks the request names at least one paper.
func (r SummarizeRequest) Validate() error {
	if len(r.PaperIDs) == 0 {
		return fmt.Errorf("%w: at least one paper id is required", ErrInvalidInput)
	}
	return nil
}

// CompareRequest asks for a structured comparison of two or more papers.
type CompareRequest struct {
	CollectionID string
	PaperIDs     []string

	// Aspect defaults to CompareAll.
	Aspect CompareAspect
}

// Validate checks the request names at least two distinct papers and a known aspect.
func (r CompareRequest) Validate() error {
	seen := make(map[string]bool, len(r.PaperIDs))
	for _, id := range r.PaperIDs {
		seen[id] = true
	}
	if len(seen) < 2 {
		return fmt.Errorf("%w: at least two distinct paper ids are required", ErrInvalidInput)
	}
	if r.Aspect != "" && !r.Aspect.IsValid() {
		return fmt.Errorf("%w: unknown comparison aspect %q", ErrInvalidInput, r.Aspect)
	}
	return nil
}

// Synthesis is generated text over a fixed set of papers.
type Synthesis struct {
	Text     string        `json:"text"`
	PaperIDs []string      `json:"paper_ids"`
	Papers   []PaperSource `json:"papers"`
}

// PaperSummary is one row of a collection's paper listing.
type PaperSummary struct {
	PaperID    string    `json:"paper_id"`
	UniqueID   string    `json:"unique_id"`
	Title      string    `json:"title"`
	Authors    []string  `json:"authors,omitempty"`
	Year       int       `json:"year,omitempty"`
	SourcePath string    `json:"source_path,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`

	// Points is the number of index points the paper has.
	Points int `json:"points"`
}
