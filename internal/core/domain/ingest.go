package domain

import (
	"fmt"
	"time"
)

// IngestState is a stage of the per-document ingestion state machine.
type IngestState string

// Ingestion states in pipeline order. Failed is terminal and reachable
// from every non-terminal state.
const (
	IngestReceived IngestState = "received"
	IngestChunked  IngestState = "chunked"
	IngestEmbedded IngestState = "embedded"
	IngestIndexed  IngestState = "indexed"
	IngestVisible  IngestState = "visible"
	IngestFailed   IngestState = "failed"
)

var ingestTransitions = map[IngestState][]IngestState{
	"":             {IngestReceived},
	IngestReceived: {IngestChunked, IngestFailed},
	IngestChunked:  {IngestEmbedded, IngestFailed},
	// Embedded may loop back on itself when an indeterminate index write
	// is retried after delete-by-paper.
	IngestEmbedded: {IngestIndexed, IngestEmbedded, IngestFailed},
	IngestIndexed:  {IngestVisible, IngestFailed},
	IngestVisible:  {},
	IngestFailed:   {},
}

// IsTerminal reports whether no further transitions are allowed.
func (s IngestState) IsTerminal() bool {
	return s == IngestVisible || s == IngestFailed
}

// CanTransition reports whether moving from s to next is legal.
func (s IngestState) CanTransition(next IngestState) bool {
	for _, allowed := range ingestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (s IngestState) String() string {
	return string(s)
}

// IngestRecord is the journal entry for one paper in one collection.
type IngestRecord struct {
	CollectionID string      `json:"collection_id"`
	PaperID      string      `json:"paper_id"`
	State        IngestState `json:"state"`
	Chunks       int         `json:"chunks"`
	Attempts     int         `json:"attempts"`
	Error        string      `json:"error,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Advance moves the record to next, returning an error for an illegal move.
func (r *IngestRecord) Advance(next IngestState) error {
	if !r.State.CanTransition(next) {
		return fmt.Errorf("illegal ingest transition %s -> %s", r.State, next)
	}
	r.State = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// IngestReport summarises one completed ingestion.
type IngestReport struct {
	CollectionID string
	PaperID      string
	UniqueID     string
	Chunks       int
	Attempts     int
	Duration     time.Duration
}

// BatchResult holds the outcome of one document in a batch ingestion.
type BatchResult struct {
	PaperID string
	Report  *IngestReport
	Err     error
}
