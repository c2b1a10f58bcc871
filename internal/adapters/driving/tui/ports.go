// Package tui provides an interactive terminal interface for searching
// collections and reading generated answers.
package tui

import (
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI calls.
type Ports struct {
	Collections driving.CollectionService
	Retrieval   driving.RetrievalService

	// Answer is optional; without it the answer key reports that no LLM is configured.
	Answer driving.AnswerService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Collections == nil {
		return ErrMissingCollectionService
	}
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
