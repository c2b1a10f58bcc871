package mcp

import (
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval ranks chunks against a query.
	Retrieval driving.RetrievalService

	// Collections lists collections and their status.
	Collections driving.CollectionService

	// Answer generates grounded answers. Optional: without it the
	// answer_question tool is not registered.
	Answer driving.AnswerService

	// Synthesis summarizes and compares papers. Optional: without it the
	// summarize_papers and compare_papers tools are not registered.
	Synthesis driving.SynthesisService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.Collections == nil {
		return ErrMissingCollectionService
	}
	return nil
}
