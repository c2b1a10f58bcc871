// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/scholar/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewCollections lists collections to search.
	ViewCollections ViewType = iota
	// ViewSearch is the query input and ranked results.
	ViewSearch
	// ViewAnswer shows a generated answer and its sources.
	ViewAnswer
	// ViewHelp is the keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewCollections:
		return "collections"
	case ViewSearch:
		return "search"
	case ViewAnswer:
		return "answer"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// CollectionsLoaded carries the collection list.
type CollectionsLoaded struct {
	Collections []domain.Collection
	Err         error
}

// CollectionSelected opens the search view on a collection.
type CollectionSelected struct {
	Collection domain.Collection
}

// SearchCompleted carries ranked results back to the model.
type SearchCompleted struct {
	Results []domain.RetrievalResult
	Err     error
}

// AnswerRequested asks the app to generate an answer for a query.
type AnswerRequested struct {
	Request domain.AnswerRequest
}

// AnswerCompleted carries a generated answer.
type AnswerCompleted struct {
	Answer *domain.Answer
	Err    error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}
