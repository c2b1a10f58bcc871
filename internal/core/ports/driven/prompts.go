package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptAnswer asks for an answer grounded in labelled excerpts.
	// Placeholders: %[1]d target words, %[2]s cannot-answer phrase,
	// %[3]s question, %[4]s excerpts.
	PromptAnswer = "answer"

	// PromptSummarize asks for a summary of one or more papers.
	// Placeholders: %[1]d number of papers, %[2]s labelled excerpts.
	PromptSummarize = "summarize"

	// PromptCompare asks for a structured comparison of papers.
	// Placeholders: %[1]d number of papers, %[2]s aspect instruction,
	// %[3]s labelled paper contents.
	PromptCompare = "compare"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
