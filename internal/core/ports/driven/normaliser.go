package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// Normaliser turns the conversion collaborator's output into a Document.
// Each normaliser handles specific file extensions.
type Normaliser interface {
	// SupportedExtensions returns the lower-case extensions handled, with dot.
	SupportedExtensions() []string

	// Priority returns the selection priority (higher = preferred).
	Priority() int

	// Normalise parses content read from path. The paper id defaults to
	// the file stem when the content does not carry one.
	Normalise(ctx context.Context, path string, content []byte) (*domain.Document, error)
}
