package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a file.
type NormaliserRegistry interface {
	// Load reads path and normalises it with the best matching normaliser.
	// Returns domain.ErrUnsupportedType for unknown extensions.
	Load(ctx context.Context, path string) (*domain.Document, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// Supports reports whether path has a registered extension.
	Supports(path string) bool
}
