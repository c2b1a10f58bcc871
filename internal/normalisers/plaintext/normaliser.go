package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/normalisers/converted"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// pageBreak separates pages in pdftotext output.
const pageBreak = "\f"

// Normaliser handles plain text papers.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".txt", ".text"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise turns text into one body section per page. Form feeds mark
// page breaks; text without them is a single page.
func (n *Normaliser) Normalise(_ context.Context, path string, content []byte) (*domain.Document, error) {
	doc := &domain.Document{
		PaperID: converted.Stem(path),
		Title:   extractTitle(path),
	}

	text := strings.ReplaceAll(strings.ToValidUTF8(string(content), "\uFFFD"), "\r\n", "\n")
	for i, page := range strings.Split(text, pageBreak) {
		if page = strings.TrimSpace(page); page == "" {
			continue
		}
		doc.Sections = append(doc.Sections, domain.Section{
			Type:       domain.ChunkTypeBody,
			Text:       page,
			PageNumber: i + 1,
		})
	}

	if err := converted.ApplySidecar(path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// extractTitle extracts a human-readable title from a file path.
func extractTitle(path string) string {
	filename := converted.Stem(path)

	// Replace underscores and dashes with spaces
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")

	return filename
}
