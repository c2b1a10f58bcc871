// Package references strips the bibliography from paper text before chunking.
package references

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// MetadataKey is where the removed references text is kept on the document.
const MetadataKey = "references"

var heading = regexp.MustCompile(
	`(?im)^(?:#{1,3}\s+|\*\*)?(?:References|Bibliography|Works Cited|Literature Cited)(?:\*\*)?\s*$`)

// Split cuts text at the first references heading.
// It returns the body before the heading and the references from the
// heading on; references is empty when there is no heading.
func Split(text string) (body, refs string) {
	loc := heading.FindStringIndex(text)
	if loc == nil {
		return text, ""
	}
	return strings.TrimRight(text[:loc[0]], " \t\r\n"), text[loc[0]:]
}

// Processor removes the references section from a document's body text.
// It implements the PostProcessor interface and passes chunks through.
type Processor struct{}

// New creates a references processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "references"
}

// Process truncates the first body section containing a references
// heading and drops the body sections after it. Tables and figure
// captions are kept. The removed text is stored under MetadataKey.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	var removed []string
	found := false
	kept := doc.Sections[:0:0]

	for _, section := range doc.Sections {
		if section.Type != domain.ChunkTypeBody {
			kept = append(kept, section)
			continue
		}
		if found {
			removed = append(removed, section.Text)
			continue
		}
		body, refs := Split(section.Text)
		if refs == "" {
			kept = append(kept, section)
			continue
		}
		found = true
		removed = append(removed, refs)
		if body != "" {
			section.Text = body
			kept = append(kept, section)
		}
	}

	if !found {
		return chunks, nil
	}

	doc.Sections = kept
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata[MetadataKey] = strings.Join(removed, "\n\n")

	return chunks, nil
}
