package chunker

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// Span is the byte range [Start, End) of one unit within a text.
type Span struct {
	Start int
	End   int
}

// Unit defines what chunk size and overlap count.
type Unit interface {
	// Name returns the unit name used in configuration.
	Name() string

	// Spans returns the units of text in order.
	Spans(text string) []Span
}

// Characters counts Unicode code points.
type Characters struct{}

// Name returns the unit name.
func (Characters) Name() string { return string(domain.ChunkUnitCharacters) }

// Spans returns one span per rune. An invalid byte is a one-byte rune.
func (Characters) Spans(text string) []Span {
	spans := make([]Span, 0, utf8.RuneCountInString(text))
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		spans = append(spans, Span{Start: i, End: i + size})
		i += size
	}
	return spans
}

// Tokens counts whitespace-delimited words. A chunk runs from its first
// word's start to its last word's end, keeping the original spacing.
type Tokens struct{}

// Name returns the unit name.
func (Tokens) Name() string { return string(domain.ChunkUnitTokens) }

// Spans returns one span per word.
func (Tokens) Spans(text string) []Span {
	var spans []Span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, Span{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

// UnitByName resolves a configured unit name.
func UnitByName(name string) (Unit, error) {
	switch domain.ChunkUnit(name) {
	case domain.ChunkUnitCharacters, "":
		return Characters{}, nil
	case domain.ChunkUnitTokens:
		return Tokens{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown chunk unit %q", domain.ErrInvalidConfig, name)
	}
}
