// Package chunker provides a sliding-window text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// DefaultChunkSize is the default number of units per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping units.
const DefaultChunkOverlap = 200

// Processor splits document sections into overlapping chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
	unit      Unit
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in units.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in units.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithUnit sets what chunk size and overlap are measured in.
func WithUnit(unit Unit) Option {
	return func(p *Processor) {
		if unit != nil {
			p.unit = unit
		}
	}
}

// New creates a new chunker processor with the given options.
// Returns domain.ErrInvalidConfig unless 0 <= overlap < size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		unit:      Characters{},
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", domain.ErrInvalidConfig, p.chunkSize)
	}
	if p.overlap < 0 || p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)",
			domain.ErrInvalidConfig, p.overlap, p.chunkSize)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Chunk splits text of the given type into ordered chunk texts.
//
// Abstracts, tables and figure captions are returned whole. Other text of
// at most chunkSize units is returned whole; longer text is cut into
// windows of chunkSize units advancing by chunkSize-overlap, stopping at
// the first window that reaches the end. Text with no units yields nothing.
func (p *Processor) Chunk(text string, typ domain.ChunkType) []string {
	spans := p.unit.Spans(text)
	if len(spans) == 0 {
		return nil
	}
	if typ.Atomic() || len(spans) <= p.chunkSize {
		return []string{text}
	}

	step := p.chunkSize - p.overlap
	chunks := make([]string, 0, (len(spans)-p.overlap+step-1)/step)

	for start := 0; ; start += step {
		end := start + p.chunkSize
		if end > len(spans) {
			end = len(spans)
		}
		chunks = append(chunks, text[spans[start].Start:spans[end-1].End])
		if end >= len(spans) {
			break
		}
	}

	return chunks
}

// Process chunks every non-blank section of the document in order.
// Input chunks are ignored; this processor creates new chunks.
// Positions are consecutive across sections so re-chunking is reproducible.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	position := 0

	for si, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if strings.TrimSpace(section.Text) == "" {
			continue
		}

		for ci, text := range p.Chunk(section.Text, section.Type) {
			chunks = append(chunks, domain.Chunk{
				PaperID:    doc.PaperID,
				UniqueID:   doc.UniqueID,
				Text:       text,
				Type:       section.Type,
				PageNumber: section.PageNumber,
				Position:   position,
				Metadata: map[string]any{
					"section_index": si,
					"chunk_index":   ci,
				},
			})
			position++
		}
	}

	return chunks, nil
}
