package markdown

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/normalisers/converted"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles markdown produced by the PDF conversion step.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise segments a converted markdown paper into typed, paged sections.
// Bibliographic fields come from the metadata side file when present.
func (n *Normaliser) Normalise(_ context.Context, path string, content []byte) (*domain.Document, error) {
	text := strings.ReplaceAll(strings.ToValidUTF8(string(content), "\uFFFD"), "\r\n", "\n")

	doc := &domain.Document{
		PaperID:  converted.Stem(path),
		Title:    extractMarkdownTitle(text, path),
		Sections: Segment(text),
	}
	for _, s := range doc.Sections {
		if s.Type == domain.ChunkTypeAbstract {
			doc.Abstract = s.Text
			break
		}
	}

	if err := converted.ApplySidecar(path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

var (
	pageMarker   = regexp.MustCompile(`(?i)^<!--\s*page\s+(\d+)\s*-->$`)
	pageRule     = regexp.MustCompile(`^-{5,}$`)
	headingLine  = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	abstractHead = regexp.MustCompile(`(?i)^(?:#{1,6}\s*)?[*_]*\s*abstract\s*[:.]?\s*[*_]*$`)
	tableLine    = regexp.MustCompile(`^\|`)
	tableRule    = regexp.MustCompile(`^\|[\s:|-]+\|?$`)
	captionLine  = regexp.MustCompile(`^[*_]*(?:Figure|Fig\.|Table)\s+\d+`)
)

// segmenter accumulates lines into sections.
type segmenter struct {
	page     int
	kind     domain.ChunkType
	resume   domain.ChunkType
	buf      []string
	sections []domain.Section
}

func (s *segmenter) flush() {
	var text string
	if s.kind == domain.ChunkTypeTable {
		text = strings.TrimSpace(strings.Join(s.buf, "\n"))
	} else {
		text = stripMarkdown(strings.Join(s.buf, "\n"))
	}
	s.buf = s.buf[:0]
	if text == "" {
		return
	}
	s.sections = append(s.sections, domain.Section{Type: s.kind, Text: text, PageNumber: s.page})
}

// enter flushes the current section and starts one of kind. Tables and
// captions return to the surrounding kind when they end.
func (s *segmenter) enter(kind domain.ChunkType) {
	s.flush()
	if !s.transient() {
		s.resume = s.kind
	}
	s.kind = kind
}

func (s *segmenter) leave() {
	s.flush()
	s.kind = s.resume
}

func (s *segmenter) transient() bool {
	return s.kind == domain.ChunkTypeTable || s.kind == domain.ChunkTypeFigureCaption
}

// Segment splits converted markdown into sections. Page markers
// (<!-- page N --> or a rule of five or more dashes) advance the page. An
// Abstract heading starts the abstract, which runs to the next heading.
// Consecutive lines starting with | form a table, a line starting with a
// Figure, Fig. or Table label starts a caption that runs to the next blank
// line, and everything else is body text. The first level-one heading is
// the title and is not repeated in the body.
func Segment(text string) []domain.Section {
	s := &segmenter{page: 1, kind: domain.ChunkTypeBody, resume: domain.ChunkTypeBody}
	titleSeen, inFence := false, false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "```") {
			inFence = !inFence
		}
		if inFence || strings.HasPrefix(line, "```") {
			s.buf = append(s.buf, raw)
			continue
		}

		if m := pageMarker.FindStringSubmatch(line); m != nil {
			s.newPage(m[1])
			continue
		}
		if pageRule.MatchString(line) {
			s.newPage("")
			continue
		}

		if s.kind == domain.ChunkTypeTable && !tableLine.MatchString(line) {
			s.leave()
		}
		if s.kind == domain.ChunkTypeFigureCaption && line == "" {
			s.leave()
			continue
		}

		switch {
		case abstractHead.MatchString(line):
			if s.transient() {
				s.leave()
			}
			s.flush()
			s.kind = domain.ChunkTypeAbstract
		case headingLine.MatchString(line):
			if s.transient() {
				s.leave()
			}
			if !titleSeen && strings.HasPrefix(line, "# ") {
				titleSeen = true
				continue
			}
			s.flush()
			s.kind = domain.ChunkTypeBody
			s.buf = append(s.buf, line)
		case tableLine.MatchString(line):
			if s.kind != domain.ChunkTypeTable {
				s.enter(domain.ChunkTypeTable)
			}
			if !tableRule.MatchString(line) {
				s.buf = append(s.buf, line)
			}
		case captionLine.MatchString(line) && s.kind != domain.ChunkTypeFigureCaption:
			s.enter(domain.ChunkTypeFigureCaption)
			s.buf = append(s.buf, line)
		default:
			s.buf = append(s.buf, raw)
		}
	}
	s.flush()
	return s.sections
}

// newPage flushes and moves to page n, or to the next page when n is empty.
func (s *segmenter) newPage(n string) {
	if s.transient() {
		s.leave()
	}
	s.flush()
	if p, err := strconv.Atoi(n); err == nil && p > 0 {
		s.page = p
		return
	}
	s.page++
}

// extractMarkdownTitle extracts a title from the markdown content or falls back to filename.
func extractMarkdownTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	filename := converted.Stem(filepath.Base(path))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

var (
	codeBlock     = regexp.MustCompile("(?s)```[^`]*```")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasis      = regexp.MustCompile(`(\*\*|__|\*|\b_|_\b)`)
	blockquote    = regexp.MustCompile(`(?m)^>\s*`)
	horizontal    = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkers   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes markdown formatting, keeping the readable text.
// Numbered list markers stay since papers number their steps and claims.
func stripMarkdown(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = horizontal.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "")
	content = blockquote.ReplaceAllString(content, "")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
