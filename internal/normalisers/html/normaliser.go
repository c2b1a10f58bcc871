package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/normalisers/converted"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML renditions of papers.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts an HTML paper into sections. Tables and figure captions
// become their own sections, an element whose class or id mentions
// "abstract" becomes the abstract, and citation_* meta tags fill the
// bibliographic fields.
func (n *Normaliser) Normalise(_ context.Context, path string, content []byte) (*domain.Document, error) {
	rawContent := strings.ToValidUTF8(string(content), "\uFFFD")

	doc := &domain.Document{
		PaperID: converted.Stem(path),
		Title:   extractHTMLTitle(rawContent, path),
	}
	applyCitationMeta(doc, rawContent)

	body := removeHidden(rawContent)

	if m := abstractBlock.FindStringSubmatchIndex(body); m != nil {
		doc.Abstract = stripHTML(body[m[2]:m[3]])
		body = body[:m[0]] + body[m[1]:]
	}
	if doc.Abstract != "" {
		doc.Sections = append(doc.Sections, section(domain.ChunkTypeAbstract, doc.Abstract))
	}

	var extracted []domain.Section
	body = captionTag.ReplaceAllStringFunc(body, func(tag string) string {
		extracted = append(extracted, section(domain.ChunkTypeFigureCaption, stripHTML(tag)))
		return "\n"
	})
	body = tableTag.ReplaceAllStringFunc(body, func(tag string) string {
		extracted = append(extracted, section(domain.ChunkTypeTable, tableText(tag)))
		return "\n"
	})

	if text := stripHTML(body); text != "" {
		doc.Sections = append(doc.Sections, section(domain.ChunkTypeBody, text))
	}
	for _, s := range extracted {
		if s.Text != "" {
			doc.Sections = append(doc.Sections, s)
		}
	}

	if err := converted.ApplySidecar(path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func section(typ domain.ChunkType, text string) domain.Section {
	return domain.Section{Type: typ, Text: text, PageNumber: 1}
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	citationMeta      = regexp.MustCompile(`(?is)<meta\s+name="citation_(\w+)"\s+content="([^"]*)"`)
	abstractBlock     = regexp.MustCompile(`(?is)<(?:section|div|p|blockquote)[^>]*(?:class|id)="[^"]*abstract[^"]*"[^>]*>(.*?)</(?:section|div|p|blockquote)>`)
	captionTag        = regexp.MustCompile(`(?is)<(?:figcaption|caption)[^>]*>.*?</(?:figcaption|caption)>`)
	tableTag          = regexp.MustCompile(`(?is)<table[^>]*>.*?</table>`)
	tableRow          = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	tableCell         = regexp.MustCompile(`(?is)<t[dh](?:\s[^>]*)?>(.*?)</t[dh]>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article|figure)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|figure)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// extractHTMLTitle extracts a title from the HTML content or falls back to filename.
func extractHTMLTitle(content, path string) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) > 1 {
		title := html.UnescapeString(strings.TrimSpace(matches[1]))
		if title != "" {
			return title
		}
	}

	filename := converted.Stem(path)
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// applyCitationMeta reads the citation_* meta tags publishers embed for indexers.
func applyCitationMeta(doc *domain.Document, content string) {
	for _, m := range citationMeta.FindAllStringSubmatch(content, -1) {
		value := strings.TrimSpace(html.UnescapeString(m[2]))
		if value == "" {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "title":
			doc.Title = value
		case "author":
			doc.Authors = append(doc.Authors, value)
		case "publication_date", "date":
			doc.PublicationDate = value
		case "journal_title", "conference_title":
			doc.Venue = value
		case "keywords":
			for _, k := range strings.Split(value, ";") {
				if k = strings.TrimSpace(k); k != "" {
					doc.Keywords = append(doc.Keywords, k)
				}
			}
		}
	}
}

// tableText renders a table as one line per row with cells separated by " | ".
func tableText(table string) string {
	var rows []string
	for _, row := range tableRow.FindAllStringSubmatch(table, -1) {
		var cells []string
		for _, cell := range tableCell.FindAllStringSubmatch(row[1], -1) {
			cells = append(cells, strings.ReplaceAll(stripHTML(cell[1]), "\n", " "))
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	return strings.Join(rows, "\n")
}

func removeHidden(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	return htmlComments.ReplaceAllString(content, "")
}

// stripHTML removes HTML tags and extracts readable text content.
func stripHTML(content string) string {
	content = removeHidden(content)

	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
