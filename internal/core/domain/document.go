package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ChunkType classifies the part of a paper a chunk was taken from.
type ChunkType string

// Chunk types produced by the conversion collaborator.
const (
	ChunkTypeAbstract      ChunkType = "abstract"
	ChunkTypeBody          ChunkType = "body"
	ChunkTypeTable         ChunkType = "table"
	ChunkTypeFigureCaption ChunkType = "figure_caption"
)

// IsValid returns true if the chunk type is recognised.
func (t ChunkType) IsValid() bool {
	switch t {
	case ChunkTypeAbstract, ChunkTypeBody, ChunkTypeTable, ChunkTypeFigureCaption:
		return true
	default:
		return false
	}
}

// Atomic reports whether text of this type is always kept as a single chunk.
func (t ChunkType) Atomic() bool {
	return t == ChunkTypeAbstract || t == ChunkTypeTable || t == ChunkTypeFigureCaption
}

// String returns the string representation.
func (t ChunkType) String() string {
	return string(t)
}

// UnknownUniqueID is the citation key used when a paper has no usable
// author, title or year.
const UnknownUniqueID = "UnknownPaper"

// Section is one segmented unit of converted paper text.
type Section struct {
	// Type is the kind of content held by the section.
	Type ChunkType `json:"type" yaml:"type"`

	// Text is the extracted text.
	Text string `json:"text" yaml:"text"`

	// PageNumber is the 1-based source page, 0 when unknown.
	PageNumber int `json:"page_number,omitempty" yaml:"page_number,omitempty"`
}

// Document is one paper as received from the conversion collaborator.
// It is the record persisted in the collection directory.
type Document struct {
	// PaperID is the stable opaque identifier for the paper.
	PaperID string `json:"paper_id"`

	// UniqueID is the human-readable citation key. Collisions are tolerated.
	UniqueID string `json:"unique_id"`

	Title           string         `json:"title"`
	Authors         []string       `json:"authors"`
	Year            int            `json:"year,omitempty"`
	Abstract        string         `json:"abstract,omitempty"`
	PublicationDate string         `json:"publication_date,omitempty"`
	Venue           string         `json:"journal_conference,omitempty"`
	Keywords        []string       `json:"keywords,omitempty"`
	Sections        []Section      `json:"sections,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`

	// SourcePath is where the converted document was loaded from.
	SourcePath string `json:"source_path,omitempty"`

	// IngestedAt is when the document record was last written.
	IngestedAt time.Time `json:"ingested_at"`
}

// Chunk is the minimal indexed and retrievable unit of paper text.
type Chunk struct {
	// ID is the surrogate key assigned by the vector index.
	// It is empty until the chunk has been indexed.
	ID string

	// PaperID links to the parent Document.
	PaperID string

	// UniqueID is the parent document's citation key.
	UniqueID string

	// Text is the chunk content.
	Text string

	// Type is the kind of section the chunk came from.
	Type ChunkType

	// PageNumber is the source page, 0 when unknown.
	PageNumber int

	// Position is the ordinal within the document. Re-chunking the same
	// document with the same settings reproduces the same positions.
	Position int

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

var (
	nonLetters = regexp.MustCompile(`[^a-zA-Z]`)
	yearRun    = regexp.MustCompile(`\d{4}`)
)

// GenerateUniqueID builds a citation key from the first author's surname,
// the first two title words and the year, e.g. "SmithDeepLearning2020".
func GenerateUniqueID(title string, authors []string, year int) string {
	var parts []string

	if len(authors) > 0 {
		if fields := strings.Fields(authors[0]); len(fields) > 0 {
			parts = append(parts, nonLetters.ReplaceAllString(fields[len(fields)-1], ""))
		}
	}

	if words := strings.Fields(title); len(words) > 0 {
		if len(words) > 2 {
			words = words[:2]
		}
		var b strings.Builder
		for _, w := range words {
			b.WriteString(capitalize(w))
		}
		parts = append(parts, nonLetters.ReplaceAllString(b.String(), ""))
	}

	if year > 0 {
		parts = append(parts, strconv.Itoa(year))
	}

	id := strings.Join(parts, "")
	if id == "" {
		return UnknownUniqueID
	}
	return id
}

func capitalize(word string) string {
	runes := []rune(strings.ToLower(word))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// ExtractYear returns the first four-digit run in a publication date,
// or 0 when there is none.
func ExtractYear(publicationDate string) int {
	match := yearRun.FindString(publicationDate)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

// Normalise fills derived fields: Year from PublicationDate and UniqueID
// from the bibliographic fields.
func (d *Document) Normalise() {
	if d.Year == 0 {
		d.Year = ExtractYear(d.PublicationDate)
	}
	if d.UniqueID == "" {
		d.UniqueID = GenerateUniqueID(d.Title, d.Authors, d.Year)
	}
	if d.Abstract != "" && !d.hasSection(ChunkTypeAbstract) {
		d.Sections = append([]Section{{Type: ChunkTypeAbstract, Text: d.Abstract, PageNumber: 1}}, d.Sections...)
	}
}

func (d *Document) hasSection(t ChunkType) bool {
	for _, s := range d.Sections {
		if s.Type == t {
			return true
		}
	}
	return false
}

// MergeMetadata fills empty bibliographic fields and missing metadata keys
// from other. Fields already set on d are never overwritten.
func (d *Document) MergeMetadata(other *Document) {
	if other == nil {
		return
	}
	if d.Title == "" {
		d.Title = other.Title
	}
	if len(d.Authors) == 0 {
		d.Authors = other.Authors
	}
	if d.Year == 0 {
		d.Year = other.Year
	}
	if d.Abstract == "" {
		d.Abstract = other.Abstract
	}
	if d.PublicationDate == "" {
		d.PublicationDate = other.PublicationDate
	}
	if d.Venue == "" {
		d.Venue = other.Venue
	}
	if len(d.Keywords) == 0 {
		d.Keywords = other.Keywords
	}
	if d.UniqueID == "" {
		d.UniqueID = other.UniqueID
	}
	for k, v := range other.Metadata {
		if d.Metadata == nil {
			d.Metadata = make(map[string]any, len(other.Metadata))
		}
		if _, ok := d.Metadata[k]; !ok {
			d.Metadata[k] = v
		}
	}
}

// Validate checks the fields required to ingest the document.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.PaperID) == "" {
		return &OpError{Op: "validate document", Err: fmt.Errorf("%w: paper id is required", ErrInvalidInput)}
	}
	for _, s := range d.Sections {
		if !s.Type.IsValid() {
			return &OpError{
				Op:      "validate document",
				PaperID: d.PaperID,
				Err:     fmt.Errorf("%w: unknown section type %q", ErrInvalidInput, s.Type),
			}
		}
	}
	return nil
}
