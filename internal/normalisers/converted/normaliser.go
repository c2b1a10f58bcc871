// Package converted loads the structured output of the PDF conversion step:
// a JSON or YAML object with bibliographic fields and typed sections.
// It also reads the metadata side files that accompany converted markdown.
package converted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// MetadataSuffix marks a side file holding metadata for <stem>.md.
const MetadataSuffix = "_metadata"

// SidecarExtensions are the metadata side file extensions, in lookup order.
var SidecarExtensions = []string{".json", ".yaml", ".yml"}

// Record is the on-disk shape of a converted paper.
type Record struct {
	PaperID         string           `json:"paper_id" yaml:"paper_id"`
	UniqueID        string           `json:"unique_id" yaml:"unique_id"`
	Title           string           `json:"title" yaml:"title"`
	Authors         Authors          `json:"authors" yaml:"authors"`
	Year            int              `json:"year" yaml:"year"`
	Abstract        string           `json:"abstract" yaml:"abstract"`
	PublicationDate string           `json:"publication_date" yaml:"publication_date"`
	Venue           string           `json:"journal_conference" yaml:"journal_conference"`
	Keywords        []string         `json:"keywords" yaml:"keywords"`
	Sections        []domain.Section `json:"sections" yaml:"sections"`
	Metadata        map[string]any   `json:"metadata" yaml:"metadata"`
}

// Authors accepts either a list of names or one string separated by
// semicolons or " and ".
type Authors []string

// UnmarshalJSON decodes a list or a single string.
func (a *Authors) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = cleanNames(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("authors must be a list or a string: %w", err)
	}
	*a = splitNames(single)
	return nil
}

// UnmarshalYAML decodes a sequence or a scalar.
func (a *Authors) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*a = cleanNames(list)
	case yaml.ScalarNode:
		*a = splitNames(node.Value)
	default:
		return fmt.Errorf("authors must be a list or a string at line %d", node.Line)
	}
	return nil
}

func splitNames(s string) []string {
	s = strings.ReplaceAll(s, " and ", ";")
	return cleanNames(strings.Split(s, ";"))
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Document converts the record into a domain document.
func (r *Record) Document() *domain.Document {
	return &domain.Document{
		PaperID:         strings.TrimSpace(r.PaperID),
		UniqueID:        strings.TrimSpace(r.UniqueID),
		Title:           strings.TrimSpace(r.Title),
		Authors:         r.Authors,
		Year:            r.Year,
		Abstract:        strings.TrimSpace(r.Abstract),
		PublicationDate: r.PublicationDate,
		Venue:           r.Venue,
		Keywords:        r.Keywords,
		Sections:        r.Sections,
		Metadata:        r.Metadata,
	}
}

// Parse decodes content by file extension.
func Parse(ext string, content []byte) (*Record, error) {
	var rec Record
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(content, &rec); err != nil {
			return nil, fmt.Errorf("%w: parse json: %w", domain.ErrInvalidInput, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &rec); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %w", domain.ErrInvalidInput, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, ext)
	}
	return &rec, nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsSidecar reports whether path is a metadata side file.
func IsSidecar(path string) bool {
	return strings.HasSuffix(Stem(path), MetadataSuffix)
}

// LoadSidecar reads <stem>_metadata.{json,yaml,yml} next to path.
// It returns nil without error when no side file exists.
func LoadSidecar(path string) (*Record, error) {
	dir, stem := filepath.Dir(path), Stem(path)
	for _, ext := range SidecarExtensions {
		candidate := filepath.Join(dir, stem+MetadataSuffix+ext)
		content, err := os.ReadFile(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", candidate, err)
		}
		rec, err := Parse(ext, content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", candidate, err)
		}
		return rec, nil
	}
	return nil, nil
}

// ApplySidecar overlays metadata from the side file next to path onto doc.
// Side file fields win; doc keeps its sections and fills what the side file
// leaves empty. Nothing changes when there is no side file.
func ApplySidecar(path string, doc *domain.Document) error {
	rec, err := LoadSidecar(path)
	if err != nil || rec == nil {
		return err
	}
	meta := rec.Document()
	meta.MergeMetadata(doc)
	if meta.PaperID == "" {
		meta.PaperID = doc.PaperID
	}
	meta.Sections = doc.Sections
	meta.SourcePath = doc.SourcePath
	*doc = *meta
	return nil
}

// Normaliser handles converted papers stored as JSON or YAML.
type Normaliser struct{}

// New creates a new converted-document normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".json", ".yaml", ".yml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 80
}

// Normalise parses a converted paper. Sections with an empty type are body text.
func (n *Normaliser) Normalise(_ context.Context, path string, content []byte) (*domain.Document, error) {
	rec, err := Parse(filepath.Ext(path), content)
	if err != nil {
		return nil, err
	}
	doc := rec.Document()
	if doc.PaperID == "" {
		doc.PaperID = Stem(path)
	}
	for i := range doc.Sections {
		if doc.Sections[i].Type == "" {
			doc.Sections[i].Type = domain.ChunkTypeBody
		}
	}
	return doc, nil
}
