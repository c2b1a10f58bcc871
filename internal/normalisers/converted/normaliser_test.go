package converted

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

const paperJSON = `{
  "title": "Attention Is All You Need",
  "authors": ["Ashish Vaswani", "Noam Shazeer"],
  "abstract": "The dominant sequence transduction models...",
  "publication_date": "2017-06-12",
  "sections": [
    {"type": "body", "text": "Recurrent models...", "page_number": 2},
    {"type": "table", "text": "| model | BLEU |", "page_number": 8},
    {"text": "untyped text"}
  ]
}`

const paperYAML = `paper_id: vaswani2017
title: Attention Is All You Need
authors: Ashish Vaswani and Noam Shazeer; Niki Parmar
journal_conference: NeurIPS
sections:
  - type: figure_caption
    text: "Figure 1: The Transformer"
    page_number: 3
`

func TestNormalise_JSON(t *testing.T) {
	doc, err := New().Normalise(context.Background(), "/in/attention.json", []byte(paperJSON))
	require.NoError(t, err)

	assert.Equal(t, "attention", doc.PaperID)
	assert.Equal(t, "Attention Is All You Need", doc.Title)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, doc.Authors)
	assert.Equal(t, "2017-06-12", doc.PublicationDate)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, domain.ChunkTypeTable, doc.Sections[1].Type)
	assert.Equal(t, 8, doc.Sections[1].PageNumber)
	assert.Equal(t, domain.ChunkTypeBody, doc.Sections[2].Type)
	require.NoError(t, doc.Validate())
}

func TestNormalise_YAML(t *testing.T) {
	doc, err := New().Normalise(context.Background(), "/in/attention.yaml", []byte(paperYAML))
	require.NoError(t, err)

	assert.Equal(t, "vaswani2017", doc.PaperID)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer", "Niki Parmar"}, doc.Authors)
	assert.Equal(t, "NeurIPS", doc.Venue)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, domain.ChunkTypeFigureCaption, doc.Sections[0].Type)
}

func TestNormalise_Invalid(t *testing.T) {
	_, err := New().Normalise(context.Background(), "bad.json", []byte("{not json"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Normalise(context.Background(), "bad.yaml", []byte("authors: {a: b}"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Parse(".toml", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestLoadSidecar(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "paper.md")

	rec, err := LoadSidecar(md)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper_metadata.yml"), []byte("title: Side\nyear: 2020\n"), 0o600))
	rec, err = LoadSidecar(md)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Side", rec.Title)
	assert.Equal(t, 2020, rec.Year)

	// JSON wins over YAML.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper_metadata.json"), []byte(`{"title":"Json"}`), 0o600))
	rec, err = LoadSidecar(md)
	require.NoError(t, err)
	assert.Equal(t, "Json", rec.Title)
}

func TestIsSidecar(t *testing.T) {
	assert.True(t, IsSidecar("/a/paper_metadata.json"))
	assert.False(t, IsSidecar("/a/paper.json"))
	assert.Equal(t, "paper", Stem("/a/b/paper.md"))
}

func TestApplySidecar(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "paper.md")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper_metadata.json"),
		[]byte(`{"title":"From Side","authors":"A. Author; B. Author","publication_date":"2019"}`), 0o600))

	doc := &domain.Document{
		PaperID:  "paper",
		Title:    "From Heading",
		Abstract: "kept",
		Sections: []domain.Section{{Type: domain.ChunkTypeBody, Text: "text"}},
	}
	require.NoError(t, ApplySidecar(md, doc))

	assert.Equal(t, "paper", doc.PaperID)
	assert.Equal(t, "From Side", doc.Title)
	assert.Equal(t, []string{"A. Author", "B. Author"}, doc.Authors)
	assert.Equal(t, "kept", doc.Abstract)
	require.Len(t, doc.Sections, 1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper_metadata.json"), []byte(`{`), 0o600))
	assert.ErrorIs(t, ApplySidecar(md, doc), domain.ErrInvalidInput)
}
