package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SearchType is fixed for a collection at creation.
type SearchType string

// Available search types.
const (
	// SearchTypeDense stores only dense vectors and ranks by cosine similarity.
	SearchTypeDense SearchType = "dense"

	// SearchTypeHybrid stores dense and sparse vectors and fuses both rankings.
	SearchTypeHybrid SearchType = "hybrid"
)

// IsValid returns true if the search type is recognised.
func (t SearchType) IsValid() bool {
	return t == SearchTypeDense || t == SearchTypeHybrid
}

// String returns the string representation.
func (t SearchType) String() string {
	return string(t)
}

// ParseSearchType converts user input into a SearchType.
func ParseSearchType(s string) (SearchType, error) {
	t := SearchType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown search type %q", ErrInvalidConfig, s)
	}
	return t, nil
}

// FileRetention controls whether Delete also removes the collection's files.
type FileRetention int

const (
	// RetainFiles drops the index collection and keeps the directory.
	RetainFiles FileRetention = iota

	// RemoveFiles also removes the collection directory.
	RemoveFiles
)

// Collection is an isolated, independently searchable corpus.
type Collection struct {
	ID          string     `json:"collection_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	SearchType  SearchType `json:"search_type"`
	CreatedAt   time.Time  `json:"created_at"`

	// Fields below are derived on read and never persisted.

	// PaperCount is the number of paper records on disk.
	PaperCount int `json:"-"`

	// IndexPresent is false when the index collection is missing.
	IndexPresent bool `json:"-"`

	// IndexedPapers is the number of distinct papers with points.
	IndexedPapers int `json:"-"`

	// NeedsReindex lists papers on disk with no points in the index.
	NeedsReindex []string `json:"-"`

	// StrayPapers lists papers with points but no record on disk.
	StrayPapers []string `json:"-"`
}

// Consistent reports whether the filesystem and the index agree.
func (c *Collection) Consistent() bool {
	return c.IndexPresent && len(c.NeedsReindex) == 0 && len(c.StrayPapers) == 0
}

var (
	collectionIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	collectionIDStrip   = regexp.MustCompile(`[^a-z0-9_-]`)
)

// CollectionIDFromName derives an id from a display name:
// lower-cased, spaces become underscores, other characters are dropped.
func CollectionIDFromName(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")
	id = collectionIDStrip.ReplaceAllString(id, "")
	id = strings.TrimLeft(id, "_-")
	if len(id) > 64 {
		id = id[:64]
	}
	return id
}

// ValidateCollectionID checks that id is safe to use as a directory name
// and an index collection name.
func ValidateCollectionID(id string) error {
	if !collectionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: invalid collection id %q", ErrInvalidConfig, id)
	}
	return nil
}
