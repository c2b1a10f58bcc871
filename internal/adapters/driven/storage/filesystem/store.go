// Package filesystem persists collections as directories under a data root.
//
// Layout of one collection:
//
//	<root>/<collection_id>/
//	    collection_info.json
//	    pdfs/
//	    figures/
//	    metadata/<paper_id>.json
//
// Writes go to a temporary file that is renamed into place, so a crash
// never leaves a half-written record.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

const (
	infoFile    = "collection_info.json"
	metadataDir = "metadata"
	pdfsDir     = "pdfs"
	figuresDir  = "figures"
)

// Ensure Store implements the interface.
var _ driven.CollectionStore = (*Store)(nil)

// Store is a CollectionStore rooted at a data directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

// CollectionDir returns the directory of a collection.
func (s *Store) CollectionDir(id string) string {
	return filepath.Join(s.root, id)
}

// SourcesDir returns where original source files of a collection are kept.
func (s *Store) SourcesDir(id string) string {
	return filepath.Join(s.root, id, pdfsDir)
}

// Create makes the collection directory tree and writes its info record.
func (s *Store) Create(_ context.Context, collection domain.Collection) error {
	if err := domain.ValidateCollectionID(collection.ID); err != nil {
		return err
	}

	dir := s.CollectionDir(collection.ID)
	// Mkdir, not MkdirAll: an existing directory is a conflict.
	if err := os.Mkdir(dir, 0700); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("collection directory %s: %w", collection.ID, domain.ErrConflict)
		}
		return fmt.Errorf("creating collection directory: %w", err)
	}

	for _, sub := range []string{pdfsDir, figuresDir, metadataDir} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0700); err != nil {
			_ = os.RemoveAll(dir)
			return fmt.Errorf("creating %s directory: %w", sub, err)
		}
	}

	if err := writeJSON(filepath.Join(dir, infoFile), collection); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	return nil
}

// Get reads a collection's info record.
func (s *Store) Get(_ context.Context, id string) (*domain.Collection, error) {
	var c domain.Collection
	if err := readJSON(filepath.Join(s.CollectionDir(id), infoFile), &c); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("collection %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.SearchType == "" {
		c.SearchType = domain.SearchTypeDense
	}
	return &c, nil
}

// List returns every collection with an info record, ordered by id.
func (s *Store) List(ctx context.Context) ([]domain.Collection, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	var result []domain.Collection
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c, err := s.Get(ctx, e.Name())
		if errors.Is(err, domain.ErrNotFound) {
			// Not a collection directory.
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Exists reports whether the collection directory exists.
func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	info, err := os.Stat(s.CollectionDir(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking collection directory: %w", err)
	}
	return info.IsDir(), nil
}

// Remove deletes the collection directory tree.
func (s *Store) Remove(_ context.Context, id string) error {
	if err := domain.ValidateCollectionID(id); err != nil {
		return err
	}
	if err := os.RemoveAll(s.CollectionDir(id)); err != nil {
		return fmt.Errorf("removing collection directory: %w", err)
	}
	return nil
}

// SaveDocument writes a paper record.
func (s *Store) SaveDocument(ctx context.Context, collectionID string, doc *domain.Document) error {
	path, err := s.documentPath(collectionID, doc.PaperID)
	if err != nil {
		return err
	}
	if ok, err := s.Exists(ctx, collectionID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("collection %s: %w", collectionID, domain.ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	return writeJSON(path, doc)
}

// GetDocument reads a paper record.
func (s *Store) GetDocument(_ context.Context, collectionID, paperID string) (*domain.Document, error) {
	path, err := s.documentPath(collectionID, paperID)
	if err != nil {
		return nil, err
	}
	var doc domain.Document
	if err := readJSON(path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("paper %s: %w", paperID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns the sorted ids of all paper records.
func (s *Store) ListDocuments(ctx context.Context, collectionID string) ([]string, error) {
	if ok, err := s.Exists(ctx, collectionID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("collection %s: %w", collectionID, domain.ErrNotFound)
	}

	entries, err := os.ReadDir(filepath.Join(s.CollectionDir(collectionID), metadataDir))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteDocument removes a paper record.
func (s *Store) DeleteDocument(_ context.Context, collectionID, paperID string) error {
	path, err := s.documentPath(collectionID, paperID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing paper record: %w", err)
	}
	return nil
}

// documentPath resolves a paper record path, rejecting ids that would
// escape the metadata directory.
func (s *Store) documentPath(collectionID, paperID string) (string, error) {
	if err := domain.ValidateCollectionID(collectionID); err != nil {
		return "", err
	}
	if paperID == "" || paperID == "." || paperID == ".." ||
		strings.ContainsAny(paperID, `/\`) || strings.HasPrefix(paperID, ".") {
		return "", fmt.Errorf("%w: invalid paper id %q", domain.ErrInvalidInput, paperID)
	}
	return filepath.Join(s.CollectionDir(collectionID), metadataDir, paperID+".json"), nil
}

// writeJSON writes v to path atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readJSON decodes the JSON file at path into v.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
