package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Ensure CollectionStore implements the interface.
var _ driven.CollectionStore = (*CollectionStore)(nil)

// CollectionStore is an in-memory implementation of driven.CollectionStore.
type CollectionStore struct {
	mu          sync.RWMutex
	collections map[string]domain.Collection
	documents   map[string]map[string]domain.Document
}

// NewCollectionStore creates a new in-memory collection store.
func NewCollectionStore() *CollectionStore {
	return &CollectionStore{
		collections: make(map[string]domain.Collection),
		documents:   make(map[string]map[string]domain.Document),
	}
}

// Create stores a collection record.
func (s *CollectionStore) Create(_ context.Context, collection domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection.ID]; ok {
		return fmt.Errorf("collection %s: %w", collection.ID, domain.ErrConflict)
	}
	s.collections[collection.ID] = collection
	s.documents[collection.ID] = make(map[string]domain.Document)
	return nil
}

// Get retrieves a collection record.
func (s *CollectionStore) Get(_ context.Context, id string) (*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

// List returns all collections ordered by id.
func (s *CollectionStore) List(_ context.Context) ([]domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Exists reports whether a collection exists.
func (s *CollectionStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[id]
	return ok, nil
}

// Remove deletes a collection and its documents.
func (s *CollectionStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, id)
	delete(s.documents, id)
	return nil
}

// SaveDocument stores or replaces a paper record.
func (s *CollectionStore) SaveDocument(_ context.Context, collectionID string, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.documents[collectionID]
	if !ok {
		return fmt.Errorf("collection %s: %w", collectionID, domain.ErrNotFound)
	}
	docs[doc.PaperID] = *doc
	return nil
}

// GetDocument retrieves a paper record.
func (s *CollectionStore) GetDocument(_ context.Context, collectionID, paperID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[collectionID][paperID]
	if !ok {
		return nil, fmt.Errorf("paper %s: %w", paperID, domain.ErrNotFound)
	}
	return &doc, nil
}

// ListDocuments returns the sorted paper ids of a collection.
func (s *CollectionStore) ListDocuments(_ context.Context, collectionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs, ok := s.documents[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collectionID, domain.ErrNotFound)
	}
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteDocument removes a paper record.
func (s *CollectionStore) DeleteDocument(_ context.Context, collectionID, paperID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents[collectionID], paperID)
	return nil
}
