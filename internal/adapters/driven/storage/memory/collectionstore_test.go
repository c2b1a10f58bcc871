package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func TestCollectionStore_CreateGetList(t *testing.T) {
	store := NewCollectionStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.Collection{ID: "b", Name: "B"}))
	require.NoError(t, store.Create(ctx, domain.Collection{ID: "a", Name: "A"}))

	err := store.Create(ctx, domain.Collection{ID: "a"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	_, err = store.Get(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestCollectionStore_Documents(t *testing.T) {
	store := NewCollectionStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.Collection{ID: "c"}))

	require.NoError(t, store.SaveDocument(ctx, "c", &domain.Document{PaperID: "p2", Title: "Two"}))
	require.NoError(t, store.SaveDocument(ctx, "c", &domain.Document{PaperID: "p1", Title: "One"}))

	ids, err := store.ListDocuments(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	doc, err := store.GetDocument(ctx, "c", "p2")
	require.NoError(t, err)
	assert.Equal(t, "Two", doc.Title)

	require.NoError(t, store.DeleteDocument(ctx, "c", "p2"))
	require.NoError(t, store.DeleteDocument(ctx, "c", "p2"))
	_, err = store.GetDocument(ctx, "c", "p2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.SaveDocument(ctx, "missing", &domain.Document{PaperID: "p"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Remove(ctx, "c"))
	exists, err := store.Exists(ctx, "c")
	require.NoError(t, err)
	assert.False(t, exists)
}
