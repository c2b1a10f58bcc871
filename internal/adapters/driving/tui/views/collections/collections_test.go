package collections

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

type mockCollections struct {
	driving.CollectionService
	items []domain.Collection
	err   error
}

func (m *mockCollections) List(context.Context) ([]domain.Collection, error) {
	return m.items, m.err
}

func load(t *testing.T, v *View) {
	t.Helper()
	cmd := v.Init()
	require.NotNil(t, cmd)
	v.Update(cmd())
}

func TestView_Load(t *testing.T) {
	svc := &mockCollections{items: []domain.Collection{
		{ID: "ml", Name: "Machine Learning", SearchType: domain.SearchTypeHybrid, PaperCount: 12, IndexPresent: true},
		{ID: "bio", Name: "Biology", SearchType: domain.SearchTypeDense},
	}}
	v := NewView(nil, svc)
	v.SetDimensions(120, 30)

	assert.Contains(t, v.View(), "Scholar")
	load(t, v)

	view := v.View()
	assert.Len(t, v.Collections(), 2)
	assert.Contains(t, view, "Machine Learning")
	assert.Contains(t, view, "12 papers")
	assert.Contains(t, view, "index missing")
}

func TestView_Empty(t *testing.T) {
	v := NewView(nil, &mockCollections{})
	v.SetDimensions(120, 30)
	load(t, v)

	assert.Contains(t, v.View(), "No collections")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestView_LoadError(t *testing.T) {
	v := NewView(nil, &mockCollections{err: domain.ErrUpstreamUnavailable})
	v.SetDimensions(120, 30)
	load(t, v)

	assert.ErrorIs(t, v.Err(), domain.ErrUpstreamUnavailable)
	assert.Contains(t, v.View(), "Error:")
}

func TestView_NoService(t *testing.T) {
	v := NewView(nil, nil)
	load(t, v)
	assert.ErrorIs(t, v.Err(), ErrNoCollectionService)
}

func TestView_Select(t *testing.T) {
	svc := &mockCollections{items: []domain.Collection{{ID: "ml"}, {ID: "bio"}}}
	v := NewView(nil, svc)
	load(t, v)

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, v.Selected())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(messages.CollectionSelected)
	require.True(t, ok)
	assert.Equal(t, "bio", msg.Collection.ID)
}

func TestView_Quit(t *testing.T) {
	v := NewView(nil, &mockCollections{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
