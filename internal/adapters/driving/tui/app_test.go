package tui

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

func (m *mockCollections) Get(_ context.Context, id string) (*domain.Collection, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.items {
		if m.items[i].ID == id {
			return &m.items[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

type mockRetrieval struct {
	results []domain.RetrievalResult
}

func (m *mockRetrieval) Retrieve(context.Context, domain.RetrieveRequest) ([]domain.RetrievalResult, error) {
	return m.results, nil
}

type mockAnswer struct{}

func (mockAnswer) Answer(_ context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	return &domain.Answer{Text: "answer to " + req.Query, Answerable: true}, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(&Ports{
		Collections: &mockCollections{items: []domain.Collection{{ID: "ml", Name: "ML", IndexPresent: true}}},
		Retrieval: &mockRetrieval{results: []domain.RetrievalResult{
			{PaperID: "p1", UniqueID: "DoeAttention2021", Text: "heads", Score: 1},
		}},
		Answer: mockAnswer{},
	})
	require.NoError(t, err)
	app.SetDimensions(120, 40)
	return app
}

func update(t *testing.T, app *App, msg tea.Msg) tea.Cmd {
	t.Helper()
	_, cmd := app.Update(msg)
	return cmd
}

func TestNewApp_RequiresPorts(t *testing.T) {
	_, err := NewApp(&Ports{})
	assert.ErrorIs(t, err, ErrMissingCollectionService)
}

func TestApp_StartsOnCollections(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, messages.ViewCollections, app.CurrentView())
	assert.True(t, app.Ready())
	assert.NotNil(t, app.Init())
}

func TestApp_NotReadyView(t *testing.T) {
	app, err := NewApp(&Ports{Collections: &mockCollections{}, Retrieval: &mockRetrieval{}})
	require.NoError(t, err)
	assert.Equal(t, "Initialising...", app.View())

	update(t, app, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.True(t, app.Ready())
}

func TestApp_SearchAndAnswerFlow(t *testing.T) {
	app := newTestApp(t)

	update(t, app, messages.CollectionSelected{Collection: domain.Collection{ID: "ml", Name: "ML"}})
	assert.Equal(t, messages.ViewSearch, app.CurrentView())

	cmd := app.SearchView().Submit("attention")
	require.NotNil(t, cmd)
	update(t, app, cmd())
	require.Len(t, app.Results(), 1)

	cmd = update(t, app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	require.NotNil(t, cmd)
	cmd = update(t, app, cmd())
	assert.Equal(t, messages.ViewAnswer, app.CurrentView())
	require.NotNil(t, cmd)

	update(t, app, cmd())
	require.NotNil(t, app.AnswerView().Answer())
	assert.Equal(t, "answer to attention", app.AnswerView().Answer().Text)

	cmd = update(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	update(t, app, cmd())
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
}

func TestApp_HelpReturnsToPreviousView(t *testing.T) {
	app := newTestApp(t)
	update(t, app, messages.CollectionSelected{Collection: domain.Collection{ID: "ml"}})

	update(t, app, messages.ViewChanged{View: messages.ViewHelp})
	assert.Equal(t, messages.ViewHelp, app.CurrentView())
	assert.Contains(t, app.View(), "this paper only")

	update(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
}

func TestApp_OpenCollection(t *testing.T) {
	app := newTestApp(t)
	app.OpenCollection("ml")

	msg := app.openInitial()()
	selected, ok := msg.(messages.CollectionSelected)
	require.True(t, ok)
	assert.Equal(t, "ml", selected.Collection.ID)

	app.OpenCollection("missing")
	errMsg, ok := app.openInitial()().(messages.ErrorOccurred)
	require.True(t, ok)
	assert.ErrorIs(t, errMsg.Err, domain.ErrNotFound)

	update(t, app, errMsg)
	assert.ErrorIs(t, app.Err(), domain.ErrNotFound)
	assert.Contains(t, app.View(), "Error:")
}

func TestApp_CtrlCQuits(t *testing.T) {
	app := newTestApp(t)

	cmd := update(t, app, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
