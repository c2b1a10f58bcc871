package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/views/answer"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/views/collections"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/scholar/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	collectionsView *collections.View
	searchView      *search.View
	answerView      *answer.View

	// initial is a collection id to open directly, skipping the picker.
	initial string

	currentView messages.ViewType
	// previousView is where the help view returns to.
	previousView messages.ViewType

	err error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:           ports,
		ctx:             context.Background(),
		styles:          s,
		keymap:          km,
		collectionsView: collections.NewView(s, ports.Collections),
		searchView:      search.NewView(s, km, ports.Retrieval),
		answerView:      answer.NewView(s, ports.Answer),
		currentView:     messages.ViewCollections,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.collectionsView.WithContext(ctx)
	a.searchView.WithContext(ctx)
	a.answerView.WithContext(ctx)
	return a
}

// OpenCollection makes the app start in the search view of the given
// collection instead of the picker.
func (a *App) OpenCollection(id string) *App {
	a.initial = id
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.SetWindowTitle("scholar"), a.collectionsView.Init()}
	if a.initial != "" {
		cmds = append(cmds, a.openInitial())
	}
	return tea.Batch(cmds...)
}

func (a *App) openInitial() tea.Cmd {
	id := a.initial
	return func() tea.Msg {
		c, err := a.ports.Collections.Get(a.ctx, id)
		if err != nil {
			return messages.ErrorOccurred{Err: err}
		}
		return messages.CollectionSelected{Collection: *c}
	}
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.currentView == messages.ViewHelp {
			if msg.Type == tea.KeyEsc || msg.String() == "q" || msg.String() == "?" {
				a.currentView = a.previousView
			}
			return a, nil
		}

	case messages.CollectionsLoaded:
		a.collectionsView, cmd = a.collectionsView.Update(msg)
		return a, cmd

	case messages.CollectionSelected:
		a.err = nil
		a.searchView.SetCollection(msg.Collection)
		a.currentView = messages.ViewSearch
		return a, a.searchView.Init()

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.AnswerRequested:
		a.currentView = messages.ViewAnswer
		return a, a.answerView.Start(msg.Request)

	case messages.AnswerCompleted:
		a.answerView, cmd = a.answerView.Update(msg)
		a.err = a.answerView.Err()
		return a, cmd

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.ErrorOccurred:
		a.err = msg.Err
		if a.currentView == messages.ViewSearch {
			a.searchView, cmd = a.searchView.Update(msg)
		}
		return a, cmd
	}

	switch a.currentView {
	case messages.ViewCollections:
		a.collectionsView, cmd = a.collectionsView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewAnswer:
		a.answerView, cmd = a.answerView.Update(msg)
	case messages.ViewHelp:
	}
	return a, cmd
}

func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	if view == messages.ViewHelp {
		a.previousView = a.currentView
	}
	a.currentView = view
	if view == messages.ViewCollections {
		return a.collectionsView.Init()
	}
	return nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewAnswer:
		return a.answerView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		if a.err != nil && a.initial != "" {
			return a.styles.Error.Render("Error: "+a.err.Error()) + "\n\n" + a.collectionsView.View()
		}
		return a.collectionsView.View()
	}
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")
	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "  %-10s %s\n", h.Key, h.Desc)
		}
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Muted.Render("[esc] back"))
	return b.String()
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Results returns the current search results.
func (a *App) Results() []domain.RetrievalResult {
	return a.searchView.Results()
}

// SearchView returns the search view.
func (a *App) SearchView() *search.View {
	return a.searchView
}

// AnswerView returns the answer view.
func (a *App) AnswerView() *answer.View {
	return a.answerView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.collectionsView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
	a.answerView.SetDimensions(width, height)
}
