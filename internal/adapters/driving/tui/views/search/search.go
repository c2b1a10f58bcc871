// Package search provides the query and results view for the TUI.
package search

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// View represents the search view with input, results list, and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.ResultList
	statusbar *status.Bar

	retrieval driving.RetrievalService
	ctx       context.Context

	collection domain.Collection
	scope      string // paper id for single-paper mode; empty searches the collection
	lastQuery  string

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = input mode (typing), false = results mode (navigating)
}

// NewView creates a new search view.
func NewView(s *styles.Styles, km *keymap.KeyMap, retrieval driving.RetrievalService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewQueryInput(s),
		list:       list.NewResultList(s),
		statusbar:  status.NewBar(s, km),
		retrieval:  retrieval,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetCollection points the view at a collection and resets it.
func (v *View) SetCollection(c domain.Collection) {
	v.collection = c
	v.Reset()
}

// Collection returns the collection being searched.
func (v *View) Collection() domain.Collection {
	return v.collection
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	if v.focusInput {
		v.input, cmd = v.input.Update(msg)
	}
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if key.Matches(msg, v.keymap.Back) {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewCollections}
		}
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			return v, v.Submit(v.input.Value())
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case key.Matches(msg, v.keymap.Up):
		v.list.MoveUp()
	case key.Matches(msg, v.keymap.Down):
		v.list.MoveDown()
	case key.Matches(msg, v.keymap.NewSearch):
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	case key.Matches(msg, v.keymap.Scope):
		return v, v.toggleScope()
	case key.Matches(msg, v.keymap.Answer):
		return v, v.requestAnswer()
	case key.Matches(msg, v.keymap.Help):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewHelp}
		}
	}
	return v, nil
}

// Submit runs a query against the current collection and scope.
func (v *View) Submit(query string) tea.Cmd {
	if query == "" {
		return nil
	}
	v.lastQuery = query
	v.err = nil
	v.statusbar.SetState(status.StateSearching)
	v.statusbar.SetMessage("")
	v.focusInput = false
	v.input.Blur()
	return v.performSearch(v.request(query))
}

func (v *View) request(query string) domain.RetrieveRequest {
	req := domain.RetrieveRequest{CollectionID: v.collection.ID, Query: query}
	if v.scope != "" {
		req.PaperIDs = []string{v.scope}
	}
	return req
}

// toggleScope limits the search to the selected result's paper, or lifts
// the limit when one is set, and reruns the last query.
func (v *View) toggleScope() tea.Cmd {
	if v.scope != "" {
		v.scope = ""
	} else {
		r := v.list.SelectedResult()
		if r == nil {
			return nil
		}
		ids, err := domain.ScopeFilter(domain.QueryModeSingle, []string{r.PaperID})
		if err != nil {
			v.setError(err)
			return nil
		}
		v.scope = ids[0]
	}
	v.statusbar.SetScope(v.scope)
	return v.Submit(v.lastQuery)
}

func (v *View) requestAnswer() tea.Cmd {
	if v.lastQuery == "" {
		return nil
	}
	req := domain.AnswerRequest{RetrieveRequest: v.request(v.lastQuery)}
	return func() tea.Msg {
		return messages.AnswerRequested{Request: req}
	}
}

// performSearch executes a retrieval and returns results.
func (v *View) performSearch(req domain.RetrieveRequest) tea.Cmd {
	return func() tea.Msg {
		if v.retrieval == nil {
			return messages.ErrorOccurred{Err: ErrNoRetrievalService}
		}

		results, err := v.retrieval.Retrieve(v.ctx, req)
		return messages.SearchCompleted{Results: results, Err: err}
	}
}

// handleSearchCompleted processes search results.
func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.list.SetResults(msg.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetMessage("")
	v.statusbar.SetResultCount(len(msg.Results))
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)

	header := v.styles.Title.Render("Scholar") + " " +
		v.styles.Muted.Render(v.collection.Name+" ("+v.collection.ID+")")
	sections = append(sections, header, "", v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	sections = append(sections, v.list.View(), "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-10) // header, input and status
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current input text.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the input text.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Scope returns the paper the search is limited to, if any.
func (v *View) Scope() string {
	return v.scope
}

// Results returns the current search results.
func (v *View) Results() []domain.RetrievalResult {
	return v.list.Results()
}

// SelectedIndex returns the index of the selected result.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Reset returns the view to input mode with no results.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetResults(nil)
	v.scope = ""
	v.lastQuery = ""
	v.err = nil
	v.statusbar.Clear()
	v.statusbar.SetScope("")
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
