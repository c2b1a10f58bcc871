// Package collections provides the collection picker view for the TUI.
package collections

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// View lists collections and opens one for searching.
type View struct {
	styles   *styles.Styles
	service  driving.CollectionService
	ctx      context.Context
	items    []domain.Collection
	selected int
	loading  bool
	err      error
	width    int
	height   int
	ready    bool
}

// NewView creates a new collection picker.
func NewView(s *styles.Styles, service driving.CollectionService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles:  s,
		service: service,
		ctx:     context.Background(),
		width:   80,
		height:  24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the collection list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	return func() tea.Msg {
		if v.service == nil {
			return messages.CollectionsLoaded{Err: ErrNoCollectionService}
		}
		items, err := v.service.List(v.ctx)
		return messages.CollectionsLoaded{Collections: items, Err: err}
	}
}

// Update handles messages for the picker.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.CollectionsLoaded:
		v.loading = false
		v.err = msg.Err
		v.items = msg.Collections
		if v.selected >= len(v.items) {
			v.selected = 0
		}
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
		case "down", "j":
			if v.selected < len(v.items)-1 {
				v.selected++
			}
		case "r":
			v.loading = true
			return v, v.load()
		case "enter":
			if len(v.items) == 0 {
				return v, nil
			}
			c := v.items[v.selected]
			return v, func() tea.Msg {
				return messages.CollectionSelected{Collection: c}
			}
		case "?":
			return v, func() tea.Msg {
				return messages.ViewChanged{View: messages.ViewHelp}
			}
		case "q":
			return v, tea.Quit
		}
	}

	return v, nil
}

// View renders the picker.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Scholar"))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Choose a collection to search"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading collections..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.items) == 0:
		b.WriteString(v.styles.Muted.Render("No collections. Create one with 'scholar collection create'."))
	default:
		for i := range v.items {
			b.WriteString(v.renderItem(i, &v.items[i]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Muted.Render("[j/k] Navigate  [Enter] Search  [r] Reload  [?] Help  [q] Quit"))
	return b.String()
}

func (v *View) renderItem(i int, c *domain.Collection) string {
	cursor := "  "
	name := v.styles.Normal.Render(c.Name)
	if i == v.selected {
		cursor = "> "
		name = v.styles.Selected.Render(c.Name)
	}
	detail := v.styles.Muted.Render(fmt.Sprintf(" (%s, %s, %d papers) ", c.ID, c.SearchType, c.PaperCount))
	return cursor + name + detail + v.styles.Status(c)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the currently selected index.
func (v *View) Selected() int {
	return v.selected
}

// Collections returns the loaded collections.
func (v *View) Collections() []domain.Collection {
	return v.items
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}
