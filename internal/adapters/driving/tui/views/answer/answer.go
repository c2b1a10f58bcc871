// Package answer provides the generated-answer view for the TUI.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/scholar/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// View shows an answer and its sources in a scrollable viewport.
type View struct {
	styles   *styles.Styles
	service  driving.AnswerService
	ctx      context.Context
	viewport viewport.Model

	query   string
	answer  *domain.Answer
	loading bool
	err     error
	width   int
	height  int
	ready   bool
}

// NewView creates an answer view. A nil service reports that no LLM is configured.
func NewView(s *styles.Styles, service driving.AnswerService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles:   s,
		service:  service,
		ctx:      context.Background(),
		viewport: viewport.New(80, 18),
		width:    80,
		height:   24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Start clears the view and generates an answer for req.
func (v *View) Start(req domain.AnswerRequest) tea.Cmd {
	v.query = req.Query
	v.answer = nil
	v.err = nil
	v.loading = true
	v.viewport.SetContent("")
	v.viewport.GotoTop()

	return func() tea.Msg {
		if v.service == nil {
			return messages.AnswerCompleted{Err: domain.ErrLLMUnavailable}
		}
		a, err := v.service.Answer(v.ctx, req)
		return messages.AnswerCompleted{Answer: a, Err: err}
	}
}

// Update handles messages for the answer view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.AnswerCompleted:
		v.loading = false
		v.err = msg.Err
		v.answer = msg.Answer
		v.viewport.SetContent(v.render())
		return v, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc || msg.String() == "q" {
			return v, func() tea.Msg {
				return messages.ViewChanged{View: messages.ViewSearch}
			}
		}
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// render builds the scrollable body: the answer, then one block per paper.
func (v *View) render() string {
	if v.err != nil {
		return v.styles.Error.Render("Error: " + v.err.Error())
	}
	if v.answer == nil {
		return ""
	}

	var b strings.Builder
	text := v.answer.Text
	if !v.answer.Answerable {
		text = v.styles.Warning.Render(text)
	}
	b.WriteString(wrap(text, v.width-2))
	b.WriteString("\n\n")

	if len(v.answer.Sources) > 0 {
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(v.answer.Sources))))
		b.WriteString("\n")
	}
	for i := range v.answer.Sources {
		src := &v.answer.Sources[i]
		b.WriteString("\n")
		b.WriteString(v.styles.Normal.Render(src.UniqueID))
		if len(src.Pages) > 0 {
			pages := make([]string, len(src.Pages))
			for j, p := range src.Pages {
				pages[j] = fmt.Sprint(p)
			}
			b.WriteString(v.styles.Muted.Render(" pp. " + strings.Join(pages, ", ")))
		}
		b.WriteString("\n")
		if src.APA != "" {
			b.WriteString(v.styles.Muted.Render(wrap(src.APA, v.width-4)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// wrap breaks text into lines of at most width runes on word boundaries.
func wrap(text string, width int) string {
	if width < 20 {
		width = 20
	}
	var out strings.Builder
	for pi, para := range strings.Split(text, "\n") {
		if pi > 0 {
			out.WriteString("\n")
		}
		line := 0
		for wi, word := range strings.Fields(para) {
			n := len([]rune(word))
			if wi > 0 {
				if line+1+n > width {
					out.WriteString("\n")
					line = 0
				} else {
					out.WriteString(" ")
					line++
				}
			}
			out.WriteString(word)
			line += n
		}
	}
	return out.String()
}

// View renders the answer view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Answer"))
	b.WriteString(" ")
	b.WriteString(v.styles.Muted.Render(v.query))
	b.WriteString("\n\n")

	if v.loading {
		b.WriteString(v.styles.Muted.Render("Generating answer..."))
	} else {
		b.WriteString(v.viewport.View())
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Muted.Render("[↑/↓] Scroll  [esc] Back to results"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.viewport.Width = width
	v.viewport.Height = max(height-6, 1)
	if v.answer != nil || v.err != nil {
		v.viewport.SetContent(v.render())
	}
}

// Answer returns the last generated answer.
func (v *View) Answer() *domain.Answer {
	return v.answer
}

// Loading reports whether an answer is being generated.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
