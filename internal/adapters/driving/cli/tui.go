package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [collection-id]",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface.

Pick a collection, type a question and browse ranked passages. With a
collection id the picker is skipped.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Search / Select
  p        - Search only the selected paper
  a        - Answer from the results (needs an LLM)
  Esc      - Back
  ?        - Help
  Ctrl+C   - Quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	if collectionService == nil || retrievalService == nil {
		return errNotConfigured("retrieval")
	}

	app, err := newTUIApp(cmd, args)
	if err != nil {
		return err
	}

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(commandContext(cmd)))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// newTUIApp builds the app from the injected services.
func newTUIApp(cmd *cobra.Command, args []string) (*tui.App, error) {
	ports := &tui.Ports{
		Collections: collectionService,
		Retrieval:   retrievalService,
		Answer:      answerService,
	}

	app, err := tui.NewApp(ports)
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(commandContext(cmd))
	if len(args) == 1 {
		app.OpenCollection(args[0])
	}
	return app, nil
}
