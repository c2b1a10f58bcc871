package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [collection-id] [paper-id]...",
	Short: "Rebuild index points from paper records on disk",
	Long: `Re-embed and re-index papers from the records stored in the collection
directory. With no paper ids, every paper that has no points in the index is
restored, which repairs a collection after its index was lost.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReindex,
}

var removeCmd = &cobra.Command{
	Use:   "remove [collection-id] [paper-id]...",
	Short: "Remove papers from a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRemove,
}

var statusCmd = &cobra.Command{
	Use:   "status [collection-id] [paper-id]",
	Short: "Show the ingestion state of a paper",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(statusCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}
	ctx := commandContext(cmd)
	collection := args[0]

	if len(args) == 1 {
		results := ingestionService.Repair(ctx, collection)
		if len(results) == 0 {
			cmd.Println("Nothing to reindex.")
			return nil
		}
		return reportBatch(cmd, results)
	}

	results := make([]domain.BatchResult, 0, len(args)-1)
	for _, paperID := range args[1:] {
		report, err := ingestionService.Reindex(ctx, collection, paperID)
		results = append(results, domain.BatchResult{PaperID: paperID, Report: report, Err: err})
	}
	return reportBatch(cmd, results)
}

func reportBatch(cmd *cobra.Command, results []domain.BatchResult) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			cmd.PrintErrln(errStyle.Render("fail") + " " + r.Err.Error())
			continue
		}
		cmd.Printf("Reindexed %s (%d chunks)\n", r.PaperID, r.Report.Chunks)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d papers failed", failed, len(results))
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}
	ctx := commandContext(cmd)

	for _, paperID := range args[1:] {
		if err := ingestionService.Remove(ctx, args[0], paperID); err != nil {
			return fmt.Errorf("remove %s: %w", paperID, err)
		}
		cmd.Printf("Removed %s\n", paperID)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	rec, err := ingestionService.Status(commandContext(cmd), args[0], args[1])
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	state := string(rec.State)
	switch rec.State {
	case domain.IngestVisible:
		state = okStyle.Render(state)
	case domain.IngestFailed:
		state = errStyle.Render(state)
	default:
		state = warnStyle.Render(state)
	}

	cmd.Printf("Paper:    %s\n", rec.PaperID)
	cmd.Printf("State:    %s\n", state)
	cmd.Printf("Chunks:   %d\n", rec.Chunks)
	cmd.Printf("Attempts: %d\n", rec.Attempts)
	if rec.Error != "" {
		cmd.Printf("Error:    %s\n", rec.Error)
	}
	cmd.Printf("Updated:  %s\n", dimStyle.Render(rec.UpdatedAt.Format("2006-01-02 15:04:05")))
	return nil
}
