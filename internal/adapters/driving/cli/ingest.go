package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/connectors/filesystem"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/logger"
	"github.com/custodia-labs/scholar/internal/normalisers/converted"
)

var (
	ingestWorkers  int
	ingestWatch    bool
	ingestDebounce time.Duration
	ingestInclude  []string
	ingestExclude  []string
	ingestNoBar    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [collection-id] [file|dir]...",
	Short: "Ingest converted papers into a collection",
	Long: `Load converted papers and index them into a collection.

Directories are scanned recursively for supported files (.md, .json, .yaml,
.html, .txt). Metadata side files named <stem>_metadata.json or .yaml are
merged into the paper they sit next to. Re-ingesting a paper replaces it.

With --watch the command keeps running and ingests files as they appear or
change in the given directory, and removes papers whose files are deleted.

Examples:
  scholar ingest ml_papers ./converted
  scholar ingest ml_papers paper.md --verbose
  scholar ingest ml_papers ./inbox --watch --exclude 'drafts/**'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "documents ingested in parallel (0 = configured default)")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep watching the directory for changes")
	ingestCmd.Flags().DurationVar(&ingestDebounce, "debounce", filesystem.DefaultDebounce, "quiet period before a changed file is ingested")
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "glob patterns to include, relative to the directory")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "glob patterns to exclude, relative to the directory")
	ingestCmd.Flags().BoolVar(&ingestNoBar, "no-progress", false, "do not draw a progress bar")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}
	if documentLoader == nil {
		return errNotConfigured("document loader")
	}

	ctx := commandContext(cmd)
	collection, roots := args[0], args[1:]
	if ingestWatch && len(roots) != 1 {
		return fmt.Errorf("%w: --watch takes exactly one directory", domain.ErrInvalidInput)
	}

	scanner := scannerFor(ingestInclude, ingestExclude)
	var files []string
	for _, root := range roots {
		found, err := scanner.Scan(root)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}

	failed, err := ingestFiles(ctx, cmd, collection, files)
	if err != nil {
		return err
	}

	if ingestWatch {
		cmd.Printf("Watching %s (Ctrl+C to stop)\n", roots[0])
		return watchInbox(ctx, cmd, collection, roots[0], scanner)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d papers failed", failed, len(files))
	}
	return nil
}

// ingestFiles loads and ingests files, reporting each failure. It returns
// the number of failed files; the error is reserved for cancellation.
func ingestFiles(ctx context.Context, cmd *cobra.Command, collection string, files []string) (int, error) {
	if len(files) == 0 {
		cmd.Println("No supported files found.")
		return 0, nil
	}

	var docs []*domain.Document
	failed := 0
	for _, path := range files {
		doc, err := documentLoader.Load(ctx, path)
		if err != nil {
			failed++
			cmd.PrintErrln(errStyle.Render("skip") + " " + err.Error())
			continue
		}
		docs = append(docs, doc)
	}

	bar := startProgress(cmd.ErrOrStderr(), len(docs))
	results := ingestionService.IngestBatch(ctx, collection, docs, ingestWorkers)
	finishProgress(bar)

	var chunks int
	for _, r := range results {
		if r.Err != nil {
			failed++
			cmd.PrintErrln(errStyle.Render("fail") + " " + r.Err.Error())
			continue
		}
		chunks += r.Report.Chunks
		logger.Debug("ingested %s (%s): %d chunks", r.Report.PaperID, r.Report.UniqueID, r.Report.Chunks)
	}

	cmd.Printf("Ingested %d of %d papers (%d chunks) into %s\n", len(docs)-countErrs(results), len(files), chunks, collection)
	if err := ctx.Err(); err != nil {
		return failed, err
	}
	return failed, nil
}

func countErrs(results []domain.BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// watchInbox ingests settled files until ctx is cancelled.
func watchInbox(ctx context.Context, cmd *cobra.Command, collection, root string, scanner *filesystem.Scanner) error {
	watcher := filesystem.NewWatcher(scanner, ingestDebounce)
	defer watcher.Close()

	return watcher.Watch(ctx, root, func(ev filesystem.Event) {
		if ev.Removed {
			paperID := converted.Stem(ev.Path)
			if err := ingestionService.Remove(ctx, collection, paperID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				cmd.PrintErrln(errStyle.Render("fail") + " remove " + paperID + ": " + err.Error())
				return
			}
			cmd.Printf("Removed %s\n", paperID)
			return
		}

		doc, err := documentLoader.Load(ctx, ev.Path)
		if err != nil {
			cmd.PrintErrln(errStyle.Render("skip") + " " + err.Error())
			return
		}
		report, err := ingestionService.Ingest(ctx, collection, doc)
		if err != nil {
			cmd.PrintErrln(errStyle.Render("fail") + " " + err.Error())
			return
		}
		cmd.Printf("Ingested %s (%d chunks)\n", report.PaperID, report.Chunks)
	})
}

// The active progress bar, advanced from the ingestion service's result
// hook while a batch runs.
var (
	progressMu sync.Mutex
	progress   *progressbar.ProgressBar
)

func startProgress(w io.Writer, total int) *progressbar.ProgressBar {
	if ingestNoBar || total < 2 {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	progressMu.Lock()
	progress = bar
	progressMu.Unlock()
	return bar
}

func finishProgress(bar *progressbar.ProgressBar) {
	progressMu.Lock()
	progress = nil
	progressMu.Unlock()
	if bar != nil {
		_ = bar.Finish()
	}
}

// IngestProgress advances the active progress bar by one document.
// Wire it as the ingestion service's per-result hook.
func IngestProgress(_ domain.BatchResult) {
	progressMu.Lock()
	defer progressMu.Unlock()
	if progress != nil {
		_ = progress.Add(1)
	}
}
