package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

var (
	queryPapers []string
	queryMode   string
	queryLimit  int
	queryJSON   bool
	queryAnswer bool
	queryWords  int
)

var queryCmd = &cobra.Command{
	Use:   "query [collection-id] [query]",
	Short: "Search a collection",
	Long: `Rank the chunks of a collection against a natural-language query.
Hybrid collections fuse dense and sparse rankings; dense collections use
cosine similarity alone.

Scope the search with --paper. In single mode exactly one paper is searched;
in multi mode (the default) give no papers to search everything, or two or
more to search just those.

With --answer an LLM writes an answer from the retrieved passages, followed by
the papers it drew on with APA and BibTeX citations.

Examples:
  scholar query ml_papers "how does attention scale with sequence length"
  scholar query ml_papers "training data" --mode single --paper vaswani2017
  scholar query ml_papers "compare the optimisers" --paper p1 --paper p2 --answer`,
	Args: cobra.MinimumNArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringArrayVarP(&queryPapers, "paper", "p", nil, "restrict to a paper id (repeatable)")
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", string(domain.QueryModeMulti), "query mode: multi or single")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum number of results (0 = configured default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().BoolVarP(&queryAnswer, "answer", "a", false, "generate an answer with the configured LLM")
	queryCmd.Flags().IntVar(&queryWords, "words", 0, "approximate answer length in words")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	paperIDs, err := domain.ScopeFilter(domain.QueryMode(queryMode), queryPapers)
	if err != nil {
		return err
	}
	req := domain.RetrieveRequest{
		CollectionID: args[0],
		Query:        strings.Join(args[1:], " "),
		PaperIDs:     paperIDs,
		Limit:        queryLimit,
	}

	if queryAnswer {
		return runAnswer(cmd, req)
	}

	if retrievalService == nil {
		return errNotConfigured("retrieval")
	}
	results, err := retrievalService.Retrieve(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputJSON(cmd, results)
	}
	outputResults(cmd, results)
	return nil
}

func runAnswer(cmd *cobra.Command, req domain.RetrieveRequest) error {
	if answerService == nil {
		return errNotConfigured("answer")
	}

	answer, err := answerService.Answer(commandContext(cmd), domain.AnswerRequest{
		RetrieveRequest: req,
		TargetWords:     queryWords,
	})
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if queryJSON {
		return outputJSON(cmd, answer)
	}

	cmd.Println(answer.Text)
	if len(answer.Sources) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println(headingStyle.Render("Sources"))
	for i := range answer.Sources {
		src := &answer.Sources[i]
		title := src.Title
		if title == "" {
			title = src.PaperID
		}
		cmd.Printf("  [%s] %s\n", src.UniqueID, title)
		if len(src.Pages) > 0 {
			cmd.Printf("      %s\n", dimStyle.Render("pages "+joinInts(src.Pages)))
		}
		if src.APA != "" {
			cmd.Printf("      %s\n", src.APA)
		}
	}
	return nil
}

func outputResults(cmd *cobra.Command, results []domain.RetrievalResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	for i := range results {
		r := &results[i]
		where := r.PaperID
		if r.PageNumber > 0 {
			where = fmt.Sprintf("%s p.%d", where, r.PageNumber)
		}
		cmd.Printf("  [%d] %s %s %s\n", i+1,
			headingStyle.Render(r.UniqueID),
			dimStyle.Render("("+where+", "+string(r.Type)+")"),
			scoreStyle.Render(fmt.Sprintf("%.3f", r.Score)))
		cmd.Println(excerptStyle.Render(truncate(r.Text, 240)))
		cmd.Println()
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
