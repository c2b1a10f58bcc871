package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

var (
	collectionID          string
	collectionDescription string
	collectionSearchType  string
	collectionRemoveFiles bool
	collectionJSON        bool
)

var collectionCmd = &cobra.Command{
	Use:     "collection",
	Aliases: []string{"collections", "col"},
	Short:   "Manage paper collections",
	Long: `Collections are isolated corpora. Each has a directory of paper records
and a collection in the vector index, and is searched on its own.`,
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a collection",
	Long: `Create a collection. The id is derived from the name unless --id is given:
lower case, spaces become underscores, other punctuation is dropped.

The search type is fixed at creation:
  hybrid - dense and sparse vectors, fused ranking (default)
  dense  - dense vectors only`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionCreate,
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections with index status",
	Args:  cobra.NoArgs,
	RunE:  runCollectionList,
}

var collectionGetCmd = &cobra.Command{
	Use:   "get [collection-id]",
	Short: "Show one collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionGet,
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete [collection-id]",
	Short: "Delete a collection",
	Long: `Drop the collection from the vector index. Paper records on disk are
kept unless --remove-files is given, so the index can be rebuilt later.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionDelete,
}

var collectionPapersCmd = &cobra.Command{
	Use:   "papers [collection-id]",
	Short: "List the papers in a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionPapers,
}

var collectionVerifyCmd = &cobra.Command{
	Use:   "verify [collection-id]",
	Short: "Check that disk and index agree",
	Long: `Compare paper records on disk with the points in the vector index.
Papers without points can be restored with 'scholar reindex'.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionVerify,
}

func init() {
	collectionCreateCmd.Flags().StringVar(&collectionID, "id", "", "collection id (derived from name when empty)")
	collectionCreateCmd.Flags().StringVarP(&collectionDescription, "description", "d", "", "collection description")
	collectionCreateCmd.Flags().StringVarP(&collectionSearchType, "type", "t", string(domain.SearchTypeHybrid),
		"search type: hybrid or dense")
	collectionDeleteCmd.Flags().BoolVar(&collectionRemoveFiles, "remove-files", false,
		"also remove the collection directory")
	collectionListCmd.Flags().BoolVar(&collectionJSON, "json", false, "output as JSON")
	collectionGetCmd.Flags().BoolVar(&collectionJSON, "json", false, "output as JSON")
	collectionPapersCmd.Flags().BoolVar(&collectionJSON, "json", false, "output as JSON")

	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionGetCmd)
	collectionCmd.AddCommand(collectionDeleteCmd)
	collectionCmd.AddCommand(collectionPapersCmd)
	collectionCmd.AddCommand(collectionVerifyCmd)
	rootCmd.AddCommand(collectionCmd)
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return errNotConfigured("collection")
	}

	searchType, err := domain.ParseSearchType(collectionSearchType)
	if err != nil {
		return err
	}

	c, err := collectionService.Create(commandContext(cmd), driving.CreateCollectionRequest{
		ID:          collectionID,
		Name:        args[0],
		Description: collectionDescription,
		SearchType:  searchType,
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	cmd.Printf("Created collection %s (%s)\n", c.ID, c.SearchType)
	return nil
}

func runCollectionList(cmd *cobra.Command, _ []string) error {
	if collectionService == nil {
		return errNotConfigured("collection")
	}

	collections, err := collectionService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	if collectionJSON {
		return outputJSON(cmd, collectionViews(collections))
	}
	if len(collections) == 0 {
		cmd.Println("No collections. Create one with 'scholar collection create <name>'.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "TYPE", "PAPERS", "INDEXED", "STATUS")
	for i := range collections {
		c := &collections[i]
		t.Row(c.ID, c.Name, string(c.SearchType),
			strconv.Itoa(c.PaperCount), strconv.Itoa(c.IndexedPapers), statusText(c))
	}
	cmd.Println(t.String())
	return nil
}

func runCollectionGet(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return errNotConfigured("collection")
	}

	c, err := collectionService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("get collection: %w", err)
	}

	if collectionJSON {
		return outputJSON(cmd, collectionViews([]domain.Collection{*c})[0])
	}
	printCollection(cmd, c)
	return nil
}

func runCollectionDelete(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return errNotConfigured("collection")
	}

	retention := domain.RetainFiles
	if collectionRemoveFiles {
		retention = domain.RemoveFiles
	}
	if err := collectionService.Delete(commandContext(cmd), args[0], retention); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	if retention == domain.RemoveFiles {
		cmd.Printf("Deleted collection %s and its files\n", args[0])
	} else {
		cmd.Printf("Deleted collection %s from the index; paper records kept\n", args[0])
	}
	return nil
}

func runCollectionPapers(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return errNotConfigured("collection")
	}

	papers, err := collectionService.Papers(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("list papers: %w", err)
	}

	if collectionJSON {
		return outputJSON(cmd, papers)
	}
	if len(papers) == 0 {
		cmd.Printf("No papers in %s. Add some with 'scholar ingest %s <path>'.\n", args[0], args[0])
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PAPER", "KEY", "TITLE", "AUTHORS", "YEAR", "POINTS")
	for i := range papers {
		p := &papers[i]
		year := ""
		if p.Year > 0 {
			year = strconv.Itoa(p.Year)
		}
		points := strconv.Itoa(p.Points)
		if p.Points == 0 {
			points = warnStyle.Render(points)
		}
		t.Row(p.PaperID, p.UniqueID, truncate(p.Title, 48), truncate(authorList(p.Authors), 32), year, points)
	}
	cmd.Println(t.String())
	return nil
}

func authorList(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1, 2:
		return strings.Join(authors, ", ")
	default:
		return authors[0] + " et al."
	}
}

func runCollectionVerify(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return errNotConfigured("collection")
	}

	c, err := collectionService.Verify(commandContext(cmd), args[0])
	if c != nil {
		printCollection(cmd, c)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInconsistent) {
			cmd.Printf("\nRun 'scholar reindex %s' to restore missing papers.\n", args[0])
		}
		return err
	}
	cmd.Println(okStyle.Render("Disk and index agree."))
	return nil
}

func statusText(c *domain.Collection) string {
	switch {
	case !c.IndexPresent:
		return errStyle.Render("index missing")
	case c.Consistent():
		return okStyle.Render("ok")
	default:
		return warnStyle.Render("inconsistent")
	}
}

func printCollection(cmd *cobra.Command, c *domain.Collection) {
	cmd.Println(headingStyle.Render(c.Name))
	cmd.Printf("  ID:          %s\n", c.ID)
	if c.Description != "" {
		cmd.Printf("  Description: %s\n", c.Description)
	}
	cmd.Printf("  Search type: %s\n", c.SearchType)
	if !c.CreatedAt.IsZero() {
		cmd.Printf("  Created:     %s\n", c.CreatedAt.Format("2006-01-02 15:04"))
	}
	cmd.Printf("  Papers:      %d on disk, %d indexed\n", c.PaperCount, c.IndexedPapers)
	cmd.Printf("  Status:      %s\n", statusText(c))
	if len(c.NeedsReindex) > 0 {
		cmd.Printf("  Not indexed: %s\n", strings.Join(c.NeedsReindex, ", "))
	}
	if len(c.StrayPapers) > 0 {
		cmd.Printf("  Stray:       %s\n", strings.Join(c.StrayPapers, ", "))
	}
}

// collectionView exposes the derived status fields that Collection keeps out of JSON.
type collectionView struct {
	domain.Collection
	PaperCount    int      `json:"paper_count"`
	IndexPresent  bool     `json:"index_present"`
	IndexedPapers int      `json:"indexed_papers"`
	NeedsReindex  []string `json:"needs_reindex,omitempty"`
	StrayPapers   []string `json:"stray_papers,omitempty"`
	Consistent    bool     `json:"consistent"`
}

func collectionViews(collections []domain.Collection) []collectionView {
	views := make([]collectionView, len(collections))
	for i := range collections {
		c := collections[i]
		views[i] = collectionView{
			Collection:    c,
			PaperCount:    c.PaperCount,
			IndexPresent:  c.IndexPresent,
			IndexedPapers: c.IndexedPapers,
			NeedsReindex:  c.NeedsReindex,
			StrayPapers:   c.StrayPapers,
			Consistent:    c.Consistent(),
		}
	}
	return views
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
