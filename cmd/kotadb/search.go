package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	searchRepository string
	searchLimit      int
	searchFormat     string
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search indexed code",
	Long: `Search indexed file contents (§4.7.1), ranked by the Store's
exact-phrase -> prefix -> substring FTS cascade.

Examples:
  kotadb search handleRequest
  kotadb search "parse config" --repository myorg/myrepo --limit 10`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchRepository, "repository", "", "Limit search to one repository id")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results (<=100)")
	searchCmd.Flags().StringVar(&searchFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger(searchFormat)
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	engine := mustGetEngine(db)
	hits, err := engine.SearchCode(args[0], searchRepository, searchLimit)
	if err != nil {
		fail(err)
	}

	if searchFormat == "human" {
		for _, h := range hits {
			fmt.Printf("%s (%s)\n  %s\n", h.Path, h.RepositoryID, h.Snippet)
		}
		return
	}
	printJSON(hits)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}
