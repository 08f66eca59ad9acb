package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	recentRepository string
	recentLimit      int
	recentFormat     string
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently indexed files",
	Long: `List the most recently indexed files in a repository (§4.7.2).

Examples:
  kotadb recent --repository myorg/myrepo
  kotadb recent --limit 50 --format human`,
	Run: runRecent,
}

func init() {
	recentCmd.Flags().StringVar(&recentRepository, "repository", "", "Repository id to scope the listing to")
	recentCmd.Flags().IntVar(&recentLimit, "limit", 20, "Maximum results to return (<=100)")
	recentCmd.Flags().StringVar(&recentFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger(recentFormat)
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	engine := mustGetEngine(db)
	files, err := engine.ListRecentFiles(recentRepository, recentLimit)
	if err != nil {
		fail(err)
	}

	if recentFormat == "human" {
		for _, f := range files {
			fmt.Printf("%s\t%s\t%d bytes\t%s\n", f.Path, f.Language, f.SizeBytes, f.IndexedAt)
		}
		return
	}
	printJSON(files)
}
