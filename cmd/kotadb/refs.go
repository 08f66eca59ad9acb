package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kotadb/internal/query"
)

var (
	refsRepository     string
	refsDirection      string
	refsDepth          int
	refsIncludeTests   bool
	refsReferenceTypes string
	refsFormat         string
)

var refsCmd = &cobra.Command{
	Use:   "refs <file-path>",
	Short: "Walk the dependency graph from a file",
	Long: `Walk the dependency edge graph from a file, forward (what it depends
on) or reverse (what depends on it), bounded by depth (§4.7.3).

Examples:
  kotadb refs src/api/handler.go --repository myorg/myrepo
  kotadb refs src/api/handler.go --direction reverse --depth 3`,
	Args: cobra.ExactArgs(1),
	Run:  runRefs,
}

func init() {
	refsCmd.Flags().StringVar(&refsRepository, "repository", "", "Repository id to scope the walk to")
	refsCmd.Flags().StringVar(&refsDirection, "direction", "forward", "forward or reverse")
	refsCmd.Flags().IntVar(&refsDepth, "depth", 1, "Traversal depth (1-5)")
	refsCmd.Flags().BoolVar(&refsIncludeTests, "include-tests", false, "Include test files in the results")
	refsCmd.Flags().StringVar(&refsReferenceTypes, "reference-types", "", "Comma-separated reference types to follow (default: all)")
	refsCmd.Flags().StringVar(&refsFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(refsCmd)
}

func runRefs(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger(refsFormat)
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	dir := query.DirectionForward
	if refsDirection == "reverse" {
		dir = query.DirectionReverse
	}
	var refTypes []string
	if refsReferenceTypes != "" {
		refTypes = strings.Split(refsReferenceTypes, ",")
	}

	engine := mustGetEngine(db)
	nodes, err := engine.SearchDependencies(refsRepository, args[0], dir, refsDepth, refsIncludeTests, refTypes)
	if err != nil {
		fail(err)
	}

	if refsFormat == "human" {
		for _, n := range nodes {
			fmt.Printf("depth=%d via=%s %s\n", n.Depth, n.Via, n.Path)
		}
		return
	}
	printJSON(nodes)
}
