package main

import (
	"strings"

	"github.com/spf13/cobra"

	"kotadb/internal/memory"
)

var rememberCmd = &cobra.Command{
	Use:   "remember",
	Short: "Record and search the Memory Layer",
	Long:  `Append to and search the Memory Layer's decision, failure, pattern, and insight records (§4.9).`,
}

var (
	rememberContent      string
	rememberRepository   string
	rememberRelatedFiles string
	rememberSupersedes   string
)

func rememberRecordCmd(kind, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			runRememberRecord(kind)
		},
	}
	cmd.Flags().StringVar(&rememberContent, "content", "", "Record content (required)")
	cmd.Flags().StringVar(&rememberRepository, "repository", "", "Repository id this record applies to")
	cmd.Flags().StringVar(&rememberRelatedFiles, "files", "", "Comma-separated related file paths")
	cmd.Flags().StringVar(&rememberSupersedes, "supersedes", "", "ID of a prior record this one replaces")
	return cmd
}

var (
	rememberSearchTerm  string
	rememberSearchLimit int
)

func rememberSearchCmd(kind, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runRememberSearch(kind, args[0])
		},
	}
	cmd.Flags().IntVar(&rememberSearchLimit, "limit", 10, "Maximum results")
	return cmd
}

func init() {
	rememberCmd.AddCommand(rememberRecordCmd(memory.KindDecisionRecord, "decision", "Record a decision"))
	rememberCmd.AddCommand(rememberRecordCmd(memory.KindFailureRecord, "failure", "Record a failure"))
	rememberCmd.AddCommand(rememberRecordCmd(memory.KindPatternRecord, "pattern", "Record a pattern"))
	rememberCmd.AddCommand(rememberRecordCmd(memory.KindInsightRecord, "insight", "Record an insight"))

	search := &cobra.Command{Use: "search", Short: "Search memory records"}
	search.AddCommand(rememberSearchCmd(memory.KindDecisionRecord, "decisions <term>", "Search decision records"))
	search.AddCommand(rememberSearchCmd(memory.KindFailureRecord, "failures <term>", "Search failure records"))
	search.AddCommand(rememberSearchCmd(memory.KindPatternRecord, "patterns <term>", "Search pattern records"))
	search.AddCommand(rememberSearchCmd(memory.KindInsightRecord, "insights <term>", "Search insight records"))
	rememberCmd.AddCommand(search)

	rootCmd.AddCommand(rememberCmd)
}

func runRememberRecord(kind string) {
	if rememberContent == "" {
		failMsg(exitUserError, "--content is required")
	}
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	in := memory.Input{Content: rememberContent, Supersedes: rememberSupersedes}
	if rememberRepository != "" {
		in.RepositoryID = &rememberRepository
	}
	if rememberRelatedFiles != "" {
		in.RelatedFiles = strings.Split(rememberRelatedFiles, ",")
	}

	rec, err := memory.New(db).Record(kind, in)
	if err != nil {
		fail(err)
	}
	printJSON(rec)
}

func runRememberSearch(kind, term string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	recs, err := memory.New(db).Search(kind, term, rememberSearchLimit)
	if err != nil {
		fail(err)
	}
	printJSON(recs)
}
