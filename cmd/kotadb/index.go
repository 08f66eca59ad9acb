package main

import (
	"github.com/spf13/cobra"

	"kotadb/internal/indexer"
	"kotadb/internal/repoacq"
	"kotadb/internal/storage"
)

var (
	indexRepository string
	indexRef        string
	indexLocalPath  string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Enqueue and run an index job",
	Long: `Enqueue an IndexJob for a repository and run it synchronously
(§6.1): acquire the working tree, scan, parse, extract symbols/references/
dependency edges, and write the results to the Store.

Examples:
  kotadb index --repository myorg/myrepo
  kotadb index --repository myorg/myrepo --ref main
  kotadb index --repository myorg/myrepo --local-path .`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexRepository, "repository", "", "Repository full name, \"owner/name\" (required)")
	indexCmd.Flags().StringVar(&indexRef, "ref", "", "Git ref to index (default: repository's default ref)")
	indexCmd.Flags().StringVar(&indexLocalPath, "local-path", "", "Local working tree path; registers the repository if new")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexRepository == "" {
		failMsg(exitUserError, "--repository is required")
	}
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	repos := storage.NewRepositoryRepo(db)
	repo, err := repos.GetByFullName(indexRepository)
	if err != nil {
		fail(err)
	}
	if repo == nil {
		repo = &storage.Repository{ID: newRepoID(), FullName: indexRepository, DefaultRef: indexRef}
		if indexLocalPath != "" {
			repo.LocalPath = &indexLocalPath
		}
		if err := repos.Create(repo); err != nil {
			fail(err)
		}
	}

	acq := repoacq.New(logger)
	ix := indexer.New(db, acq, logger, indexer.Options{
		Workers:        cfg.Indexer.Workers,
		MaxRetries:     cfg.Indexer.MaxRetries,
		RetryBaseDelay: retryDelay(cfg),
		AliasMap:       loadAliasMapOrEmpty(repoRoot),
	})

	ref := indexRef
	if ref == "" {
		ref = repo.DefaultRef
	}
	job, err := ix.RunSync(repo.ID, ref)
	if err != nil {
		fail(err)
	}
	printJSON(job)
	if job != nil && job.Status == "failed" {
		failMsg(exitIOError, "index job failed")
	}
	return nil
}
