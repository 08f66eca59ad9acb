package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kotadb/internal/storage"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage registered repositories",
	Long:  `Register and inspect the repositories (§3) KotaDB knows how to index.`,
}

var (
	repoAddFullName   string
	repoAddLocalPath  string
	repoAddDefaultRef string
)

var repoAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a repository",
	Long: `Register a repository by its "owner/name" full name, optionally
pinning a local working tree path and a default ref.

Examples:
  kotadb repo add --full-name myorg/myrepo
  kotadb repo add --full-name myorg/myrepo --local-path . --default-ref main`,
	Run: runRepoAdd,
}

var repoShowCmd = &cobra.Command{
	Use:   "show <full-name>",
	Short: "Show a registered repository",
	Args:  cobra.ExactArgs(1),
	Run:   runRepoShow,
}

func init() {
	repoAddCmd.Flags().StringVar(&repoAddFullName, "full-name", "", "Repository full name, \"owner/name\" (required)")
	repoAddCmd.Flags().StringVar(&repoAddLocalPath, "local-path", "", "Local working tree path, if already checked out")
	repoAddCmd.Flags().StringVar(&repoAddDefaultRef, "default-ref", "", "Default git ref to index when none is given")
	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoShowCmd)
	rootCmd.AddCommand(repoCmd)
}

func runRepoAdd(cmd *cobra.Command, args []string) {
	if repoAddFullName == "" {
		failMsg(exitUserError, "--full-name is required")
	}
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	repos := storage.NewRepositoryRepo(db)
	if existing, err := repos.GetByFullName(repoAddFullName); err == nil && existing != nil {
		printJSON(existing)
		return
	}

	repo := &storage.Repository{
		ID:         uuid.NewString(),
		FullName:   repoAddFullName,
		DefaultRef: repoAddDefaultRef,
	}
	if repoAddLocalPath != "" {
		repo.LocalPath = &repoAddLocalPath
	}
	if err := repos.Create(repo); err != nil {
		fail(err)
	}
	printJSON(repo)
}

func runRepoShow(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	repo, err := storage.NewRepositoryRepo(db).GetByFullName(args[0])
	if err != nil {
		fail(err)
	}
	if repo == nil {
		fmt.Println("null")
		return
	}
	printJSON(repo)
}
