package main

import (
	"github.com/spf13/cobra"

	"kotadb/internal/storage"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect index jobs",
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get the status of an index job",
	Args:  cobra.ExactArgs(1),
	Run:   runJobsStatus,
}

func init() {
	jobsCmd.AddCommand(jobsStatusCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsStatus(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	job, err := storage.NewIndexJobRepo(db).Get(args[0])
	if err != nil {
		fail(err)
	}
	if job == nil {
		failMsg(exitUserError, "job %s not found", args[0])
	}
	printJSON(job)
}
