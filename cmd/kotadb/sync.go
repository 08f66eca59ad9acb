package main

import (
	"github.com/spf13/cobra"

	"kotadb/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Export and import bundles",
	Long:  `Write and read the deterministic export/import bundles described in §4.10.`,
}

var (
	exportRepository string
	exportForce      bool
	exportGzip       bool
)

var exportCmd = &cobra.Command{
	Use:   "export <directory>",
	Short: "Export a bundle directory",
	Args:  cobra.ExactArgs(1),
	Run:   runExport,
}

var importMode string

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Import a bundle directory",
	Args:  cobra.ExactArgs(1),
	Run:   runImport,
}

func init() {
	exportCmd.Flags().StringVar(&exportRepository, "repository", "", "Restrict export to one repository id")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Re-export tables even if content is unchanged")
	exportCmd.Flags().BoolVar(&exportGzip, "gzip", false, "Gzip-compress each table file")
	importCmd.Flags().StringVar(&importMode, "mode", "merge", "Import mode: merge or replace")

	syncCmd.AddCommand(exportCmd)
	syncCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	result, err := sync.NewExporter(db, logger).Export(args[0], sync.ExportOptions{
		RepositoryID: exportRepository,
		Force:        exportForce,
		Gzip:         exportGzip,
	})
	if err != nil {
		fail(err)
	}
	printJSON(result)
}

func runImport(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	result, err := sync.NewImporter(db, logger).Import(args[0], sync.ImportOptions{Mode: sync.Mode(importMode)})
	if err != nil {
		fail(err)
	}
	printJSON(result)
}
