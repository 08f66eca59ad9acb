package main

import (
	"os"

	"github.com/spf13/cobra"

	"kotadb/internal/indexer"
	"kotadb/internal/mcp"
	"kotadb/internal/memory"
	"kotadb/internal/repoacq"
	"kotadb/internal/sync"
)

var mcpStdio bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP tool protocol over stdio",
	Long: `Run the JSON-RPC tool protocol (§4.8.1, §6.3) over stdin/stdout, one
line-delimited message at a time, for MCP clients that talk to a
subprocess rather than an HTTP server.

This command is normally invoked by an MCP client, not directly by users.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpStdio, "stdio", true, "Use stdio for communication (the only supported transport)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)
	db := mustOpenStore(cfg, logger)
	defer db.Close()

	engine := mustGetEngine(db)
	acq := repoacq.New(logger)
	ix := indexer.New(db, acq, logger, indexer.Options{
		Workers:        cfg.Indexer.Workers,
		MaxRetries:     cfg.Indexer.MaxRetries,
		RetryBaseDelay: retryDelay(cfg),
		AliasMap:       loadAliasMapOrEmpty(repoRoot),
	})

	mem := memory.New(db)
	exporter := sync.NewExporter(db, logger)
	importer := sync.NewImporter(db, logger)
	dispatcher := mcp.New(engine, ix, db, mem, exporter, importer)

	return mcp.ServeStdio(dispatcher, os.Stdin, os.Stdout, logger)
}
