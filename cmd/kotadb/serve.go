package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kotadb/internal/api"
	"kotadb/internal/indexer"
	"kotadb/internal/mcp"
	"kotadb/internal/memory"
	"kotadb/internal/repoacq"
	"kotadb/internal/sync"
	"kotadb/internal/version"
)

var (
	servePort      string
	serveHost      string
	serveCORSAllow string
	serveNoIndexer bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and MCP tool server",
	Long: `Start KotaDB's HTTP request surface: REST endpoints for code search,
recent files, indexing, job status, and output validation, plus the
JSON-RPC tool protocol at POST /mcp (§4.8).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (env: PORT, default 3000)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (env: HOST, default 127.0.0.1)")
	serveCmd.Flags().StringVar(&serveCORSAllow, "cors-allow", "", "Comma-separated allowed CORS origins ('*' = all)")
	serveCmd.Flags().BoolVar(&serveNoIndexer, "no-indexer", false, "Disable the background indexer worker pool and /index endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)

	host := serveHost
	if host == "" {
		host = cfg.Server.Host
	}
	port := servePort
	if port == "" {
		port = fmt.Sprintf("%d", cfg.Server.Port)
	}
	addr := fmt.Sprintf("%s:%s", host, port)

	db := mustOpenStore(cfg, logger)
	defer db.Close()

	engine := mustGetEngine(db)
	authManager := maybeAuthManager(cfg, db, logger)

	var ix *indexer.Indexer
	if !serveNoIndexer {
		acq := repoacq.New(logger)
		ix = indexer.New(db, acq, logger, indexer.Options{
			Workers:        cfg.Indexer.Workers,
			MaxRetries:     cfg.Indexer.MaxRetries,
			RetryBaseDelay: time.Duration(cfg.Indexer.RetryBaseDelayS) * time.Second,
			AliasMap:       loadAliasMapOrEmpty(repoRoot),
		})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ix.Start(ctx)
		defer ix.Stop()
	}

	mem := memory.New(db)
	exporter := sync.NewExporter(db, logger)
	importer := sync.NewImporter(db, logger)
	dispatcher := mcp.New(engine, ix, db, mem, exporter, importer)
	mcpHandler := mcp.NewHandler(dispatcher, logger)

	serverConfig := api.DefaultServerConfig()
	serverConfig.McpHandler = mcpHandler
	if serveCORSAllow != "" {
		origins := strings.Split(serveCORSAllow, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		serverConfig.CORS.AllowedOrigins = origins
	}

	server := api.NewServer(addr, engine, db, ix, authManager, logger, serverConfig)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		fmt.Printf("KotaDB %s listening on http://%s\n", version.Version, addr)
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case sig := <-shutdown:
		logger.Info("received shutdown signal", map[string]interface{}{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
		logger.Info("server stopped gracefully", nil)
	}
	return nil
}
