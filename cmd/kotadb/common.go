package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"kotadb/internal/auth"
	"kotadb/internal/config"
	"kotadb/internal/kotaerr"
	"kotadb/internal/logging"
	"kotadb/internal/query"
	"kotadb/internal/storage"
)

func newRepoID() string { return uuid.NewString() }

func retryDelay(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Indexer.RetryBaseDelayS) * time.Second
}

// Exit codes (§6.1): 0 success, 1 user error, 2 I/O error, 3 internal error.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitIOError   = 2
	exitInternal  = 3
)

func newLogger(format string) *logging.Logger {
	logFormat := logging.FormatJSON
	if format == "human" {
		logFormat = logging.FormatHuman
	}
	level := logging.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = logging.LogLevel(v)
	}
	return logging.NewLogger(logging.Config{Format: logFormat, Level: level, Output: os.Stderr})
}

func mustGetRepoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(exitIOError)
	}
	return dir
}

func loadConfigOrDefault(repoRoot string, logger *logging.Logger) *config.Config {
	cfg, err := config.Load(repoRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(exitIOError)
	}
	return cfg
}

func mustOpenStore(cfg *config.Config, logger *logging.Logger) *storage.DB {
	db, err := storage.Open(cfg.Store.Path, storage.Options{BusyTimeoutMS: cfg.Store.BusyTimeoutMS}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening store at %s: %v\n", cfg.Store.Path, err)
		os.Exit(exitCodeFor(err))
	}
	return db
}

func mustGetEngine(db *storage.DB) *query.Engine {
	return query.New(db)
}

// loadAliasMapOrEmpty reads the optional kotadb.toml path-alias manifest
// (§4.5); a missing manifest is normal and yields an empty map, but a
// malformed one is fatal rather than silently resolving zero dependency
// edges.
func loadAliasMapOrEmpty(repoRoot string) map[string]string {
	aliases, err := config.LoadAliasMap(repoRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: parsing kotadb.toml: %v\n", err)
		os.Exit(exitUserError)
	}
	return aliases
}

func maybeAuthManager(cfg *config.Config, db *storage.DB, logger *logging.Logger) *auth.Manager {
	if !cfg.Auth.Enabled {
		return nil
	}
	return auth.NewManager(cfg.Auth, db, logger)
}

// exitCodeFor classifies an error into §6.1's exit code scheme.
func exitCodeFor(err error) int {
	var kerr *kotaerr.Error
	if !kotaerr.As(err, &kerr) {
		return exitInternal
	}
	switch kerr.Kind {
	case kotaerr.InvalidArgument, kotaerr.NotFound, kotaerr.AuthDenied, kotaerr.RateLimited:
		return exitUserError
	case kotaerr.RefNotFound, kotaerr.CloneFailed, kotaerr.NetworkTransient, kotaerr.ParseError:
		return exitIOError
	default:
		return exitInternal
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCodeFor(err))
}

func failMsg(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(code)
}
