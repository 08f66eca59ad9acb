package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kotadb/internal/storage"
	"kotadb/internal/version"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Diagnose store reachability, schema version, and auth configuration",
	Long: `Reports whether the Store is reachable, whether its schema version
matches what this build expects, and whether the auth configuration is
internally consistent. Folds the diagnostics a separate "doctor" command
would otherwise duplicate.`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Version          string   `json:"version"`
	StorePath        string   `json:"store_path"`
	StoreReachable   bool     `json:"store_reachable"`
	SchemaVersion    int      `json:"schema_version"`
	SchemaExpected   int      `json:"schema_expected"`
	SchemaInSync     bool     `json:"schema_in_sync"`
	AuthEnabled      bool     `json:"auth_enabled"`
	AuthRequireAuth  bool     `json:"auth_require_auth"`
	Problems         []string `json:"problems,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("json")
	cfg := loadConfigOrDefault(repoRoot, logger)

	report := statusReport{
		Version:         version.Version,
		StorePath:       cfg.Store.Path,
		AuthEnabled:     cfg.Auth.Enabled,
		AuthRequireAuth: cfg.Auth.RequireAuth,
		SchemaExpected:  storage.CurrentSchemaVersion(),
	}

	db, err := storage.Open(cfg.Store.Path, storage.Options{BusyTimeoutMS: cfg.Store.BusyTimeoutMS}, logger)
	if err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("store unreachable: %v", err))
		printJSON(report)
		return
	}
	defer db.Close()
	report.StoreReachable = true

	if v, err := db.SchemaVersion(); err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("reading schema version: %v", err))
	} else {
		report.SchemaVersion = v
		report.SchemaInSync = v == report.SchemaExpected
		if !report.SchemaInSync {
			report.Problems = append(report.Problems, fmt.Sprintf("schema version %d does not match expected %d", v, report.SchemaExpected))
		}
	}

	if cfg.Auth.RequireAuth && !cfg.Auth.Enabled {
		report.Problems = append(report.Problems, "auth.require_auth is set but auth.enabled is false")
	}
	if cfg.Auth.Enabled && cfg.Auth.LegacyToken == "" && len(cfg.Auth.StaticKeys) == 0 {
		report.Problems = append(report.Problems, "auth is enabled with no legacy_token or static_keys configured; only keys created via `kotadb token create` will validate")
	}

	printJSON(report)
}
