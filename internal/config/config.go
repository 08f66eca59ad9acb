// Package config loads KotaDB's configuration from a JSON file
// (.kotadb/config.json by default) with environment variable overrides,
// following the teacher's viper-based layering.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"kotadb/internal/logging"
)

// AuthConfig configures the authentication + rate limit pre-handler pipeline.
type AuthConfig struct {
	Enabled       bool              `json:"enabled" mapstructure:"enabled"`
	RequireAuth   bool              `json:"require_auth" mapstructure:"require_auth"`
	LegacyToken   string            `json:"legacy_token" mapstructure:"legacy_token"`
	StaticKeys    map[string]string `json:"static_keys" mapstructure:"static_keys"` // keyID -> token literal or ${ENV}
	HourlyLimits  map[string]int    `json:"hourly_limits" mapstructure:"hourly_limits"`
	DailyLimits   map[string]int    `json:"daily_limits" mapstructure:"daily_limits"`
}

// ServerConfig configures the HTTP request surface.
type ServerConfig struct {
	Port int    `json:"port" mapstructure:"port"`
	Host string `json:"host" mapstructure:"host"`
}

// StoreConfig configures the embedded Store.
type StoreConfig struct {
	Path          string `json:"path" mapstructure:"path"`
	BusyTimeoutMS int    `json:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
	ReadOnly      bool   `json:"read_only" mapstructure:"read_only"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// ScannerConfig configures the File Scanner's defaults (§4.3).
type ScannerConfig struct {
	IncludeExt  []string `json:"include_ext" mapstructure:"include_ext"`
	IgnoreDirs  []string `json:"ignore_dirs" mapstructure:"ignore_dirs"`
}

// IndexerConfig configures the Indexer's worker pool and retry policy (§4.6).
type IndexerConfig struct {
	Workers        int `json:"workers" mapstructure:"workers"`
	MaxRetries     int `json:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelayS int `json:"retry_base_delay_s" mapstructure:"retry_base_delay_s"`
}

// Config is KotaDB's complete configuration surface.
type Config struct {
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Store   StoreConfig   `json:"store" mapstructure:"store"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Auth    AuthConfig    `json:"auth" mapstructure:"auth"`
	Scanner ScannerConfig `json:"scanner" mapstructure:"scanner"`
	Indexer IndexerConfig `json:"indexer" mapstructure:"indexer"`
}

// DefaultDBPath returns ~/.kotadb/kotadb.db, per §6.4.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".kotadb", "kotadb.db")
}

// DefaultConfig returns the configuration used when no config file or
// environment override is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000, Host: "127.0.0.1"},
		Store: StoreConfig{
			Path:          DefaultDBPath(),
			BusyTimeoutMS: 30000,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Auth: AuthConfig{
			Enabled:      true,
			RequireAuth:  false,
			HourlyLimits: map[string]int{"free": 1000, "solo": 5000, "team": 20000},
			DailyLimits:  map[string]int{"free": 10000, "solo": 50000, "team": 200000},
		},
		Scanner: ScannerConfig{
			IncludeExt: []string{".ts", ".tsx", ".js", ".jsx", ".cjs", ".mjs", ".json"},
			IgnoreDirs: []string{".git", "node_modules", "dist", "build", "out", "coverage"},
		},
		Indexer: IndexerConfig{
			Workers:         3,
			MaxRetries:      3,
			RetryBaseDelayS: 60,
		},
	}
}

// envVarMappings lists the explicit environment variables consulted, mirroring
// the teacher's non-reflective override table.
var envVarMappings = map[string]func(c *Config, v string){
	"PORT": func(c *Config, v string) { fmt.Sscanf(v, "%d", &c.Server.Port) },
	"HOST": func(c *Config, v string) { c.Server.Host = v },
	"DB_PATH": func(c *Config, v string) { c.Store.Path = v },
	"LOG_LEVEL": func(c *Config, v string) { c.Logging.Level = v },
	"LOG_FORMAT": func(c *Config, v string) { c.Logging.Format = v },
	"KOTADB_AUTH_TOKEN": func(c *Config, v string) { c.Auth.LegacyToken = v },
}

// Load reads .kotadb/config.json under repoRoot (or KOTADB_CONFIG_PATH),
// falling back to DefaultConfig when absent, then applies environment
// variable overrides.
func Load(repoRoot string, logger *logging.Logger) (*Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("KOTADB_CONFIG_PATH")
	if path == "" {
		path = filepath.Join(repoRoot, ".kotadb", "config.json")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			if logger != nil {
				logger.Debug("no config file found, using defaults", map[string]interface{}{"path": path})
			}
		} else {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	for key, apply := range envVarMappings {
		if v, ok := os.LookupEnv(key); ok {
			apply(cfg, v)
		}
	}
}

// Save writes the config back to <repoRoot>/.kotadb/config.json.
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".kotadb")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("server", c.Server)
	v.Set("store", c.Store)
	v.Set("logging", c.Logging)
	v.Set("auth", c.Auth)
	v.Set("scanner", c.Scanner)
	v.Set("indexer", c.Indexer)
	return v.WriteConfigAs(filepath.Join(dir, "config.json"))
}
