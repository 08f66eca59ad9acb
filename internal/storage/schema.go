package storage

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 2

// schema_migrations records, per migration name, a SHA-256 content hash of
// the migration script. A hash mismatch between recorded and on-disk script
// raises schema_drift (warn, continue) rather than failing startup (§4.1).
func createSchemaVersionTables(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func recordMigration(tx *sql.Tx, name, script string) error {
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(script)))
	_, err := tx.Exec(`INSERT OR REPLACE INTO schema_migrations (name, content_hash) VALUES (?, ?)`, name, hash)
	return err
}

// SchemaVersion reports the schema version recorded in the database, and
// CurrentSchemaVersion reports the version this build expects — used by
// `kotadb status` to detect drift without exposing the migration internals.
func (db *DB) SchemaVersion() (int, error) { return getSchemaVersion(db) }

func CurrentSchemaVersion() int { return currentSchemaVersion }

func getSchemaVersion(db *DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func setSchemaVersion(tx *sql.Tx, v int) error {
	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, v)
	return err
}

// initializeSchema builds the full schema at currentSchemaVersion inside one
// transaction, used when opening a brand-new database file.
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTables(tx); err != nil {
			return err
		}
		for name, create := range schemaV1Tables() {
			if _, err := tx.Exec(create); err != nil {
				return fmt.Errorf("creating %s: %w", name, err)
			}
			if err := recordMigration(tx, name, create); err != nil {
				return err
			}
		}
		if err := createFTSSchema(tx); err != nil {
			return err
		}
		if err := recordMigration(tx, "v1_fts", "fts_schema"); err != nil {
			return err
		}
		if err := applyV2(tx); err != nil {
			return err
		}
		return setSchemaVersion(tx, currentSchemaVersion)
	})
}

// runMigrations advances an existing database from its recorded version to
// currentSchemaVersion. Each step is idempotent; migration failures halt
// further migrations and abort startup (fatal schema_error).
func (db *DB) runMigrations() error {
	version, err := getSchemaVersion(db)
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if version < 1 {
		if err := db.WithTx(func(tx *sql.Tx) error {
			if err := createSchemaVersionTables(tx); err != nil {
				return err
			}
			for name, create := range schemaV1Tables() {
				if _, err := tx.Exec(create); err != nil {
					return fmt.Errorf("creating %s: %w", name, err)
				}
				if err := recordMigration(tx, name, create); err != nil {
					return err
				}
			}
			if err := createFTSSchema(tx); err != nil {
				return err
			}
			return setSchemaVersion(tx, 1)
		}); err != nil {
			return err
		}
		version = 1
	}

	if version < 2 {
		if err := db.WithTx(func(tx *sql.Tx) error {
			if err := applyV2(tx); err != nil {
				return err
			}
			return setSchemaVersion(tx, 2)
		}); err != nil {
			return err
		}
		version = 2
	}

	return nil
}

// schemaV1Tables returns the core entity tables from §3, keyed by name for
// deterministic migration-recording order.
func schemaV1Tables() map[string]string {
	return map[string]string{
		"repositories": `CREATE TABLE IF NOT EXISTS repositories (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL UNIQUE,
			local_path TEXT,
			default_ref TEXT NOT NULL DEFAULT 'HEAD',
			last_indexed_at TEXT
		)`,
		"index_jobs": `CREATE TABLE IF NOT EXISTS index_jobs (
			id TEXT PRIMARY KEY,
			repository_id TEXT NOT NULL REFERENCES repositories(id),
			ref TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','processing','completed','failed','skipped')),
			started_at TEXT,
			finished_at TEXT,
			error TEXT,
			stats_json TEXT
		)`,
		"indexed_files": `CREATE TABLE IF NOT EXISTS indexed_files (
			id TEXT PRIMARY KEY,
			repository_id TEXT NOT NULL REFERENCES repositories(id),
			path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			language TEXT,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			content_snippet TEXT,
			indexed_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE (repository_id, path)
		)`,
		"symbols": `CREATE TABLE IF NOT EXISTS symbols (
			id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES indexed_files(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('function','method','class','interface','type','enum','const','constant','variable')),
			line INTEGER NOT NULL,
			jsdoc TEXT
		)`,
		"refs": `CREATE TABLE IF NOT EXISTS refs (
			id TEXT PRIMARY KEY,
			from_file_id TEXT NOT NULL REFERENCES indexed_files(id) ON DELETE CASCADE,
			to_path TEXT NOT NULL,
			symbols_json TEXT NOT NULL DEFAULT '[]',
			reference_type TEXT NOT NULL CHECK (reference_type IN ('import','re_export','export_all','dynamic_import','require')),
			is_type_only INTEGER NOT NULL DEFAULT 0
		)`,
		"dependency_edges": `CREATE TABLE IF NOT EXISTS dependency_edges (
			id TEXT PRIMARY KEY,
			repository_id TEXT NOT NULL REFERENCES repositories(id),
			source_file_id TEXT NOT NULL REFERENCES indexed_files(id) ON DELETE CASCADE,
			target_file_id TEXT NOT NULL REFERENCES indexed_files(id) ON DELETE CASCADE,
			reference_type TEXT NOT NULL
		)`,
		"rate_counters": `CREATE TABLE IF NOT EXISTS rate_counters (
			key_id TEXT NOT NULL,
			window_start TEXT NOT NULL,
			request_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (key_id, window_start)
		)`,
		"api_keys": `CREATE TABLE IF NOT EXISTS api_keys (
			key_id TEXT PRIMARY KEY,
			tier TEXT NOT NULL CHECK (tier IN ('free','solo','team')),
			secret_hash TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			last_used_at TEXT,
			revoked_at TEXT
		)`,
		"memory_records": `CREATE TABLE IF NOT EXISTS memory_records (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK (kind IN ('decision','failure','pattern','insight')),
			repository_id TEXT REFERENCES repositories(id),
			related_files_json TEXT NOT NULL DEFAULT '[]',
			content TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			superseded_by TEXT
		)`,
	}
}

// applyV2 adds the indexes the Query Engine relies on for its bounded scans
// (§4.7.2's ORDER BY indexed_at DESC, §4.7.3's edge lookups by source/target).
func applyV2(tx *sql.Tx) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_indexed_files_repo_time ON indexed_files(repository_id, indexed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_dependency_edges_source ON dependency_edges(source_file_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dependency_edges_target ON dependency_edges(target_file_id)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_from_file ON refs(from_file_id)`,
		`CREATE INDEX IF NOT EXISTS idx_index_jobs_repo_status ON index_jobs(repository_id, status)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
