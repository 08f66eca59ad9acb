package storage

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"kotadb/internal/logging"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewLogger(logging.Config{Output: io.Discard, Level: logging.LevelError})
	db, err := Open(filepath.Join(dir, "kotadb.db"), Options{}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_NewDatabaseInitializesAtCurrentSchemaVersion(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != CurrentSchemaVersion() {
		t.Fatalf("schema version = %d, want %d", version, CurrentSchemaVersion())
	}

	for _, table := range []string{"repositories", "index_jobs", "indexed_files", "symbols", "refs", "dependency_edges", "api_keys", "memory_records"} {
		var name string
		if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestOpen_ReopenRunsMigrationsIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kotadb.db")
	logger := logging.NewLogger(logging.Config{Output: io.Discard, Level: logging.LevelError})

	db1, err := Open(path, Options{}, logger)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(path, Options{}, logger)
	if err != nil {
		t.Fatalf("reopening an existing store should run migrations without error: %v", err)
	}
	defer db2.Close()

	version, err := db2.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != CurrentSchemaVersion() {
		t.Fatalf("schema version after reopen = %d, want %d", version, CurrentSchemaVersion())
	}
}

func TestRunMigrations_RejectsNewerSchemaVersion(t *testing.T) {
	db := setupTestDB(t)

	future := CurrentSchemaVersion() + 1
	if err := db.WithTx(func(tx *sql.Tx) error {
		return setSchemaVersion(tx, future)
	}); err != nil {
		t.Fatalf("bumping schema version for the test: %v", err)
	}

	if err := db.runMigrations(); err == nil {
		t.Fatal("expected runMigrations to reject a schema version newer than this build supports")
	}
}
