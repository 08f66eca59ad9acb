// Package storage implements the Store component (§4.1): durable,
// transactional SQLite-backed storage with full-text search, migrations,
// and per-entity repositories.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"kotadb/internal/kotaerr"
	"kotadb/internal/logging"
)

// Options configures Open, matching §4.1's public contract.
type Options struct {
	ReadOnly       bool
	SkipSchemaInit bool
	BusyTimeoutMS  int // default 30000
}

// DB wraps the underlying *sql.DB connection pool plus the logger every
// Store-backed component needs.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	path   string
}

// Open opens (creating if necessary) the SQLite database at path, applies
// the pragmas the Store contract requires, and initializes or advances the
// schema unless suppressed by Options.
func Open(path string, opts Options, logger *logging.Logger) (*DB, error) {
	if opts.BusyTimeoutMS == 0 {
		opts.BusyTimeoutMS = 30000
	}
	if !opts.ReadOnly {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, kotaerr.Wrap(kotaerr.StoreWriteError, "creating store directory", err)
			}
		}
	}

	isNew := false
	if _, err := os.Stat(path); err != nil {
		isNew = true
	}

	dsn := path
	if opts.ReadOnly {
		dsn = fmt.Sprintf("%s?mode=ro", path)
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreWriteError, "opening store", err)
	}

	// One writer, N readers (§4.1, §5): WAL mode lets readers proceed
	// concurrently with a single in-flight writer, so the pool is left
	// unbounded rather than capped to one connection.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeoutMS),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA mmap_size=268435456",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, kotaerr.Wrap(kotaerr.StoreWriteError, "applying pragma "+p, err)
		}
	}

	db := &DB{conn: conn, logger: logger, path: path}

	if !opts.ReadOnly && !opts.SkipSchemaInit {
		if isNew {
			if err := db.initializeSchema(); err != nil {
				conn.Close()
				return nil, kotaerr.Wrap(kotaerr.SchemaError, "initializing schema", err)
			}
		} else {
			if err := db.runMigrations(); err != nil {
				conn.Close()
				return nil, kotaerr.Wrap(kotaerr.SchemaError, "running migrations", err)
			}
		}
	}

	return db, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error { return db.conn.Close() }

// WithTx runs fn inside a single serialized write transaction, rolling back
// on any error or panic (re-panicking after rollback).
func (db *DB) WithTx(fn func(*sql.Tx) error) (err error) {
	tx, txErr := db.conn.Begin()
	if txErr != nil {
		return kotaerr.Wrap(kotaerr.StoreBusy, "beginning transaction", txErr)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return kotaerr.Wrap(kotaerr.StoreWriteError, "committing transaction", err)
	}
	return nil
}

// Exec runs a parameterized statement outside of an explicit transaction.
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreWriteError, "exec failed", err)
	}
	return res, nil
}

// Query runs a parameterized query outside of an explicit transaction.
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow runs a parameterized single-row query.
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Conn exposes the raw *sql.DB for components (repositories) that need it
// directly rather than through WithTx/Exec/Query.
func (db *DB) Conn() *sql.DB { return db.conn }

// Path returns the path the store was opened at.
func (db *DB) Path() string { return db.path }
