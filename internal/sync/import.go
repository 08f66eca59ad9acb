package sync

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"kotadb/internal/kotaerr"
	"kotadb/internal/logging"
	"kotadb/internal/storage"
)

// Mode selects import semantics for a table (§4.10).
type Mode string

const (
	ModeMerge   Mode = "merge"   // insert-or-ignore by primary key
	ModeReplace Mode = "replace" // truncate the table, then insert
)

// ImportOptions configures one import run.
type ImportOptions struct {
	Mode Mode
}

// TableResult reports what happened importing one table.
type TableResult struct {
	Table      string   `json:"table"`
	RowsRead   int      `json:"rows_read"`
	RowsWritten int     `json:"rows_written"`
	RowErrors  []string `json:"row_errors,omitempty"` // individual row parse/insert failures in merge mode
}

// ImportResult summarizes an entire bundle import.
type ImportResult struct {
	Tables []TableResult `json:"tables"`
}

// Importer reads bundle directories into a Store.
type Importer struct {
	db     *storage.DB
	logger *logging.Logger
}

func NewImporter(db *storage.DB, logger *logging.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// Import reads every <table>.jsonl(.gz) present in dir, in tableOrder, and
// applies it under the given Mode. Each table runs in its own transaction
// (§4.10): a failure rolls back that table without affecting others already
// committed. In merge mode, individual row failures are collected and
// reported rather than aborting the table; in replace mode a row failure
// aborts and rolls back that table's truncate-and-insert.
func (im *Importer) Import(dir string, opts ImportOptions) (*ImportResult, error) {
	if opts.Mode != ModeMerge && opts.Mode != ModeReplace {
		return nil, kotaerr.New(kotaerr.InvalidArgument, "import mode must be merge or replace")
	}

	result := &ImportResult{}
	for _, table := range tableOrder {
		lines, found, err := readTableLines(dir, table)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		tr := TableResult{Table: table, RowsRead: len(lines)}
		written, rowErrs, err := im.importTable(table, lines, opts.Mode)
		if err != nil {
			return nil, kotaerr.Wrap(kotaerr.StoreWriteError, "importing table "+table, err)
		}
		tr.RowsWritten = written
		tr.RowErrors = rowErrs
		result.Tables = append(result.Tables, tr)
	}
	return result, nil
}

func readTableLines(dir, table string) ([][]byte, bool, error) {
	plain := filepath.Join(dir, table+".jsonl")
	gzipped := plain + ".gz"

	path := plain
	isGzip := false
	if _, err := os.Stat(plain); err != nil {
		if _, err := os.Stat(gzipped); err != nil {
			return nil, false, nil
		}
		path = gzipped
		isGzip = true
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, kotaerr.Wrap(kotaerr.InternalError, "opening bundle file "+path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if isGzip {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, false, kotaerr.Wrap(kotaerr.InvalidArgument, "invalid gzip bundle file "+path, err)
		}
		defer gr.Close()
		r = gr
	}

	var lines [][]byte
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, false, kotaerr.Wrap(kotaerr.InternalError, "reading bundle file "+path, err)
	}
	return lines, true, nil
}

func (im *Importer) importTable(table string, lines [][]byte, mode Mode) (int, []string, error) {
	var written int
	var rowErrs []string

	err := im.db.WithTx(func(tx *sql.Tx) error {
		if mode == ModeReplace {
			if _, err := tx.Exec(truncateSQL(table)); err != nil {
				return err
			}
		}

		for _, line := range lines {
			n, err := importRow(tx, table, line, mode)
			if err != nil {
				if mode == ModeReplace {
					return err // abort the whole table on any row failure
				}
				rowErrs = append(rowErrs, err.Error())
				continue
			}
			written += n
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return written, rowErrs, nil
}

func truncateSQL(table string) string {
	return "DELETE FROM " + table
}

func importRow(tx *sql.Tx, table string, line []byte, mode Mode) (int, error) {
	ignore := mode == ModeMerge

	switch table {
	case "repositories":
		var r storage.Repository
		if err := json.Unmarshal(line, &r); err != nil {
			return 0, err
		}
		return execIgnorable(tx, ignore, `
			INSERT INTO repositories (id, full_name, local_path, default_ref)
			VALUES (?, ?, ?, ?)`, r.ID, r.FullName, r.LocalPath, r.DefaultRef)

	case "index_jobs":
		var j storage.IndexJob
		if err := json.Unmarshal(line, &j); err != nil {
			return 0, err
		}
		statsJSON, _ := json.Marshal(j.Stats)
		return execIgnorable(tx, ignore, `
			INSERT INTO index_jobs (id, repository_id, ref, status, stats_json)
			VALUES (?, ?, ?, ?, ?)`, j.ID, j.RepositoryID, j.Ref, j.Status, string(statsJSON))

	case "indexed_files":
		var f storage.IndexedFile
		if err := json.Unmarshal(line, &f); err != nil {
			return 0, err
		}
		return execIgnorable(tx, ignore, `
			INSERT INTO indexed_files (id, repository_id, path, content_hash, language, size_bytes, content_snippet, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.RepositoryID, f.Path, f.ContentHash, f.Language, f.SizeBytes, f.ContentSnippet, f.IndexedAt.UTC().Format(time.RFC3339))

	case "symbols":
		var s storage.Symbol
		if err := json.Unmarshal(line, &s); err != nil {
			return 0, err
		}
		return execIgnorable(tx, ignore, `
			INSERT INTO symbols (id, file_id, name, kind, line, jsdoc)
			VALUES (?, ?, ?, ?, ?, ?)`, s.ID, s.FileID, s.Name, s.Kind, s.Line, s.JSDoc)

	case "refs":
		var r storage.Reference
		if err := json.Unmarshal(line, &r); err != nil {
			return 0, err
		}
		symbolsJSON, _ := json.Marshal(r.Symbols)
		return execIgnorable(tx, ignore, `
			INSERT INTO refs (id, from_file_id, to_path, symbols_json, reference_type, is_type_only)
			VALUES (?, ?, ?, ?, ?, ?)`, r.ID, r.FromFileID, r.ToPath, string(symbolsJSON), r.ReferenceType, r.IsTypeOnly)

	case "dependency_edges":
		var e storage.DependencyEdge
		if err := json.Unmarshal(line, &e); err != nil {
			return 0, err
		}
		return execIgnorable(tx, ignore, `
			INSERT INTO dependency_edges (id, repository_id, source_file_id, target_file_id, reference_type)
			VALUES (?, ?, ?, ?, ?)`, e.ID, e.RepositoryID, e.SourceFileID, e.TargetFileID, e.ReferenceType)

	case "memory_records":
		var m storage.MemoryRecord
		if err := json.Unmarshal(line, &m); err != nil {
			return 0, err
		}
		relatedJSON, _ := json.Marshal(m.RelatedFiles)
		metaJSON, _ := json.Marshal(m.Metadata)
		return execIgnorable(tx, ignore, `
			INSERT INTO memory_records (id, kind, repository_id, related_files_json, content, metadata_json, superseded_by)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, m.ID, m.Kind, m.RepositoryID, string(relatedJSON), m.Content, string(metaJSON), m.SupersededBy)

	default:
		return 0, kotaerr.New(kotaerr.InternalError, "unknown import table: "+table)
	}
}

func execIgnorable(tx *sql.Tx, ignore bool, query string, args ...interface{}) (int, error) {
	if ignore {
		query = insertOrIgnore(query)
	}
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// insertOrIgnore rewrites "INSERT INTO" to SQLite's "INSERT OR IGNORE INTO"
// for merge-mode imports, so a primary-key collision with an existing row
// is silently skipped rather than erroring.
func insertOrIgnore(query string) string {
	const prefix = "\n\t\t\tINSERT INTO"
	if len(query) >= len(prefix) && query[:len(prefix)] == prefix {
		return "\n\t\t\tINSERT OR IGNORE INTO" + query[len(prefix):]
	}
	return query
}
