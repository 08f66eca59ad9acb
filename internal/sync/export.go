// Package sync implements deterministic export/import (§4.10): a bundle
// directory of one JSONL file per table, written and read in a fixed table
// order so two exports of the same store content produce byte-identical
// bundles. Compression follows the teacher's upload-streaming idiom
// (internal/api's gzip/zstd handling), here using klauspost/compress's
// zstd-grade gzip implementation for the on-disk bundle rather than an
// HTTP body. The manifest is YAML rather than JSON, matching the
// human-editable config-file idiom the rest of the pack reaches for
// whenever a file is meant to be read, not just parsed.
package sync

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"kotadb/internal/kotaerr"
	"kotadb/internal/logging"
	"kotadb/internal/storage"
)

// tableOrder is the fixed export/import order (§4.10): parents before
// children so merge-mode imports never violate a foreign key.
var tableOrder = []string{
	"repositories",
	"index_jobs",
	"indexed_files",
	"symbols",
	"refs",
	"dependency_edges",
	"memory_records",
}

// Manifest records the content hash of each exported table, so a later
// export can skip tables whose content hasn't changed unless Force is set.
type Manifest struct {
	Tables map[string]string `yaml:"tables"` // table name -> sha256 of its jsonl lines
}

const manifestFile = "manifest.yaml"

// ExportOptions configures one export run.
type ExportOptions struct {
	RepositoryID string // optional: restrict to one repository's rows
	Force        bool   // re-export tables even if content hash is unchanged
	Gzip         bool   // gzip-compress each .jsonl file
}

// Exporter writes bundle directories from a Store.
type Exporter struct {
	db     *storage.DB
	logger *logging.Logger
}

func NewExporter(db *storage.DB, logger *logging.Logger) *Exporter {
	return &Exporter{db: db, logger: logger}
}

// ExportResult summarizes what an export actually wrote.
type ExportResult struct {
	BundleDir     string   `json:"bundle_dir"`
	TablesWritten []string `json:"tables_written"`
	TablesSkipped []string `json:"tables_skipped"` // unchanged, not re-exported
	RowCounts     map[string]int `json:"row_counts"`
}

// Export writes a bundle to dir, one <table>.jsonl per table in
// tableOrder, skipping unchanged tables against a prior manifest unless
// opts.Force is set (§4.10).
func (e *Exporter) Export(dir string, opts ExportOptions) (*ExportResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kotaerr.Wrap(kotaerr.InternalError, "creating bundle directory", err)
	}

	prior := loadManifest(dir)
	next := &Manifest{Tables: make(map[string]string)}
	result := &ExportResult{BundleDir: dir, RowCounts: make(map[string]int)}

	for _, table := range tableOrder {
		rows, err := e.rowsFor(table, opts.RepositoryID)
		if err != nil {
			return nil, err
		}

		lines := make([][]byte, 0, len(rows))
		for _, row := range rows {
			b, err := json.Marshal(row)
			if err != nil {
				return nil, kotaerr.Wrap(kotaerr.InternalError, "marshaling "+table+" row", err)
			}
			lines = append(lines, b)
		}
		hash := hashLines(lines)
		next.Tables[table] = hash

		if !opts.Force && prior != nil && prior.Tables[table] == hash {
			result.TablesSkipped = append(result.TablesSkipped, table)
			continue
		}

		path := filepath.Join(dir, table+".jsonl")
		if opts.Gzip {
			path += ".gz"
		}
		if err := writeLines(path, lines, opts.Gzip); err != nil {
			return nil, err
		}
		result.TablesWritten = append(result.TablesWritten, table)
		result.RowCounts[table] = len(rows)
	}

	if err := saveManifest(dir, next); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Exporter) rowsFor(table, repositoryID string) ([]interface{}, error) {
	switch table {
	case "repositories":
		return e.exportRepositories(repositoryID)
	case "index_jobs":
		return e.exportIndexJobs(repositoryID)
	case "indexed_files":
		return e.exportIndexedFiles(repositoryID)
	case "symbols":
		return e.exportSymbols(repositoryID)
	case "refs":
		return e.exportRefs(repositoryID)
	case "dependency_edges":
		return e.exportDependencyEdges(repositoryID)
	case "memory_records":
		return e.exportMemoryRecords()
	default:
		return nil, kotaerr.New(kotaerr.InternalError, "unknown export table: "+table)
	}
}

func (e *Exporter) exportRepositories(repositoryID string) ([]interface{}, error) {
	repos := storage.NewRepositoryRepo(e.db)
	if repositoryID != "" {
		r, err := repos.GetByID(repositoryID)
		if err != nil {
			return nil, kotaerr.Wrap(kotaerr.StoreBusy, "loading repository", err)
		}
		if r == nil {
			return nil, nil
		}
		return []interface{}{r}, nil
	}
	rows, err := e.db.Query(`SELECT id FROM repositories ORDER BY id ASC`)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing repositories", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		r, err := repos.GetByID(id)
		if err != nil || r == nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (e *Exporter) exportIndexJobs(repositoryID string) ([]interface{}, error) {
	query := `SELECT id FROM index_jobs`
	args := []interface{}{}
	if repositoryID != "" {
		query += ` WHERE repository_id = ?`
		args = append(args, repositoryID)
	}
	query += ` ORDER BY rowid ASC`
	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing index jobs", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	jobs := storage.NewIndexJobRepo(e.db)
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		j, err := jobs.Get(id)
		if err != nil || j == nil {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (e *Exporter) exportIndexedFiles(repositoryID string) ([]interface{}, error) {
	query := `SELECT id, repository_id, path, content_hash, language, size_bytes, content_snippet, indexed_at FROM indexed_files`
	args := []interface{}{}
	if repositoryID != "" {
		query += ` WHERE repository_id = ?`
		args = append(args, repositoryID)
	}
	query += ` ORDER BY id ASC`

	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing indexed files", err)
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		var f storage.IndexedFile
		var indexedAt string
		if err := rows.Scan(&f.ID, &f.RepositoryID, &f.Path, &f.ContentHash, &f.Language, &f.SizeBytes, &f.ContentSnippet, &indexedAt); err != nil {
			return nil, err
		}
		f.IndexedAt = parseRFC3339(indexedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (e *Exporter) exportSymbols(repositoryID string) ([]interface{}, error) {
	query := `SELECT s.id, s.file_id, s.name, s.kind, s.line, s.jsdoc FROM symbols s`
	args := []interface{}{}
	if repositoryID != "" {
		query += ` JOIN indexed_files f ON f.id = s.file_id WHERE f.repository_id = ?`
		args = append(args, repositoryID)
	}
	query += ` ORDER BY s.id ASC`
	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing symbols", err)
	}
	defer rows.Close()
	var out []interface{}
	for rows.Next() {
		var s storage.Symbol
		if err := rows.Scan(&s.ID, &s.FileID, &s.Name, &s.Kind, &s.Line, &s.JSDoc); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (e *Exporter) exportRefs(repositoryID string) ([]interface{}, error) {
	refs := storage.NewReferenceRepo(e.db)
	ids, err := e.repositoryIDs(repositoryID)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	for _, id := range ids {
		recs, err := refs.ForRepository(id)
		if err != nil {
			return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing refs", err)
		}
		for i := range recs {
			out = append(out, recs[i])
		}
	}
	return out, nil
}

func (e *Exporter) exportDependencyEdges(repositoryID string) ([]interface{}, error) {
	edges := storage.NewDependencyEdgeRepo(e.db)
	ids, err := e.repositoryIDs(repositoryID)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	for _, id := range ids {
		recs, err := edges.AllForRepository(id)
		if err != nil {
			return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing dependency edges", err)
		}
		for i := range recs {
			out = append(out, recs[i])
		}
	}
	return out, nil
}

// repositoryIDs returns [repositoryID] if set, otherwise every repository
// id in the store, so table exporters that require a repository id (refs,
// dependency edges) can still cover a whole-store export.
func (e *Exporter) repositoryIDs(repositoryID string) ([]string, error) {
	if repositoryID != "" {
		return []string{repositoryID}, nil
	}
	rows, err := e.db.Query(`SELECT id FROM repositories ORDER BY id ASC`)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing repositories", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var memoryKinds = []string{"decision", "failure", "pattern", "insight"}

func (e *Exporter) exportMemoryRecords() ([]interface{}, error) {
	repo := storage.NewMemoryRepo(e.db)
	var out []interface{}
	for _, kind := range memoryKinds {
		recs, err := repo.All(kind)
		if err != nil {
			return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing memory records", err)
		}
		for i := range recs {
			out = append(out, recs[i])
		}
	}
	return out, nil
}

func parseRFC3339(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func hashLines(lines [][]byte) string {
	h := sha256.New()
	for _, l := range lines {
		h.Write(l)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeLines(path string, lines [][]byte, gz bool) error {
	f, err := os.Create(path)
	if err != nil {
		return kotaerr.Wrap(kotaerr.InternalError, "creating bundle file "+path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var gw *gzip.Writer
	if gz {
		gw = gzip.NewWriter(f)
		w = gw
	}
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := bw.Write(l); err != nil {
			return kotaerr.Wrap(kotaerr.InternalError, "writing bundle file "+path, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return kotaerr.Wrap(kotaerr.InternalError, "writing bundle file "+path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return kotaerr.Wrap(kotaerr.InternalError, "flushing bundle file "+path, err)
	}
	if gw != nil {
		if err := gw.Close(); err != nil {
			return kotaerr.Wrap(kotaerr.InternalError, "closing gzip stream "+path, err)
		}
	}
	return nil
}

func loadManifest(dir string) *Manifest {
	b, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil
	}
	return &m
}

func saveManifest(dir string, m *Manifest) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return kotaerr.Wrap(kotaerr.InternalError, "marshaling manifest", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), b, 0o644); err != nil {
		return kotaerr.Wrap(kotaerr.InternalError, "writing manifest", err)
	}
	return nil
}
