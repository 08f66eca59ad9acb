package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"kotadb/internal/kotaerr"
)

// Repository is §3's Repository entity.
type Repository struct {
	ID            string
	FullName      string
	LocalPath     *string
	DefaultRef    string
	LastIndexedAt *time.Time
}

// RepositoryRepo provides CRUD for the repositories table.
type RepositoryRepo struct{ db *DB }

func NewRepositoryRepo(db *DB) *RepositoryRepo { return &RepositoryRepo{db: db} }

func (r *RepositoryRepo) Create(repo *Repository) error {
	_, err := r.db.Exec(`
		INSERT INTO repositories (id, full_name, local_path, default_ref)
		VALUES (?, ?, ?, ?)`,
		repo.ID, repo.FullName, repo.LocalPath, repo.DefaultRef)
	if err != nil {
		return kotaerr.Wrap(kotaerr.StoreWriteError, "creating repository", err)
	}
	return nil
}

func (r *RepositoryRepo) GetByFullName(fullName string) (*Repository, error) {
	row := r.db.QueryRow(`SELECT id, full_name, local_path, default_ref, last_indexed_at FROM repositories WHERE full_name = ?`, fullName)
	return scanRepository(row)
}

func (r *RepositoryRepo) GetByID(id string) (*Repository, error) {
	row := r.db.QueryRow(`SELECT id, full_name, local_path, default_ref, last_indexed_at FROM repositories WHERE id = ?`, id)
	return scanRepository(row)
}

func scanRepository(row *sql.Row) (*Repository, error) {
	var repo Repository
	var lastIndexed sql.NullString
	if err := row.Scan(&repo.ID, &repo.FullName, &repo.LocalPath, &repo.DefaultRef, &lastIndexed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, kotaerr.Wrap(kotaerr.StoreWriteError, "reading repository", err)
	}
	if lastIndexed.Valid {
		t, _ := time.Parse(time.RFC3339, lastIndexed.String)
		repo.LastIndexedAt = &t
	}
	return &repo, nil
}

// TouchLastIndexed updates last_indexed_at, the one field the Indexer is
// allowed to mutate on an existing Repository row.
func (r *RepositoryRepo) TouchLastIndexed(id string, at time.Time) error {
	_, err := r.db.Exec(`UPDATE repositories SET last_indexed_at = ? WHERE id = ?`, at.UTC().Format(time.RFC3339), id)
	return err
}

// IndexJob is §3's IndexJob entity.
type IndexJob struct {
	ID           string     `json:"id"`
	RepositoryID string     `json:"repository_id"`
	Ref          string     `json:"ref"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Error        *string    `json:"error,omitempty"`
	Stats        JobStats   `json:"stats"`
}

// JobStats is the stats payload recorded on job completion (§4.6 step 10).
type JobStats struct {
	FilesScanned int `json:"files_scanned"`
	FilesIndexed int `json:"files_indexed"`
	Symbols      int `json:"symbols"`
	References   int `json:"references"`
	Dependencies int `json:"dependencies"`
}

type IndexJobRepo struct{ db *DB }

func NewIndexJobRepo(db *DB) *IndexJobRepo { return &IndexJobRepo{db: db} }

func (r *IndexJobRepo) Create(job *IndexJob) error {
	stats, _ := json.Marshal(job.Stats)
	_, err := r.db.Exec(`
		INSERT INTO index_jobs (id, repository_id, ref, status, stats_json)
		VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.RepositoryID, job.Ref, job.Status, string(stats))
	if err != nil {
		return kotaerr.Wrap(kotaerr.StoreWriteError, "creating index job", err)
	}
	return nil
}

// ClaimPending atomically transitions one pending job for repositoryID to
// processing and returns its id, or "" if none is pending. The UPDATE...
// WHERE status='pending' pattern is what makes the claim atomic under
// SQLite's single-writer model (§4.6).
func (r *IndexJobRepo) ClaimPending(repositoryID string) (string, error) {
	row := r.db.QueryRow(`
		SELECT id FROM index_jobs
		WHERE repository_id = ? AND status = 'pending'
		ORDER BY rowid ASC LIMIT 1`, repositoryID)
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	res, err := r.db.Exec(`UPDATE index_jobs SET status = 'processing', started_at = ? WHERE id = ? AND status = 'pending'`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return "", err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return "", nil // lost the race to another worker
	}
	return id, nil
}

// ClaimAnyPending atomically claims the oldest pending job across all
// repositories that do not already have a job in processing, so that
// re-enqueued jobs for the same repository coalesce to one processing job
// at a time (§4.6). Returns ("", "", nil) if nothing is claimable right
// now — callers should back off and poll again.
func (r *IndexJobRepo) ClaimAnyPending() (jobID, repositoryID string, err error) {
	row := r.db.QueryRow(`
		SELECT j.id, j.repository_id FROM index_jobs j
		WHERE j.status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM index_jobs p
			WHERE p.repository_id = j.repository_id AND p.status = 'processing'
		)
		ORDER BY j.rowid ASC LIMIT 1`)
	if err := row.Scan(&jobID, &repositoryID); err != nil {
		if err == sql.ErrNoRows {
			return "", "", nil
		}
		return "", "", err
	}
	res, err := r.db.Exec(`UPDATE index_jobs SET status = 'processing', started_at = ? WHERE id = ? AND status = 'pending'`,
		time.Now().UTC().Format(time.RFC3339), jobID)
	if err != nil {
		return "", "", err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return "", "", nil // lost the race to another worker
	}
	return jobID, repositoryID, nil
}

// HasProcessing reports whether repositoryID already has a job in
// processing, enforcing "at most one job in processing per repository"
// (§5).
func (r *IndexJobRepo) HasProcessing(repositoryID string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM index_jobs WHERE repository_id = ? AND status = 'processing'`, repositoryID).Scan(&count)
	return count > 0, err
}

// Finish sets a job to a terminal state with its final stats (§4.6 step 10).
func (r *IndexJobRepo) Finish(id, status string, stats JobStats, jobErr error) error {
	var errStr *string
	if jobErr != nil {
		s := jobErr.Error()
		errStr = &s
	}
	statsJSON, _ := json.Marshal(stats)
	_, err := r.db.Exec(`
		UPDATE index_jobs SET status = ?, finished_at = ?, error = ?, stats_json = ?
		WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), errStr, string(statsJSON), id)
	return err
}

func (r *IndexJobRepo) Get(id string) (*IndexJob, error) {
	row := r.db.QueryRow(`SELECT id, repository_id, ref, status, started_at, finished_at, error, stats_json FROM index_jobs WHERE id = ?`, id)
	var job IndexJob
	var started, finished, errStr, statsJSON sql.NullString
	if err := row.Scan(&job.ID, &job.RepositoryID, &job.Ref, &job.Status, &started, &finished, &errStr, &statsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if started.Valid {
		t, _ := time.Parse(time.RFC3339, started.String)
		job.StartedAt = &t
	}
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339, finished.String)
		job.FinishedAt = &t
	}
	if errStr.Valid {
		job.Error = &errStr.String
	}
	if statsJSON.Valid {
		json.Unmarshal([]byte(statsJSON.String), &job.Stats)
	}
	return &job, nil
}

// IndexedFile is §3's IndexedFile entity.
type IndexedFile struct {
	ID             string
	RepositoryID   string
	Path           string
	ContentHash    string
	Language       string
	SizeBytes      int64
	ContentSnippet string
	IndexedAt      time.Time
}

type IndexedFileRepo struct{ db *DB }

func NewIndexedFileRepo(db *DB) *IndexedFileRepo { return &IndexedFileRepo{db: db} }

// PriorSet loads the (path -> content_hash) set for a repository, used by
// the Indexer's diff computation (§4.6 step 5).
func (r *IndexedFileRepo) PriorSet(repositoryID string) (map[string]string, map[string]string, error) {
	rows, err := r.db.Query(`SELECT id, path, content_hash FROM indexed_files WHERE repository_id = ?`, repositoryID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	ids := make(map[string]string)
	for rows.Next() {
		var id, path, hash string
		if err := rows.Scan(&id, &path, &hash); err != nil {
			return nil, nil, err
		}
		hashes[path] = hash
		ids[path] = id
	}
	return hashes, ids, rows.Err()
}

// UpsertTx inserts or updates one IndexedFile row inside an indexer
// transaction, preserving the existing id when the path already exists so
// foreign keys from Symbol/Reference rows remain valid across re-indexing.
func (r *IndexedFileRepo) UpsertTx(tx *sql.Tx, f *IndexedFile) error {
	_, err := tx.Exec(`
		INSERT INTO indexed_files (id, repository_id, path, content_hash, language, size_bytes, content_snippet, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repository_id, path) DO UPDATE SET
			content_hash = excluded.content_hash,
			language = excluded.language,
			size_bytes = excluded.size_bytes,
			content_snippet = excluded.content_snippet,
			indexed_at = excluded.indexed_at`,
		f.ID, f.RepositoryID, f.Path, f.ContentHash, f.Language, f.SizeBytes, f.ContentSnippet,
		f.IndexedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *IndexedFileRepo) DeleteTx(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM indexed_files WHERE id = ?`, id)
	return err
}

func (r *IndexedFileRepo) Recent(repositoryID string, limit int) ([]IndexedFile, error) {
	query := `SELECT id, repository_id, path, content_hash, language, size_bytes, indexed_at FROM indexed_files`
	args := []interface{}{}
	if repositoryID != "" {
		query += ` WHERE repository_id = ?`
		args = append(args, repositoryID)
	}
	query += ` ORDER BY indexed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []IndexedFile
	for rows.Next() {
		var f IndexedFile
		var indexedAt string
		if err := rows.Scan(&f.ID, &f.RepositoryID, &f.Path, &f.ContentHash, &f.Language, &f.SizeBytes, &indexedAt); err != nil {
			return nil, err
		}
		f.IndexedAt, _ = time.Parse(time.RFC3339, indexedAt)
		files = append(files, f)
	}
	return files, rows.Err()
}

// PathsByID loads the (id -> path) map for every file in a repository, used
// by the Query Engine to render dependency-edge file IDs back into paths
// (§4.7.3) without a lookup per edge.
func (r *IndexedFileRepo) PathsByID(repositoryID string) (map[string]string, error) {
	rows, err := r.db.Query(`SELECT id, path FROM indexed_files WHERE repository_id = ?`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]string)
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, err
		}
		paths[id] = path
	}
	return paths, rows.Err()
}

func (r *IndexedFileRepo) GetByPath(repositoryID, path string) (*IndexedFile, error) {
	row := r.db.QueryRow(`SELECT id, repository_id, path, content_hash, language, size_bytes, indexed_at FROM indexed_files WHERE repository_id = ? AND path = ?`, repositoryID, path)
	var f IndexedFile
	var indexedAt string
	if err := row.Scan(&f.ID, &f.RepositoryID, &f.Path, &f.ContentHash, &f.Language, &f.SizeBytes, &indexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	f.IndexedAt, _ = time.Parse(time.RFC3339, indexedAt)
	return &f, nil
}

// Symbol is §3's Symbol entity.
type Symbol struct {
	ID     string
	FileID string
	Name   string
	Kind   string
	Line   int
	JSDoc  *string
}

type SymbolRepo struct{ db *DB }

func NewSymbolRepo(db *DB) *SymbolRepo { return &SymbolRepo{db: db} }

func (r *SymbolRepo) ReplaceForFileTx(tx *sql.Tx, fileID string, symbols []Symbol) error {
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	for _, s := range symbols {
		if _, err := tx.Exec(`
			INSERT INTO symbols (id, file_id, name, kind, line, jsdoc)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, fileID, s.Name, s.Kind, s.Line, s.JSDoc); err != nil {
			return err
		}
	}
	return nil
}

func (r *SymbolRepo) CountForFile(fileID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM symbols WHERE file_id = ?`, fileID).Scan(&n)
	return n, err
}

// Reference is §3's Reference entity.
type Reference struct {
	ID            string
	FromFileID    string
	ToPath        string
	Symbols       []string
	ReferenceType string
	IsTypeOnly    bool
}

type ReferenceRepo struct{ db *DB }

func NewReferenceRepo(db *DB) *ReferenceRepo { return &ReferenceRepo{db: db} }

func (r *ReferenceRepo) ReplaceForFileTx(tx *sql.Tx, fileID string, refs []Reference) error {
	if _, err := tx.Exec(`DELETE FROM refs WHERE from_file_id = ?`, fileID); err != nil {
		return err
	}
	for _, ref := range refs {
		symbolsJSON, _ := json.Marshal(ref.Symbols)
		if _, err := tx.Exec(`
			INSERT INTO refs (id, from_file_id, to_path, symbols_json, reference_type, is_type_only)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ref.ID, fileID, ref.ToPath, string(symbolsJSON), ref.ReferenceType, ref.IsTypeOnly); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReferenceRepo) ForRepository(repositoryID string) ([]Reference, error) {
	rows, err := r.db.Query(`
		SELECT r.id, r.from_file_id, r.to_path, r.symbols_json, r.reference_type, r.is_type_only
		FROM refs r
		JOIN indexed_files f ON f.id = r.from_file_id
		WHERE f.repository_id = ?`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []Reference
	for rows.Next() {
		var ref Reference
		var symbolsJSON string
		var isTypeOnly int
		if err := rows.Scan(&ref.ID, &ref.FromFileID, &ref.ToPath, &symbolsJSON, &ref.ReferenceType, &isTypeOnly); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(symbolsJSON), &ref.Symbols)
		ref.IsTypeOnly = isTypeOnly != 0
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// DependencyEdge is §3's derived Dependency edge entity.
type DependencyEdge struct {
	ID             string
	RepositoryID   string
	SourceFileID   string
	TargetFileID   string
	ReferenceType  string
}

type DependencyEdgeRepo struct{ db *DB }

func NewDependencyEdgeRepo(db *DB) *DependencyEdgeRepo { return &DependencyEdgeRepo{db: db} }

// ReplaceForRepositoryTx replaces the repository's whole materialized edge
// set, per §4.6 step 9.
func (r *DependencyEdgeRepo) ReplaceForRepositoryTx(tx *sql.Tx, repositoryID string, edges []DependencyEdge) error {
	if _, err := tx.Exec(`DELETE FROM dependency_edges WHERE repository_id = ?`, repositoryID); err != nil {
		return err
	}
	for _, e := range edges {
		if _, err := tx.Exec(`
			INSERT INTO dependency_edges (id, repository_id, source_file_id, target_file_id, reference_type)
			VALUES (?, ?, ?, ?, ?)`,
			e.ID, repositoryID, e.SourceFileID, e.TargetFileID, e.ReferenceType); err != nil {
			return err
		}
	}
	return nil
}

// AllForRepository loads every edge for a repository, the input to the
// Query Engine's in-memory dependency walk (§4.7.3).
func (r *DependencyEdgeRepo) AllForRepository(repositoryID string) ([]DependencyEdge, error) {
	rows, err := r.db.Query(`SELECT id, repository_id, source_file_id, target_file_id, reference_type FROM dependency_edges WHERE repository_id = ?`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []DependencyEdge
	for rows.Next() {
		var e DependencyEdge
		if err := rows.Scan(&e.ID, &e.RepositoryID, &e.SourceFileID, &e.TargetFileID, &e.ReferenceType); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
