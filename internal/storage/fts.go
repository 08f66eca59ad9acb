package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// createFTSSchema builds the two external-content FTS5 projections KotaDB
// needs: one over indexed_files (search_code, §4.7.1) and one over
// memory_records (search_decisions/search_failures/..., §4.9). Both follow
// the same external-content-plus-sync-trigger shape.
func createFTSSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS indexed_files_fts USING fts5(
			path, content_snippet,
			content='indexed_files', content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS indexed_files_fts_ai AFTER INSERT ON indexed_files BEGIN
			INSERT INTO indexed_files_fts(rowid, path, content_snippet) VALUES (new.rowid, new.path, new.content_snippet);
		END`,
		`CREATE TRIGGER IF NOT EXISTS indexed_files_fts_ad AFTER DELETE ON indexed_files BEGIN
			INSERT INTO indexed_files_fts(indexed_files_fts, rowid, path, content_snippet) VALUES ('delete', old.rowid, old.path, old.content_snippet);
		END`,
		`CREATE TRIGGER IF NOT EXISTS indexed_files_fts_au AFTER UPDATE ON indexed_files BEGIN
			INSERT INTO indexed_files_fts(indexed_files_fts, rowid, path, content_snippet) VALUES ('delete', old.rowid, old.path, old.content_snippet);
			INSERT INTO indexed_files_fts(rowid, path, content_snippet) VALUES (new.rowid, new.path, new.content_snippet);
		END`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_records_fts USING fts5(
			content,
			content='memory_records', content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS memory_records_fts_ai AFTER INSERT ON memory_records BEGIN
			INSERT INTO memory_records_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_records_fts_ad AFTER DELETE ON memory_records BEGIN
			INSERT INTO memory_records_fts(memory_records_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_records_fts_au AFTER UPDATE ON memory_records BEGIN
			INSERT INTO memory_records_fts(memory_records_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
			INSERT INTO memory_records_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return fmt.Errorf("fts schema: %w", err)
		}
	}
	return nil
}

// escapeFTS5Query neutralizes FTS5 metacharacters so user-supplied search
// terms can be safely embedded in a MATCH expression (§4.7.1).
func escapeFTS5Query(q string) string {
	q = strings.ReplaceAll(q, `"`, `""`)
	return q
}

// CodeSearchHit is one result row from SearchCode.
type CodeSearchHit struct {
	FileID         string
	RepositoryID   string
	Path           string
	Snippet        string
	Rank           float64
}

// SearchCode implements §4.7.1's exact-phrase -> prefix -> substring
// cascade over indexed_files_fts, ranked by bm25(). Lower bm25 scores are
// more relevant; results are deduplicated by file id across cascade stages.
func (db *DB) SearchCode(term string, repositoryID string, limit int) ([]CodeSearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	seen := make(map[string]bool)
	var hits []CodeSearchHit

	phrase := `"` + escapeFTS5Query(term) + `"`
	if more, err := db.ftsSearch(phrase, term, repositoryID, limit, 1.0, seen); err != nil {
		return nil, err
	} else {
		hits = append(hits, more...)
	}

	if len(hits) < limit {
		prefix := escapeFTS5Query(term) + "*"
		if more, err := db.ftsSearch(prefix, term, repositoryID, limit-len(hits), 0.8, seen); err != nil {
			return nil, err
		} else {
			hits = append(hits, more...)
		}
	}

	if len(hits) < limit {
		if more, err := db.likeSearch(term, repositoryID, limit-len(hits), seen); err != nil {
			return nil, err
		} else {
			hits = append(hits, more...)
		}
	}

	return hits, nil
}

func (db *DB) ftsSearch(matchExpr, highlightTerm, repositoryID string, limit int, rank float64, seen map[string]bool) ([]CodeSearchHit, error) {
	query := `
		SELECT f.id, f.repository_id, f.path, f.content_snippet
		FROM indexed_files_fts
		JOIN indexed_files f ON f.rowid = indexed_files_fts.rowid
		WHERE indexed_files_fts MATCH ?` + repoFilter(repositoryID) + `
		ORDER BY bm25(indexed_files_fts, 1.0, 0.5) ASC
		LIMIT ?`
	args := []interface{}{matchExpr}
	if repositoryID != "" {
		args = append(args, repositoryID)
	}
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, nil // malformed MATCH expression: fall through to next cascade stage
	}
	defer rows.Close()

	var hits []CodeSearchHit
	for rows.Next() {
		var h CodeSearchHit
		var snippet sql.NullString
		if err := rows.Scan(&h.FileID, &h.RepositoryID, &h.Path, &snippet); err != nil {
			return nil, err
		}
		if seen[h.FileID] {
			continue
		}
		seen[h.FileID] = true
		h.Snippet = highlight(snippet.String, highlightTerm)
		h.Rank = rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (db *DB) likeSearch(term, repositoryID string, limit int, seen map[string]bool) ([]CodeSearchHit, error) {
	like := "%" + term + "%"
	query := `
		SELECT f.id, f.repository_id, f.path, f.content_snippet
		FROM indexed_files f
		WHERE f.content_snippet LIKE ?` + repoFilter(repositoryID) + `
		LIMIT ?`
	args := []interface{}{like}
	if repositoryID != "" {
		args = append(args, repositoryID)
	}
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []CodeSearchHit
	for rows.Next() {
		var h CodeSearchHit
		var snippet sql.NullString
		if err := rows.Scan(&h.FileID, &h.RepositoryID, &h.Path, &snippet); err != nil {
			return nil, err
		}
		if seen[h.FileID] {
			continue
		}
		seen[h.FileID] = true
		h.Snippet = highlight(snippet.String, term)
		h.Rank = 0.5
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func repoFilter(repositoryID string) string {
	if repositoryID == "" {
		return ""
	}
	return " AND f.repository_id = ?"
}

// highlight bounds the snippet to ~32 tokens and wraps the first occurrence
// of term in <mark> delimiters, per §4.7.1.
func highlight(snippet, term string) string {
	const maxTokens = 32
	tokens := strings.Fields(snippet)
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	bounded := strings.Join(tokens, " ")
	if term == "" {
		return bounded
	}
	lower := strings.ToLower(bounded)
	idx := strings.Index(lower, strings.ToLower(term))
	if idx < 0 {
		return bounded
	}
	return bounded[:idx] + "<mark>" + bounded[idx:idx+len(term)] + "</mark>" + bounded[idx+len(term):]
}

// SearchMemory runs the same exact->prefix->substring cascade as SearchCode
// but over memory_records_fts, used by search_decisions/search_failures/
// search_patterns/search_insights (§4.9).
func (db *DB) SearchMemory(kind, term string, limit int) ([]MemoryHit, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	seen := make(map[string]bool)
	var hits []MemoryHit

	phrase := `"` + escapeFTS5Query(term) + `"`
	more, err := db.memoryFTSSearch(phrase, kind, limit, seen)
	if err != nil {
		return nil, err
	}
	hits = append(hits, more...)

	if len(hits) < limit {
		prefix := escapeFTS5Query(term) + "*"
		more, err := db.memoryFTSSearch(prefix, kind, limit-len(hits), seen)
		if err != nil {
			return nil, err
		}
		hits = append(hits, more...)
	}

	if len(hits) < limit {
		more, err := db.memoryLikeSearch(term, kind, limit-len(hits), seen)
		if err != nil {
			return nil, err
		}
		hits = append(hits, more...)
	}

	return hits, nil
}

// MemoryHit is one result row from SearchMemory.
type MemoryHit struct {
	ID      string
	Kind    string
	Content string
}

func (db *DB) memoryFTSSearch(matchExpr, kind string, limit int, seen map[string]bool) ([]MemoryHit, error) {
	query := `
		SELECT m.id, m.kind, m.content
		FROM memory_records_fts
		JOIN memory_records m ON m.rowid = memory_records_fts.rowid
		WHERE memory_records_fts MATCH ? AND m.kind = ?
		ORDER BY bm25(memory_records_fts) ASC
		LIMIT ?`
	rows, err := db.Query(query, matchExpr, kind, limit)
	if err != nil {
		return nil, nil
	}
	defer rows.Close()

	var hits []MemoryHit
	for rows.Next() {
		var h MemoryHit
		if err := rows.Scan(&h.ID, &h.Kind, &h.Content); err != nil {
			return nil, err
		}
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (db *DB) memoryLikeSearch(term, kind string, limit int, seen map[string]bool) ([]MemoryHit, error) {
	rows, err := db.Query(`
		SELECT id, kind, content FROM memory_records
		WHERE content LIKE ? AND kind = ?
		LIMIT ?`, "%"+term+"%", kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []MemoryHit
	for rows.Next() {
		var h MemoryHit
		if err := rows.Scan(&h.ID, &h.Kind, &h.Content); err != nil {
			return nil, err
		}
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
