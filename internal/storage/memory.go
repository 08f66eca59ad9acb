package storage

import (
	"database/sql"
	"encoding/json"
	"time"
)

// MemoryRecord is §3's append-only Decision/Failure/Pattern/Insight record.
type MemoryRecord struct {
	ID             string
	Kind           string // decision | failure | pattern | insight
	RepositoryID   *string
	RelatedFiles   []string
	Content        string
	Metadata       map[string]interface{}
	CreatedAt      time.Time
	SupersededBy   *string
}

type MemoryRepo struct{ db *DB }

func NewMemoryRepo(db *DB) *MemoryRepo { return &MemoryRepo{db: db} }

// Append inserts a new Memory record. Records are never mutated after
// insert (§4.9) except to set superseded_by on an older record.
func (r *MemoryRepo) Append(rec *MemoryRecord) error {
	relatedJSON, _ := json.Marshal(rec.RelatedFiles)
	metaJSON, _ := json.Marshal(rec.Metadata)
	_, err := r.db.Exec(`
		INSERT INTO memory_records (id, kind, repository_id, related_files_json, content, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.RepositoryID, string(relatedJSON), rec.Content, string(metaJSON))
	return err
}

// Supersede links an older record to the one that supersedes it, without
// otherwise mutating its content (§4.9: "deprecation is achieved by
// appending a superseding record and linking by id").
func (r *MemoryRepo) Supersede(oldID, newID string) error {
	_, err := r.db.Exec(`UPDATE memory_records SET superseded_by = ? WHERE id = ?`, newID, oldID)
	return err
}

func (r *MemoryRepo) Get(id string) (*MemoryRecord, error) {
	row := r.db.QueryRow(`SELECT id, kind, repository_id, related_files_json, content, metadata_json, created_at, superseded_by FROM memory_records WHERE id = ?`, id)
	return scanMemoryRecord(row)
}

func scanMemoryRecord(row *sql.Row) (*MemoryRecord, error) {
	var rec MemoryRecord
	var repoID, supersededBy sql.NullString
	var relatedJSON, metaJSON, createdAt string
	if err := row.Scan(&rec.ID, &rec.Kind, &repoID, &relatedJSON, &rec.Content, &metaJSON, &createdAt, &supersededBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if repoID.Valid {
		rec.RepositoryID = &repoID.String
	}
	if supersededBy.Valid {
		rec.SupersededBy = &supersededBy.String
	}
	json.Unmarshal([]byte(relatedJSON), &rec.RelatedFiles)
	json.Unmarshal([]byte(metaJSON), &rec.Metadata)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

// All returns every record of a kind, in insertion order, for Sync export.
func (r *MemoryRepo) All(kind string) ([]MemoryRecord, error) {
	rows, err := r.db.Query(`SELECT id, kind, repository_id, related_files_json, content, metadata_json, created_at, superseded_by FROM memory_records WHERE kind = ? ORDER BY rowid ASC`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []MemoryRecord
	for rows.Next() {
		var rec MemoryRecord
		var repoID, supersededBy sql.NullString
		var relatedJSON, metaJSON, createdAt string
		if err := rows.Scan(&rec.ID, &rec.Kind, &repoID, &relatedJSON, &rec.Content, &metaJSON, &createdAt, &supersededBy); err != nil {
			return nil, err
		}
		if repoID.Valid {
			rec.RepositoryID = &repoID.String
		}
		if supersededBy.Valid {
			rec.SupersededBy = &supersededBy.String
		}
		json.Unmarshal([]byte(relatedJSON), &rec.RelatedFiles)
		json.Unmarshal([]byte(metaJSON), &rec.Metadata)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
