package storage

import (
	"database/sql"
	"time"
)

// ApiKey is §3's ApiKey entity. In purely local mode (§4.8.2), the server
// synthesizes a single "team" key rather than reading this table.
type ApiKey struct {
	KeyID      string
	Tier       string
	SecretHash string
	Enabled    bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

type ApiKeyRepo struct{ db *DB }

func NewApiKeyRepo(db *DB) *ApiKeyRepo { return &ApiKeyRepo{db: db} }

func (r *ApiKeyRepo) Create(key *ApiKey) error {
	_, err := r.db.Exec(`
		INSERT INTO api_keys (key_id, tier, secret_hash, enabled)
		VALUES (?, ?, ?, ?)`,
		key.KeyID, key.Tier, key.SecretHash, key.Enabled)
	return err
}

func (r *ApiKeyRepo) GetByID(keyID string) (*ApiKey, error) {
	row := r.db.QueryRow(`SELECT key_id, tier, secret_hash, enabled, created_at, last_used_at, revoked_at FROM api_keys WHERE key_id = ?`, keyID)
	var k ApiKey
	var createdAt string
	var lastUsed, revoked sql.NullString
	var enabled int
	if err := row.Scan(&k.KeyID, &k.Tier, &k.SecretHash, &enabled, &createdAt, &lastUsed, &revoked); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	k.Enabled = enabled != 0
	k.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if lastUsed.Valid {
		t, _ := time.Parse(time.RFC3339, lastUsed.String)
		k.LastUsedAt = &t
	}
	if revoked.Valid {
		t, _ := time.Parse(time.RFC3339, revoked.String)
		k.RevokedAt = &t
	}
	return &k, nil
}

func (r *ApiKeyRepo) TouchLastUsed(keyID string, at time.Time) error {
	_, err := r.db.Exec(`UPDATE api_keys SET last_used_at = ? WHERE key_id = ?`, at.UTC().Format(time.RFC3339), keyID)
	return err
}

func (r *ApiKeyRepo) Revoke(keyID string, at time.Time) error {
	_, err := r.db.Exec(`UPDATE api_keys SET revoked_at = ? WHERE key_id = ?`, at.UTC().Format(time.RFC3339), keyID)
	return err
}

func (r *ApiKeyRepo) List() ([]ApiKey, error) {
	rows, err := r.db.Query(`SELECT key_id, tier, secret_hash, enabled, created_at, last_used_at, revoked_at FROM api_keys`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []ApiKey
	for rows.Next() {
		var k ApiKey
		var createdAt string
		var lastUsed, revoked sql.NullString
		var enabled int
		if err := rows.Scan(&k.KeyID, &k.Tier, &k.SecretHash, &enabled, &createdAt, &lastUsed, &revoked); err != nil {
			return nil, err
		}
		k.Enabled = enabled != 0
		k.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if lastUsed.Valid {
			t, _ := time.Parse(time.RFC3339, lastUsed.String)
			k.LastUsedAt = &t
		}
		if revoked.Valid {
			t, _ := time.Parse(time.RFC3339, revoked.String)
			k.RevokedAt = &t
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
