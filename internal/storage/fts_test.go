package storage

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedIndexedFile(t *testing.T, db *DB, repositoryID, path, snippet string) string {
	t.Helper()
	id := uuid.NewString()
	f := &IndexedFile{
		ID:             id,
		RepositoryID:   repositoryID,
		Path:           path,
		ContentHash:    "hash-" + path,
		Language:       "go",
		SizeBytes:      int64(len(snippet)),
		ContentSnippet: snippet,
		IndexedAt:      time.Now().UTC(),
	}
	files := NewIndexedFileRepo(db)
	if err := db.WithTx(func(tx *sql.Tx) error {
		return files.UpsertTx(tx, f)
	}); err != nil {
		t.Fatalf("seeding indexed file %s: %v", path, err)
	}
	return id
}

func seedRepository(t *testing.T, db *DB, fullName string) string {
	t.Helper()
	id := uuid.NewString()
	repo := &Repository{ID: id, FullName: fullName, DefaultRef: "main"}
	if err := NewRepositoryRepo(db).Create(repo); err != nil {
		t.Fatalf("seeding repository %s: %v", fullName, err)
	}
	return id
}

// TestSearchCode_TriggersKeepFTSInSyncWithIndexedFiles verifies the
// external-content FTS5 triggers (insert/delete) actually fire: an insert
// into indexed_files must be findable via SearchCode, and removing the row
// must remove it from the FTS index too (§4.7.1, §4.1 P2).
func TestSearchCode_TriggersKeepFTSInSyncWithIndexedFiles(t *testing.T) {
	db := setupTestDB(t)
	repoID := seedRepository(t, db, "org/repo")
	fileID := seedIndexedFile(t, db, repoID, "src/handler.go", "func handleRequest(w http.ResponseWriter) {}")

	hits, err := db.SearchCode("handleRequest", repoID, 10)
	if err != nil {
		t.Fatalf("SearchCode: %v", err)
	}
	if len(hits) != 1 || hits[0].FileID != fileID {
		t.Fatalf("expected one hit for the seeded file, got %+v", hits)
	}

	files := NewIndexedFileRepo(db)
	if err := db.WithTx(func(tx *sql.Tx) error {
		return files.DeleteTx(tx, fileID)
	}); err != nil {
		t.Fatalf("deleting indexed file: %v", err)
	}

	hits, err = db.SearchCode("handleRequest", repoID, 10)
	if err != nil {
		t.Fatalf("SearchCode after delete: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected the FTS delete trigger to remove the row, got %+v", hits)
	}
}

// TestSearchCode_UpdateTriggerReindexesChangedSnippet verifies the AFTER
// UPDATE trigger re-syncs content: searching for a term present only in
// the new snippet must succeed, and the old snippet's term must no longer
// match.
func TestSearchCode_UpdateTriggerReindexesChangedSnippet(t *testing.T) {
	db := setupTestDB(t)
	repoID := seedRepository(t, db, "org/repo")
	fileID := seedIndexedFile(t, db, repoID, "src/handler.go", "func originalImplementation() {}")

	files := NewIndexedFileRepo(db)
	updated := &IndexedFile{
		ID:             fileID,
		RepositoryID:   repoID,
		Path:           "src/handler.go",
		ContentHash:    "hash-v2",
		Language:       "go",
		SizeBytes:      32,
		ContentSnippet: "func revisedBehavior() {}",
		IndexedAt:      time.Now().UTC(),
	}
	if err := db.WithTx(func(tx *sql.Tx) error {
		return files.UpsertTx(tx, updated)
	}); err != nil {
		t.Fatalf("updating indexed file: %v", err)
	}

	if hits, err := db.SearchCode("revisedBehavior", repoID, 10); err != nil || len(hits) != 1 {
		t.Fatalf("expected the updated snippet to be searchable, got hits=%+v err=%v", hits, err)
	}
	if hits, err := db.SearchCode("originalImplementation", repoID, 10); err != nil || len(hits) != 0 {
		t.Fatalf("expected the stale snippet to no longer match, got hits=%+v err=%v", hits, err)
	}
}

// TestSearchCode_ExactPhraseRanksAboveSubstringOnlyMatch exercises the
// cascade's ranking contract (§4.7.1, P6): a file whose content is an exact
// phrase match must outrank one that only satisfies the later prefix stage
// (both words present but not adjacent).
func TestSearchCode_ExactPhraseRanksAboveSubstringOnlyMatch(t *testing.T) {
	db := setupTestDB(t)
	repoID := seedRepository(t, db, "org/repo")

	// "parse config" appears as a contiguous token pair here, satisfying the
	// exact-phrase cascade stage...
	exactID := seedIndexedFile(t, db, repoID, "a.go", "this file will parse config at startup")
	// ...but only as two separate, non-adjacent tokens here, so the phrase
	// stage skips it and only the bareword-AND prefix stage can find it.
	substringID := seedIndexedFile(t, db, repoID, "b.go", "we need to parse the given config object eventually")

	hits, err := db.SearchCode("parse config", repoID, 10)
	if err != nil {
		t.Fatalf("SearchCode: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].FileID != exactID {
		t.Fatalf("expected the exact-phrase match to rank first, got %+v", hits)
	}
	foundSubstring := false
	for _, h := range hits {
		if h.FileID == substringID {
			foundSubstring = true
		}
	}
	if !foundSubstring {
		t.Fatalf("expected the prefix-stage bareword match to still surface the non-adjacent file, got %+v", hits)
	}
}

func TestSearchCode_RepositoryScopeIsRespected(t *testing.T) {
	db := setupTestDB(t)
	repoA := seedRepository(t, db, "org/a")
	repoB := seedRepository(t, db, "org/b")
	seedIndexedFile(t, db, repoA, "a.go", "shared marker token")
	seedIndexedFile(t, db, repoB, "b.go", "shared marker token")

	hits, err := db.SearchCode("marker", repoA, 10)
	if err != nil {
		t.Fatalf("SearchCode: %v", err)
	}
	for _, h := range hits {
		if h.RepositoryID != repoA {
			t.Fatalf("expected only repoA's files, got a hit from %s", h.RepositoryID)
		}
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly one scoped hit, got %+v", hits)
	}
}
