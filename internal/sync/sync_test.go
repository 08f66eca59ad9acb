package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"kotadb/internal/logging"
	"kotadb/internal/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})
	db, err := storage.Open(filepath.Join(dir, "kotadb.db"), storage.Options{}, logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRepository(t *testing.T, db *storage.DB) string {
	t.Helper()
	id := uuid.NewString()
	if err := storage.NewRepositoryRepo(db).Create(&storage.Repository{
		ID: id, FullName: "local/repo", DefaultRef: "main",
	}); err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	return id
}

func TestExportImport_RoundTrips(t *testing.T) {
	srcDB := newTestDB(t)
	repoID := seedRepository(t, srcDB)

	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})
	bundleDir := t.TempDir()

	result, err := NewExporter(srcDB, logger).Export(bundleDir, ExportOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.RowCounts["repositories"] != 1 {
		t.Fatalf("expected one exported repository row, got %d", result.RowCounts["repositories"])
	}

	dstDB := newTestDB(t)
	imported, err := NewImporter(dstDB, logger).Import(bundleDir, ImportOptions{Mode: ModeMerge})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	var repoTable *TableResult
	for i := range imported.Tables {
		if imported.Tables[i].Table == "repositories" {
			repoTable = &imported.Tables[i]
		}
	}
	if repoTable == nil || repoTable.RowsWritten != 1 {
		t.Fatalf("expected one repository row imported, got %+v", repoTable)
	}

	got, err := storage.NewRepositoryRepo(dstDB).GetByID(repoID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.FullName != "local/repo" {
		t.Fatalf("expected imported repository to round-trip, got %+v", got)
	}
}

func TestExport_SkipsUnchangedTablesUnlessForced(t *testing.T) {
	db := newTestDB(t)
	seedRepository(t, db)
	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})
	bundleDir := t.TempDir()
	exporter := NewExporter(db, logger)

	if _, err := exporter.Export(bundleDir, ExportOptions{}); err != nil {
		t.Fatalf("first export: %v", err)
	}

	second, err := exporter.Export(bundleDir, ExportOptions{})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	found := false
	for _, table := range second.TablesSkipped {
		if table == "repositories" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an unchanged export to skip the repositories table, got %+v", second)
	}

	third, err := exporter.Export(bundleDir, ExportOptions{Force: true})
	if err != nil {
		t.Fatalf("forced export: %v", err)
	}
	forcedWritten := false
	for _, table := range third.TablesWritten {
		if table == "repositories" {
			forcedWritten = true
		}
	}
	if !forcedWritten {
		t.Errorf("expected Force to re-export the repositories table, got %+v", third)
	}
}

func TestImport_ReplaceModeTruncatesFirst(t *testing.T) {
	db := newTestDB(t)
	first := seedRepository(t, db)

	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})
	bundleDir := t.TempDir()
	if _, err := NewExporter(db, logger).Export(bundleDir, ExportOptions{}); err != nil {
		t.Fatalf("export: %v", err)
	}

	dstDB := newTestDB(t)
	extra := seedRepository(t, dstDB)

	if _, err := NewImporter(dstDB, logger).Import(bundleDir, ImportOptions{Mode: ModeReplace}); err != nil {
		t.Fatalf("import: %v", err)
	}

	if got, _ := storage.NewRepositoryRepo(dstDB).GetByID(extra); got != nil {
		t.Errorf("expected replace-mode import to truncate pre-existing rows, but %s still exists", extra)
	}
	if got, _ := storage.NewRepositoryRepo(dstDB).GetByID(first); got == nil {
		t.Errorf("expected the imported repository %s to exist after replace import", first)
	}
}
