package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"kotadb/internal/logging"
	"kotadb/internal/repoacq"
	"kotadb/internal/storage"
)

func newTestIndexer(t *testing.T) (*Indexer, *storage.DB, string) {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})

	db, err := storage.Open(filepath.Join(dir, "kotadb.db"), storage.Options{}, logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	acq := repoacq.New(logger)
	ix := New(db, acq, logger, Options{Workers: 1, PollInterval: 10 * time.Millisecond})
	return ix, db, dir
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunJob_IndexesNewFiles(t *testing.T) {
	ix, db, dir := newTestIndexer(t)
	tree := filepath.Join(dir, "repo")
	writeFile(t, tree, "src/add.ts", `export function add(a: number, b: number): number {
	return a + b
}
`)

	repoID := uuid.NewString()
	if err := storage.NewRepositoryRepo(db).Create(&storage.Repository{
		ID: repoID, FullName: "local/repo", LocalPath: &tree, DefaultRef: "",
	}); err != nil {
		t.Fatalf("creating repository: %v", err)
	}

	jobID, err := ix.Enqueue(repoID, "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := storage.NewIndexJobRepo(db).ClaimAnyPending(); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := ix.runJob(jobID, repoID); err != nil {
		t.Fatalf("runJob: %v", err)
	}

	job, err := storage.NewIndexJobRepo(db).Get(jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != "completed" {
		t.Fatalf("expected completed, got %s (error=%v)", job.Status, job.Error)
	}
	if job.Stats.FilesIndexed != 1 {
		t.Errorf("expected 1 file indexed, got %d", job.Stats.FilesIndexed)
	}
	if job.Stats.Symbols == 0 {
		t.Errorf("expected at least one symbol extracted")
	}
}

func TestRunJob_NoOpIsSkipped(t *testing.T) {
	ix, db, dir := newTestIndexer(t)
	tree := filepath.Join(dir, "repo")
	writeFile(t, tree, "src/add.ts", `export const x = 1`)

	repoID := uuid.NewString()
	storage.NewRepositoryRepo(db).Create(&storage.Repository{ID: repoID, FullName: "local/repo", LocalPath: &tree})

	job1, _ := ix.Enqueue(repoID, "")
	storage.NewIndexJobRepo(db).ClaimAnyPending()
	if err := ix.runJob(job1, repoID); err != nil {
		t.Fatalf("first runJob: %v", err)
	}

	job2, _ := ix.Enqueue(repoID, "")
	storage.NewIndexJobRepo(db).ClaimAnyPending()
	if err := ix.runJob(job2, repoID); err != nil {
		t.Fatalf("second runJob: %v", err)
	}

	got, err := storage.NewIndexJobRepo(db).Get(job2)
	if err != nil {
		t.Fatalf("get job2: %v", err)
	}
	if got.Status != "skipped" {
		t.Errorf("expected a re-index of unchanged files to skip, got %s", got.Status)
	}
}

func TestStartStop_GracefulShutdown(t *testing.T) {
	ix, _, _ := newTestIndexer(t)
	ix.Start(context.Background())
	ix.Stop()
}
