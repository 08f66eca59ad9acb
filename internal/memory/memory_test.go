package memory

import (
	"os"
	"path/filepath"
	"testing"

	"kotadb/internal/logging"
	"kotadb/internal/storage"
)

func newTestLayer(t *testing.T) *Layer {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})
	db, err := storage.Open(filepath.Join(dir, "kotadb.db"), storage.Options{}, logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestRecordDecision_RoundTrips(t *testing.T) {
	l := newTestLayer(t)

	rec, err := l.RecordDecision(Input{Content: "use sqlite for the store"})
	if err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if rec.Kind != KindDecisionRecord {
		t.Errorf("expected kind %q, got %q", KindDecisionRecord, rec.Kind)
	}

	hits, err := l.SearchDecisions("sqlite", 10)
	if err != nil {
		t.Fatalf("SearchDecisions: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != rec.ID {
		t.Fatalf("expected to find the recorded decision, got %+v", hits)
	}
}

func TestRecord_RejectsEmptyContent(t *testing.T) {
	l := newTestLayer(t)
	if _, err := l.RecordFailure(Input{Content: ""}); err == nil {
		t.Fatal("expected an error for empty content")
	}
}

func TestRecord_Supersede(t *testing.T) {
	l := newTestLayer(t)

	old, err := l.RecordPattern(Input{Content: "old pattern"})
	if err != nil {
		t.Fatalf("recording first pattern: %v", err)
	}
	next, err := l.RecordPattern(Input{Content: "new pattern", Supersedes: old.ID})
	if err != nil {
		t.Fatalf("recording superseding pattern: %v", err)
	}

	hits, err := l.SearchPatterns("old pattern", 10)
	if err != nil {
		t.Fatalf("SearchPatterns: %v", err)
	}
	if len(hits) != 1 || hits[0].SupersededBy == nil || *hits[0].SupersededBy != next.ID {
		t.Fatalf("expected the old record to be linked to its superseder, got %+v", hits)
	}
}

func TestSearch_RejectsUnknownKind(t *testing.T) {
	l := newTestLayer(t)
	if _, err := l.Search("not-a-kind", "term", 10); err == nil {
		t.Fatal("expected an error for an unknown record kind")
	}
}
