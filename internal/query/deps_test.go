package query

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"kotadb/internal/logging"
	"kotadb/internal/storage"
)

func setupTestEngine(t *testing.T) (*Engine, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewLogger(logging.Config{Output: io.Discard, Level: logging.LevelError})
	db, err := storage.Open(filepath.Join(dir, "kotadb.db"), storage.Options{}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), db
}

func seedRepo(t *testing.T, db *storage.DB) string {
	t.Helper()
	id := uuid.NewString()
	if err := storage.NewRepositoryRepo(db).Create(&storage.Repository{ID: id, FullName: "org/repo", DefaultRef: "main"}); err != nil {
		t.Fatalf("seeding repository: %v", err)
	}
	return id
}

func seedFile(t *testing.T, db *storage.DB, repositoryID, path string) string {
	t.Helper()
	id := uuid.NewString()
	f := &storage.IndexedFile{
		ID:           id,
		RepositoryID: repositoryID,
		Path:         path,
		ContentHash:  "hash-" + path,
		Language:     "go",
		IndexedAt:    time.Now().UTC(),
	}
	files := storage.NewIndexedFileRepo(db)
	if err := db.WithTx(func(tx *sql.Tx) error {
		return files.UpsertTx(tx, f)
	}); err != nil {
		t.Fatalf("seeding file %s: %v", path, err)
	}
	return id
}

func seedEdges(t *testing.T, db *storage.DB, repositoryID string, edges []storage.DependencyEdge) {
	t.Helper()
	if err := db.WithTx(func(tx *sql.Tx) error {
		return storage.NewDependencyEdgeRepo(db).ReplaceForRepositoryTx(tx, repositoryID, edges)
	}); err != nil {
		t.Fatalf("seeding edges: %v", err)
	}
}

// TestSearchDependencies_CycleDoesNotInfiniteLoop walks a dependency cycle
// (a -> b -> c -> a) and requires the traversal to terminate and report each
// node once per distinct route rather than looping forever; the closing edge
// c -> a is not followed because a is already on the path (S2).
func TestSearchDependencies_CycleDoesNotInfiniteLoop(t *testing.T) {
	e, db := setupTestEngine(t)
	repoID := seedRepo(t, db)
	aID := seedFile(t, db, repoID, "a.go")
	bID := seedFile(t, db, repoID, "b.go")
	cID := seedFile(t, db, repoID, "c.go")

	seedEdges(t, db, repoID, []storage.DependencyEdge{
		{ID: uuid.NewString(), SourceFileID: aID, TargetFileID: bID, ReferenceType: "import"},
		{ID: uuid.NewString(), SourceFileID: bID, TargetFileID: cID, ReferenceType: "import"},
		{ID: uuid.NewString(), SourceFileID: cID, TargetFileID: aID, ReferenceType: "import"},
	})

	nodes, err := e.SearchDependencies(repoID, "a.go", DirectionForward, 5, true, nil)
	if err != nil {
		t.Fatalf("SearchDependencies: %v", err)
	}

	want := map[string]int{"b.go": 1, "c.go": 2}
	got := make(map[string]int, len(nodes))
	for _, n := range nodes {
		got[n.Path] = n.Depth
	}
	for path, depth := range want {
		if got[path] != depth {
			t.Errorf("expected %s at depth %d, got %d (nodes=%+v)", path, depth, got[path], nodes)
		}
	}
	if len(nodes) != len(want) {
		t.Fatalf("expected exactly %d nodes with the edge back to a.go not followed, got %d: %+v", len(want), len(nodes), nodes)
	}
}

// TestSearchDependencies_DepthClampedToFive verifies a requested depth above
// the spec's cap of 5 is silently clamped rather than walking further.
func TestSearchDependencies_DepthClampedToFive(t *testing.T) {
	e, db := setupTestEngine(t)
	repoID := seedRepo(t, db)

	const chainLength = 8
	ids := make([]string, chainLength)
	for i := range ids {
		ids[i] = seedFile(t, db, repoID, filepath.Join("f", string(rune('a'+i))+".go"))
	}
	edges := make([]storage.DependencyEdge, 0, chainLength-1)
	for i := 0; i < chainLength-1; i++ {
		edges = append(edges, storage.DependencyEdge{ID: uuid.NewString(), SourceFileID: ids[i], TargetFileID: ids[i+1], ReferenceType: "import"})
	}
	seedEdges(t, db, repoID, edges)

	nodes, err := e.SearchDependencies(repoID, "f/a.go", DirectionForward, 100, true, nil)
	if err != nil {
		t.Fatalf("SearchDependencies: %v", err)
	}
	maxDepth := 0
	for _, n := range nodes {
		if n.Depth > maxDepth {
			maxDepth = n.Depth
		}
	}
	if maxDepth != 5 {
		t.Fatalf("expected depth clamped to 5, got max depth %d", maxDepth)
	}
}

// TestSearchDependencies_ReverseDirectionFollowsIncomingEdges verifies
// DirectionReverse reports what depends on a file rather than what it
// depends on.
func TestSearchDependencies_ReverseDirectionFollowsIncomingEdges(t *testing.T) {
	e, db := setupTestEngine(t)
	repoID := seedRepo(t, db)
	aID := seedFile(t, db, repoID, "a.go")
	bID := seedFile(t, db, repoID, "b.go")

	seedEdges(t, db, repoID, []storage.DependencyEdge{
		{ID: uuid.NewString(), SourceFileID: aID, TargetFileID: bID, ReferenceType: "import"},
	})

	nodes, err := e.SearchDependencies(repoID, "b.go", DirectionReverse, 5, true, nil)
	if err != nil {
		t.Fatalf("SearchDependencies: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Path != "a.go" {
		t.Fatalf("expected a.go as the sole reverse dependent of b.go, got %+v", nodes)
	}
}

// TestSearchDependencies_ReferenceTypeFilterExcludesOtherEdges verifies an
// explicit referenceTypes filter drops edges of other types from the walk
// rather than just annotating them.
func TestSearchDependencies_ReferenceTypeFilterExcludesOtherEdges(t *testing.T) {
	e, db := setupTestEngine(t)
	repoID := seedRepo(t, db)
	aID := seedFile(t, db, repoID, "a.go")
	bID := seedFile(t, db, repoID, "b.go")
	cID := seedFile(t, db, repoID, "c.go")

	seedEdges(t, db, repoID, []storage.DependencyEdge{
		{ID: uuid.NewString(), SourceFileID: aID, TargetFileID: bID, ReferenceType: "import"},
		{ID: uuid.NewString(), SourceFileID: aID, TargetFileID: cID, ReferenceType: "test_only"},
	})

	nodes, err := e.SearchDependencies(repoID, "a.go", DirectionForward, 5, true, []string{"import"})
	if err != nil {
		t.Fatalf("SearchDependencies: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Path != "b.go" {
		t.Fatalf("expected only the import-typed edge to be followed, got %+v", nodes)
	}
}

// TestSearchDependencies_IncludeTestsFalseExcludesTestPaths verifies
// includeTests=false drops nodes scanner.IsTestPath considers test files,
// while the walk still continues through them to reach further nodes.
func TestSearchDependencies_IncludeTestsFalseExcludesTestPaths(t *testing.T) {
	e, db := setupTestEngine(t)
	repoID := seedRepo(t, db)
	aID := seedFile(t, db, repoID, "a.go")
	testID := seedFile(t, db, repoID, "a.test.go")
	bID := seedFile(t, db, repoID, "b.go")

	seedEdges(t, db, repoID, []storage.DependencyEdge{
		{ID: uuid.NewString(), SourceFileID: aID, TargetFileID: testID, ReferenceType: "import"},
		{ID: uuid.NewString(), SourceFileID: testID, TargetFileID: bID, ReferenceType: "import"},
	})

	nodes, err := e.SearchDependencies(repoID, "a.go", DirectionForward, 5, false, nil)
	if err != nil {
		t.Fatalf("SearchDependencies: %v", err)
	}
	for _, n := range nodes {
		if n.Path == "a.test.go" {
			t.Fatalf("expected test paths to be excluded from results, got %+v", nodes)
		}
	}
	found := false
	for _, n := range nodes {
		if n.Path == "b.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the walk to continue through the excluded test file to reach b.go, got %+v", nodes)
	}
}
