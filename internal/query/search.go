// Package query implements the Query Engine (§4.7): code search, recent
// files, dependency traversal, and change-impact analysis, all read-only
// operations over the Store.
package query

import (
	"kotadb/internal/storage"
)

// Engine holds the repositories the Query Engine reads from.
type Engine struct {
	files *storage.IndexedFileRepo
	edges *storage.DependencyEdgeRepo
	db    *storage.DB
}

func New(db *storage.DB) *Engine {
	return &Engine{
		files: storage.NewIndexedFileRepo(db),
		edges: storage.NewDependencyEdgeRepo(db),
		db:    db,
	}
}

// CodeSearchHit mirrors storage.CodeSearchHit for the tool-facing shape
// (§4.7.1): path, repository_id, snippet.
type CodeSearchHit = storage.CodeSearchHit

// SearchCode implements search_code(term, {repository?, limit<=100}).
// Escaping, phrase-wrapping, BM25 ordering, and the ≤100 clamp all live in
// storage.SearchCode, which this delegates to directly — the Query Engine
// adds no further business logic on top of the Store's own FTS cascade.
func (e *Engine) SearchCode(term, repositoryID string, limit int) ([]CodeSearchHit, error) {
	return e.db.SearchCode(term, repositoryID, limit)
}
