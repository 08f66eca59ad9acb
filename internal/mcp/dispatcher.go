package mcp

import (
	"kotadb/internal/indexer"
	"kotadb/internal/memory"
	"kotadb/internal/query"
	"kotadb/internal/storage"
	"kotadb/internal/sync"
)

// Dispatcher holds the stateless, already-concurrency-safe handles every
// tool call is routed through. It carries no per-request mutable state
// (unlike the teacher's roots/pending-request bookkeeping, dropped per
// SPEC_FULL.md's §E scope), so one Dispatcher is safe to share across
// every HTTP request and the stdio loop alike.
type Dispatcher struct {
	engine   *query.Engine
	indexer  *indexer.Indexer // nil if indexing is disabled on this server
	jobs     *storage.IndexJobRepo
	memory   *memory.Layer
	exporter *sync.Exporter
	importer *sync.Importer

	handlers map[string]ToolHandler
}

// New builds a Dispatcher wired to the already-constructed engine, indexer
// (nil if disabled), and store.
func New(engine *query.Engine, ix *indexer.Indexer, db *storage.DB, mem *memory.Layer, exporter *sync.Exporter, importer *sync.Importer) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		indexer:  ix,
		jobs:     storage.NewIndexJobRepo(db),
		memory:   mem,
		exporter: exporter,
		importer: importer,
	}
	d.handlers = map[string]ToolHandler{
		"search_code":           toolSearchCode,
		"list_recent_files":     toolListRecentFiles,
		"search_dependencies":   toolSearchDependencies,
		"analyze_change_impact": toolAnalyzeChangeImpact,
		"index_repository":      toolIndexRepository,
		"get_job_status":        toolGetJobStatus,
		"record_decision":       toolRecord(memory.KindDecisionRecord),
		"record_failure":        toolRecord(memory.KindFailureRecord),
		"record_pattern":        toolRecord(memory.KindPatternRecord),
		"record_insight":        toolRecord(memory.KindInsightRecord),
		"search_decisions":      toolSearchMemory(memory.KindDecisionRecord),
		"search_failures":       toolSearchMemory(memory.KindFailureRecord),
		"search_patterns":       toolSearchMemory(memory.KindPatternRecord),
		"search_insights":       toolSearchMemory(memory.KindInsightRecord),
		"validate_output":       toolValidateOutput,
		"export_bundle":         toolExportBundle,
		"import_bundle":         toolImportBundle,
	}
	return d
}

// Tools returns the fixed tool definitions for tools/list.
func (d *Dispatcher) Tools() []Tool {
	return toolDefinitions
}

// Call runs the named tool against already-decoded JSON arguments.
func (d *Dispatcher) Call(name string, args map[string]interface{}) (interface{}, error) {
	handler, ok := d.handlers[name]
	if !ok {
		return nil, unknownToolError(name)
	}
	return handler(d, args)
}
