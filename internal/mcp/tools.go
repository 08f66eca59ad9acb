package mcp

// Tool describes one entry in tools/list, in the teacher's
// Tool{Name, Description, InputSchema} shape.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolHandler executes one tool call against already-decoded arguments.
type ToolHandler func(d *Dispatcher, args map[string]interface{}) (interface{}, error)

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

// toolDefinitions is the fixed, ordered tool set KotaDB exposes under
// tools/list (§E).
var toolDefinitions = []Tool{
	{
		Name:        "search_code",
		Description: "Full-text search over indexed source files, ranked by relevance",
		InputSchema: objectSchema(map[string]interface{}{
			"term":       stringProp("search term"),
			"repository": stringProp("repository id to scope the search to"),
			"limit":      intProp("maximum number of results (default 20)"),
		}, "term"),
	},
	{
		Name:        "list_recent_files",
		Description: "List the most recently indexed files in a repository",
		InputSchema: objectSchema(map[string]interface{}{
			"repository": stringProp("repository id"),
			"limit":      intProp("maximum number of results (default 20)"),
		}, "repository"),
	},
	{
		Name:        "search_dependencies",
		Description: "Walk the dependency graph from a file, forward or reverse, bounded by depth",
		InputSchema: objectSchema(map[string]interface{}{
			"repository":      stringProp("repository id"),
			"file_path":       stringProp("path of the file to walk from"),
			"direction":       map[string]interface{}{"type": "string", "enum": []string{"forward", "reverse"}, "default": "forward"},
			"depth":           intProp("maximum traversal depth (default 3)"),
			"include_tests":   boolProp("include test files in the results (default true)"),
			"reference_types": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		}, "repository", "file_path"),
	},
	{
		Name:        "analyze_change_impact",
		Description: "Estimate the risk and blast radius of a proposed file change",
		InputSchema: objectSchema(map[string]interface{}{
			"repository":       stringProp("repository id"),
			"change_type":      map[string]interface{}{"type": "string", "enum": []string{"add", "modify", "delete"}},
			"description":      stringProp("human description of the change"),
			"files_to_modify":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"files_to_create":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"files_to_delete":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"breaking_changes": boolProp("whether the author has flagged this change as breaking"),
		}, "repository"),
	},
	{
		Name:        "index_repository",
		Description: "Enqueue an index job for a repository at a ref",
		InputSchema: objectSchema(map[string]interface{}{
			"repository_id": stringProp("repository id"),
			"ref":           stringProp("ref to index (default HEAD)"),
		}, "repository_id"),
	},
	{
		Name:        "get_job_status",
		Description: "Get an index job's status and stats",
		InputSchema: objectSchema(map[string]interface{}{
			"job_id": stringProp("job id returned by index_repository"),
		}, "job_id"),
	},
	{
		Name:        "record_decision",
		Description: "Append a decision memory record",
		InputSchema: memoryInputSchema(),
	},
	{
		Name:        "record_failure",
		Description: "Append a failure memory record",
		InputSchema: memoryInputSchema(),
	},
	{
		Name:        "record_pattern",
		Description: "Append a pattern memory record",
		InputSchema: memoryInputSchema(),
	},
	{
		Name:        "record_insight",
		Description: "Append an insight memory record",
		InputSchema: memoryInputSchema(),
	},
	{
		Name:        "search_decisions",
		Description: "Full-text search over decision memory records",
		InputSchema: memorySearchSchema(),
	},
	{
		Name:        "search_failures",
		Description: "Full-text search over failure memory records",
		InputSchema: memorySearchSchema(),
	},
	{
		Name:        "search_patterns",
		Description: "Full-text search over pattern memory records",
		InputSchema: memorySearchSchema(),
	},
	{
		Name:        "search_insights",
		Description: "Full-text search over insight memory records",
		InputSchema: memorySearchSchema(),
	},
	{
		Name:        "validate_output",
		Description: "Validate arbitrary JSON against a supplied JSON-compatible schema",
		InputSchema: objectSchema(map[string]interface{}{
			"data":   map[string]interface{}{"description": "the value to validate"},
			"schema": objectSchema(map[string]interface{}{}),
		}, "data", "schema"),
	},
	{
		Name:        "export_bundle",
		Description: "Export the store (or one repository) to a deterministic JSONL bundle",
		InputSchema: objectSchema(map[string]interface{}{
			"directory":  stringProp("destination directory for the bundle"),
			"repository": stringProp("repository id to scope the export to (default: whole store)"),
			"force":      boolProp("re-export tables even if unchanged since the last export"),
			"gzip":       boolProp("gzip-compress each table file"),
		}, "directory"),
	},
	{
		Name:        "import_bundle",
		Description: "Import a previously exported JSONL bundle",
		InputSchema: objectSchema(map[string]interface{}{
			"directory": stringProp("bundle directory produced by export_bundle"),
			"mode":      map[string]interface{}{"type": "string", "enum": []string{"merge", "replace"}, "default": "merge"},
		}, "directory"),
	},
}

func memoryInputSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"repository_id": stringProp("repository id this record is scoped to, if any"),
		"related_files":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"content":        stringProp("the record's content"),
		"metadata":       objectSchema(map[string]interface{}{}),
		"supersedes":     stringProp("id of a prior record this one supersedes"),
	}, "content")
}

func memorySearchSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"term":  stringProp("search term"),
		"limit": intProp("maximum number of results (default 10)"),
	}, "term")
}
