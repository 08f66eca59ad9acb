package mcp

import (
	"fmt"

	"kotadb/internal/jsonschema"
	"kotadb/internal/kotaerr"
	"kotadb/internal/memory"
	"kotadb/internal/query"
	"kotadb/internal/sync"
)

func unknownToolError(name string) error {
	return kotaerr.New(kotaerr.InvalidArgument, fmt.Sprintf("unknown tool: %s", name))
}

func requiredString(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", kotaerr.New(kotaerr.InvalidArgument, fmt.Sprintf("%q is required", name))
	}
	return v, nil
}

func optString(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

func optInt(args map[string]interface{}, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}

func optBool(args map[string]interface{}, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}

func stringSlice(args map[string]interface{}, name string) []string {
	raw, ok := args[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toolSearchCode(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	term, err := requiredString(args, "term")
	if err != nil {
		return nil, err
	}
	hits, err := d.engine.SearchCode(term, optString(args, "repository"), optInt(args, "limit", 20))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"results": hits}, nil
}

func toolListRecentFiles(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	repository, err := requiredString(args, "repository")
	if err != nil {
		return nil, err
	}
	files, err := d.engine.ListRecentFiles(repository, optInt(args, "limit", 20))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"files": files}, nil
}

func toolSearchDependencies(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	repository, err := requiredString(args, "repository")
	if err != nil {
		return nil, err
	}
	filePath, err := requiredString(args, "file_path")
	if err != nil {
		return nil, err
	}
	dir := query.DirectionForward
	if optString(args, "direction") == string(query.DirectionReverse) {
		dir = query.DirectionReverse
	}
	nodes, err := d.engine.SearchDependencies(repository, filePath, dir, optInt(args, "depth", 3), optBool(args, "include_tests", true), stringSlice(args, "reference_types"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"nodes": nodes}, nil
}

func toolAnalyzeChangeImpact(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	repository, err := requiredString(args, "repository")
	if err != nil {
		return nil, err
	}
	change := query.ImpactChange{
		ChangeType:      optString(args, "change_type"),
		Description:     optString(args, "description"),
		FilesToModify:   stringSlice(args, "files_to_modify"),
		FilesToCreate:   stringSlice(args, "files_to_create"),
		FilesToDelete:   stringSlice(args, "files_to_delete"),
		BreakingChanges: optBool(args, "breaking_changes", false),
	}
	report, err := d.engine.AnalyzeChangeImpact(repository, change)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func toolIndexRepository(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	if d.indexer == nil {
		return nil, kotaerr.New(kotaerr.InvalidArgument, "indexing is not enabled on this server")
	}
	repositoryID, err := requiredString(args, "repository_id")
	if err != nil {
		return nil, err
	}
	ref := optString(args, "ref")
	if ref == "" {
		ref = "HEAD"
	}
	jobID, err := d.indexer.Enqueue(repositoryID, ref)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"job_id": jobID, "status": "pending"}, nil
}

func toolGetJobStatus(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	jobID, err := requiredString(args, "job_id")
	if err != nil {
		return nil, err
	}
	job, err := d.jobs.Get(jobID)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "looking up job", err)
	}
	if job == nil {
		return nil, kotaerr.New(kotaerr.NotFound, "job not found")
	}
	return job, nil
}

func toolRecord(kind string) ToolHandler {
	return func(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
		content, err := requiredString(args, "content")
		if err != nil {
			return nil, err
		}
		in := memory.Input{
			RelatedFiles: stringSlice(args, "related_files"),
			Content:      content,
			Supersedes:   optString(args, "supersedes"),
		}
		if repo := optString(args, "repository_id"); repo != "" {
			in.RepositoryID = &repo
		}
		if meta, ok := args["metadata"].(map[string]interface{}); ok {
			in.Metadata = meta
		}
		record, err := d.memory.Record(kind, in)
		if err != nil {
			return nil, err
		}
		return record, nil
	}
}

func toolSearchMemory(kind string) ToolHandler {
	return func(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
		term, err := requiredString(args, "term")
		if err != nil {
			return nil, err
		}
		records, err := d.memory.Search(kind, term, optInt(args, "limit", 10))
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"records": records}, nil
	}
}

func toolValidateOutput(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	schema, _ := args["schema"].(map[string]interface{})
	errs := jsonschema.Validate(args["data"], schema, "$")
	return map[string]interface{}{"valid": len(errs) == 0, "errors": errs}, nil
}

func toolExportBundle(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	directory, err := requiredString(args, "directory")
	if err != nil {
		return nil, err
	}
	result, err := d.exporter.Export(directory, sync.ExportOptions{
		RepositoryID: optString(args, "repository"),
		Force:        optBool(args, "force", false),
		Gzip:         optBool(args, "gzip", false),
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func toolImportBundle(d *Dispatcher, args map[string]interface{}) (interface{}, error) {
	directory, err := requiredString(args, "directory")
	if err != nil {
		return nil, err
	}
	mode := sync.ModeMerge
	if optString(args, "mode") == string(sync.ModeReplace) {
		mode = sync.ModeReplace
	}
	result, err := d.importer.Import(directory, sync.ImportOptions{Mode: mode})
	if err != nil {
		return nil, err
	}
	return result, nil
}
