package indexer

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"kotadb/internal/astparse"
	"kotadb/internal/extract"
	"kotadb/internal/kotaerr"
	"kotadb/internal/repoacq"
	"kotadb/internal/scanner"
	"kotadb/internal/storage"
)

const contentSnippetMaxBytes = 4000

// runJob executes one IndexJob's full algorithm (§4.6 steps 2-11). The
// job is already in "processing" by the time this runs (the caller claimed
// it); runJob is responsible for the rest: acquire, scan, diff, parse,
// extract, write, and clean up.
func (ix *Indexer) runJob(jobID, repositoryID string) error {
	repo, err := ix.repos.GetByID(repositoryID)
	if err != nil {
		return kotaerr.Wrap(kotaerr.InternalError, "loading repository", err)
	}
	if repo == nil {
		return kotaerr.New(kotaerr.NotFound, "repository not found: "+repositoryID)
	}
	job, err := ix.jobs.Get(jobID)
	if err != nil {
		return kotaerr.Wrap(kotaerr.InternalError, "loading job", err)
	}

	ref := job.Ref
	if ref == "" {
		ref = repo.DefaultRef
	}

	var localPath string
	if repo.LocalPath != nil {
		localPath = *repo.LocalPath
	}

	tree, err := ix.acquirer.Acquire(repoacq.Options{
		FullName:    repo.FullName,
		Ref:         ref,
		LocalPath:   localPath,
		ScratchRoot: ix.opts.ScratchRoot,
		JobID:       jobID,
	})
	if err != nil {
		// ref_not_found and auth_denied at acquisition fail the job (§4.6).
		return err
	}
	defer ix.acquirer.Release(tree) // guaranteed cleanup (§4.6 step 11)

	stats, err := ix.indexTree(repositoryID, tree.Path)
	if err != nil {
		return err
	}

	if err := ix.repos.TouchLastIndexed(repositoryID, time.Now().UTC()); err != nil {
		ix.logger.Warn("touching last_indexed_at failed", map[string]interface{}{"error": err.Error()})
	}

	status := "completed"
	if stats.FilesScanned > 0 && stats.FilesIndexed == 0 {
		status = "skipped" // every hash matched: a true no-op (§4.6)
	}
	return ix.jobs.Finish(jobID, status, stats, nil)
}

type fileWork struct {
	file    scanner.File
	fileID  string
	lang    astparse.Language
	symbols []extract.Symbol
	refs    []extract.Reference
}

// indexTree runs steps 4-9 of §4.6 against an acquired working tree.
func (ix *Indexer) indexTree(repositoryID, treePath string) (storage.JobStats, error) {
	ctx := context.Background()
	var stats storage.JobStats

	current, err := scanner.Scan(treePath, scanOptions(treePath))
	if err != nil {
		return stats, kotaerr.Wrap(kotaerr.InternalError, "scanning working tree", err)
	}
	stats.FilesScanned = len(current)

	priorHashes, priorIDs, err := ix.files.PriorSet(repositoryID)
	if err != nil {
		return stats, kotaerr.Wrap(kotaerr.StoreBusy, "loading prior file set", err)
	}

	currentByPath := make(map[string]scanner.File, len(current))
	allFilePaths := make(map[string]bool, len(current))
	for _, f := range current {
		currentByPath[f.RelativePath] = f
		allFilePaths[f.RelativePath] = true
	}

	var toProcess []scanner.File
	for _, f := range current {
		prior, existed := priorHashes[f.RelativePath]
		if !existed || prior != f.ContentHash {
			toProcess = append(toProcess, f)
		}
	}
	var removedIDs []string
	for path, id := range priorIDs {
		if _, stillPresent := currentByPath[path]; !stillPresent {
			removedIDs = append(removedIDs, id)
		}
	}

	if len(toProcess) == 0 && len(removedIDs) == 0 {
		return stats, nil // true no-op, job is marked "skipped" by the caller
	}

	work := make([]fileWork, 0, len(toProcess))
	for _, f := range toProcess {
		id := priorIDs[f.RelativePath]
		if id == "" {
			id = uuid.NewString()
		}

		lang, _ := astparse.LanguageFromExtension(filepath.Ext(f.RelativePath))
		parsed, perr := ix.parser.Parse(ctx, f.RelativePath, f.Content, string(lang))
		if perr != nil {
			// An isolated parse failure doesn't fail the job (§4.6); record
			// it and move on without symbols/references for this file.
			ix.logger.Warn("parse failed for file", map[string]interface{}{"path": f.RelativePath, "error": perr.Error()})
			work = append(work, fileWork{file: f, fileID: id, lang: lang})
			continue
		}

		work = append(work, fileWork{
			file:    f,
			fileID:  id,
			lang:    lang,
			symbols: extract.ExtractSymbols(parsed),
			refs:    extract.ExtractReferences(parsed),
		})
	}

	resolver := extract.NewResolver(ix.opts.AliasMap, allFilePaths)
	fileRefs := make(map[string][]extract.Reference, len(work))
	changedPaths := make(map[string]bool, len(work))
	for _, w := range work {
		fileRefs[w.file.RelativePath] = w.refs
		changedPaths[w.file.RelativePath] = true
		stats.Symbols += len(w.symbols)
		stats.References += len(w.refs)
	}

	// Merge in the persisted references of Unchanged files: resolvedEdges
	// must cover the whole repository, not just this run's Added/Changed
	// set, or ReplaceForRepositoryTx's full-repository DELETE wipes edges
	// for files nothing here touched (§4.6 step 8, P4).
	persistedRefs, err := ix.refs.ForRepository(repositoryID)
	if err != nil {
		return stats, kotaerr.Wrap(kotaerr.StoreBusy, "loading persisted references", err)
	}
	pathByFileID := make(map[string]string, len(priorIDs))
	for path, id := range priorIDs {
		pathByFileID[id] = path
	}
	for _, ref := range persistedRefs {
		path, ok := pathByFileID[ref.FromFileID]
		if !ok || changedPaths[path] {
			continue // this file's refs were just rebuilt fresh above
		}
		if _, stillPresent := currentByPath[path]; !stillPresent {
			continue // file removed this run; drop its stale edges
		}
		fileRefs[path] = append(fileRefs[path], extract.Reference{
			ToSpecifier:   ref.ToPath,
			Symbols:       ref.Symbols,
			ReferenceType: ref.ReferenceType,
			IsTypeOnly:    ref.IsTypeOnly,
		})
	}

	resolvedEdges := extract.BuildEdges(resolver, fileRefs)
	stats.Dependencies = len(resolvedEdges)
	stats.FilesIndexed = len(work)

	allFileIDs := make(map[string]string, len(priorIDs)+len(work))
	for path, id := range priorIDs {
		allFileIDs[path] = id
	}
	for _, w := range work {
		allFileIDs[w.file.RelativePath] = w.fileID
	}
	for _, path := range removedPaths(priorIDs, currentByPath) {
		delete(allFileIDs, path)
	}

	if err := ix.writeResults(repositoryID, work, removedIDs, resolvedEdges, allFileIDs); err != nil {
		return stats, err
	}
	return stats, nil
}

func removedPaths(priorIDs map[string]string, currentByPath map[string]scanner.File) []string {
	var paths []string
	for path := range priorIDs {
		if _, ok := currentByPath[path]; !ok {
			paths = append(paths, path)
		}
	}
	return paths
}

// writeResults performs §4.6 step 9 in a single write transaction: delete
// removed files (cascading to their Symbols/References), upsert
// added/changed files and their Symbols/References, and replace the
// repository's whole dependency edge set.
func (ix *Indexer) writeResults(repositoryID string, work []fileWork, removedIDs []string, edges []extract.DependencyEdge, allFileIDs map[string]string) error {
	return ix.db.WithTx(func(tx *sql.Tx) error {
		for _, id := range removedIDs {
			if err := ix.files.DeleteTx(tx, id); err != nil {
				return kotaerr.Wrap(kotaerr.StoreWriteError, "deleting removed file", err)
			}
		}

		for _, w := range work {
			f := &storage.IndexedFile{
				ID:             w.fileID,
				RepositoryID:   repositoryID,
				Path:           w.file.RelativePath,
				ContentHash:    w.file.ContentHash,
				Language:       string(w.lang),
				SizeBytes:      w.file.SizeBytes,
				ContentSnippet: snippet(w.file.Content),
				IndexedAt:      time.Now().UTC(),
			}
			if err := ix.files.UpsertTx(tx, f); err != nil {
				return kotaerr.Wrap(kotaerr.StoreWriteError, "upserting indexed file", err)
			}

			symbolRows := make([]storage.Symbol, 0, len(w.symbols))
			for _, s := range w.symbols {
				var doc *string
				if s.JSDoc != "" {
					d := s.JSDoc
					doc = &d
				}
				symbolRows = append(symbolRows, storage.Symbol{
					ID:     uuid.NewString(),
					FileID: w.fileID,
					Name:   s.Name,
					Kind:   s.Kind,
					Line:   s.Line,
					JSDoc:  doc,
				})
			}
			if err := ix.symbols.ReplaceForFileTx(tx, w.fileID, symbolRows); err != nil {
				return kotaerr.Wrap(kotaerr.StoreWriteError, "replacing symbols", err)
			}

			refRows := make([]storage.Reference, 0, len(w.refs))
			for _, r := range w.refs {
				refRows = append(refRows, storage.Reference{
					ID:            uuid.NewString(),
					FromFileID:    w.fileID,
					ToPath:        r.ToSpecifier,
					Symbols:       r.Symbols,
					ReferenceType: r.ReferenceType,
					IsTypeOnly:    r.IsTypeOnly,
				})
			}
			if err := ix.refs.ReplaceForFileTx(tx, w.fileID, refRows); err != nil {
				return kotaerr.Wrap(kotaerr.StoreWriteError, "replacing references", err)
			}
		}

		edgeRows := make([]storage.DependencyEdge, 0, len(edges))
		for _, e := range edges {
			sourceID := allFileIDs[e.SourcePath]
			targetID := allFileIDs[e.TargetPath]
			if sourceID == "" || targetID == "" {
				continue
			}
			edgeRows = append(edgeRows, storage.DependencyEdge{
				ID:            uuid.NewString(),
				RepositoryID:  repositoryID,
				SourceFileID:  sourceID,
				TargetFileID:  targetID,
				ReferenceType: e.ReferenceType,
			})
		}
		if err := ix.edges.ReplaceForRepositoryTx(tx, repositoryID, edgeRows); err != nil {
			return kotaerr.Wrap(kotaerr.StoreWriteError, "replacing dependency edges", err)
		}

		return nil
	})
}

func snippet(content []byte) string {
	if len(content) <= contentSnippetMaxBytes {
		return string(content)
	}
	return string(content[:contentSnippetMaxBytes])
}
