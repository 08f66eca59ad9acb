package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"kotadb/internal/jsonschema"
	"kotadb/internal/kotaerr"
	"kotadb/internal/storage"
	"kotadb/internal/version"
)

const defaultSearchLimit = 20

// handleHealth reports liveness and version, exempt from auth (§4.8.2/§4.8.3).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
	})
}

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// handleSearch implements GET /search, mirroring §4.7.1.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		BadRequest(w, "term is required")
		return
	}
	repositoryID := r.URL.Query().Get("repository")
	limit := intParam(r, "limit", defaultSearchLimit)

	hits, err := s.engine.SearchCode(term, repositoryID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"results": hits})
}

// handleRecentFiles implements GET /files/recent, mirroring §4.7.2.
func (s *Server) handleRecentFiles(w http.ResponseWriter, r *http.Request) {
	repositoryID := r.URL.Query().Get("repository")
	if repositoryID == "" {
		BadRequest(w, "repository is required")
		return
	}
	limit := intParam(r, "limit", defaultSearchLimit)

	files, err := s.engine.ListRecentFiles(repositoryID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

type indexRequest struct {
	RepositoryID string `json:"repository_id"`
	Ref          string `json:"ref"`
}

// handleIndex implements POST /index: enqueues an index job (§4.6 step 1).
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		WriteError(w, kotaerr.New(kotaerr.InvalidArgument, "indexing is not enabled on this server"))
		return
	}
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}
	if req.RepositoryID == "" {
		BadRequest(w, "repository_id is required")
		return
	}
	if req.Ref == "" {
		req.Ref = "HEAD"
	}

	jobID, err := s.indexer.Enqueue(req.RepositoryID, req.Ref)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": jobID, "status": "pending"})
}

// handleJobStatus implements GET /jobs/{id}.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	jobs := storage.NewIndexJobRepo(s.db)
	job, err := jobs.Get(jobID)
	if err != nil {
		WriteError(w, kotaerr.Wrap(kotaerr.StoreBusy, "looking up job", err))
		return
	}
	if job == nil {
		NotFound(w, "job not found")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

type validateRequest struct {
	Data   interface{}            `json:"data"`
	Schema map[string]interface{} `json:"schema"`
}

// handleValidateOutput implements POST /validate-output: validates an
// arbitrary JSON value against a supplied JSON-compatible schema.
func (s *Server) handleValidateOutput(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}
	errs := jsonschema.Validate(req.Data, req.Schema, "$")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}
