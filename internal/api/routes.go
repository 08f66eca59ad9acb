package api

import (
	"net/http"
)

// registerRoutes wires the §4.8.2 REST surface. In purely local mode there
// are no /api/keys or /api/subscriptions endpoints — key management is a
// CLI concern (cmd/kotadb's token subcommand).
func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /search", s.handleSearch)
	s.router.HandleFunc("GET /files/recent", s.handleRecentFiles)
	s.router.HandleFunc("POST /index", s.handleIndex)
	s.router.HandleFunc("POST /validate-output", s.handleValidateOutput)
	s.router.HandleFunc("GET /openapi.json", s.handleOpenAPI)
	s.router.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.handleJobStatus(w, r, r.PathValue("id"))
	})

	if s.config.McpHandler != nil {
		s.router.Handle("POST /mcp", s.config.McpHandler)
	}

	s.router.HandleFunc("/", s.handleRoot)
}

// handleRoot self-describes the endpoint surface, mirroring the teacher's
// handleRoot idiom.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFound(w, "not found")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name": "kotadb",
		"endpoints": []string{
			"GET /health",
			"GET /search?term=&limit=&repository=",
			"GET /files/recent?limit=&repository=",
			"POST /index",
			"GET /jobs/{id}",
			"POST /validate-output",
			"POST /mcp",
			"GET /openapi.json",
		},
	})
}
