package api

import "net/http"

// handleOpenAPI implements GET /openapi.json (§4.8.2).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, GenerateOpenAPISpec())
}

// GenerateOpenAPISpec builds a minimal OpenAPI 3 description of the REST
// surface, following the teacher's static-map idiom.
func GenerateOpenAPISpec() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "KotaDB HTTP API",
			"version":     "0.1.0",
			"description": "Local-first code intelligence engine",
		},
		"servers": []map[string]interface{}{
			{"url": "http://localhost:3000", "description": "Local server"},
		},
		"paths": map[string]interface{}{
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Liveness and version check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Server is healthy"},
					},
				},
			},
			"/search": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Full-text code search",
					"parameters": []map[string]interface{}{
						{"name": "term", "in": "query", "required": true, "schema": map[string]interface{}{"type": "string"}},
						{"name": "limit", "in": "query", "schema": map[string]interface{}{"type": "integer"}},
						{"name": "repository", "in": "query", "schema": map[string]interface{}{"type": "string"}},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Matching files ranked by relevance"},
					},
				},
			},
			"/files/recent": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Recently indexed files",
					"parameters": []map[string]interface{}{
						{"name": "repository", "in": "query", "required": true, "schema": map[string]interface{}{"type": "string"}},
						{"name": "limit", "in": "query", "schema": map[string]interface{}{"type": "integer"}},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Files ordered by indexed_at descending"},
					},
				},
			},
			"/index": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Enqueue an index job",
					"responses": map[string]interface{}{
						"202": map[string]interface{}{"description": "Job accepted"},
					},
				},
			},
			"/jobs/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Job status and stats",
					"parameters": []map[string]interface{}{
						{"name": "id", "in": "path", "required": true, "schema": map[string]interface{}{"type": "string"}},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Job record"},
						"404": map[string]interface{}{"description": "No such job"},
					},
				},
			},
			"/validate-output": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Validate arbitrary JSON against a supplied schema",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "{ valid, errors: [{ path, message }] }"},
					},
				},
			},
			"/mcp": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Tool protocol endpoint (JSON-RPC over HTTP)",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "JSON-RPC response envelope"},
					},
				},
			},
		},
	}
}
