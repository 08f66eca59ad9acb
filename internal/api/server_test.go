package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kotadb/internal/auth"
	"kotadb/internal/config"
	"kotadb/internal/jsonschema"
	"kotadb/internal/logging"
	"kotadb/internal/query"
	"kotadb/internal/storage"
)

func newTestServer(t *testing.T, authCfg config.AuthConfig) (*Server, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})
	db, err := storage.Open(filepath.Join(dir, "kotadb.db"), storage.Options{}, logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine := query.New(db)
	authManager := auth.NewManager(authCfg, db, logger)
	return NewServer("127.0.0.1:0", engine, db, nil, authManager, logger, DefaultServerConfig()), db
}

func newJSONBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func TestHandleHealth_BypassesAuth(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, RequireAuth: true}
	s, _ := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleSearch_RequiresTerm(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{Enabled: false})

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleSearch_DeniedWithoutToken(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{Enabled: true, RequireAuth: true})

	req := httptest.NewRequest(http.MethodGet, "/search?term=foo", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleJobStatus_NotFound(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{Enabled: false})

	req := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleValidateOutput_ReportsMissingRequiredField(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{Enabled: false})

	body := `{"data":{"name":"ok"},"schema":{"type":"object","required":["name","age"]}}`
	req := httptest.NewRequest(http.MethodPost, "/validate-output", newJSONBody(body))
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Valid  bool                          `json:"valid"`
		Errors []jsonschema.ValidationError `json:"errors"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Valid || len(resp.Errors) != 1 {
		t.Fatalf("expected exactly one validation error, got %+v", resp)
	}
}

func TestHandleOpenAPI_ReturnsDocument(t *testing.T) {
	s, _ := newTestServer(t, config.AuthConfig{Enabled: false})

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
