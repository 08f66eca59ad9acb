package mcp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kotadb/internal/logging"
	"kotadb/internal/memory"
	"kotadb/internal/query"
	"kotadb/internal/storage"
	"kotadb/internal/sync"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})
	db, err := storage.Open(filepath.Join(dir, "kotadb.db"), storage.Options{}, logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(query.New(db), nil, db, memory.New(db), sync.NewExporter(db, logger), sync.NewImporter(db, logger))
}

func TestHandleMessage_Initialize(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.handleMessage(&Message{Jsonrpc: "2.0", ID: float64(1), Method: "initialize"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("expected a successful initialize result, got %+v", resp)
	}
}

func TestHandleMessage_ToolsList(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.handleMessage(&Message{Jsonrpc: "2.0", ID: float64(1), Method: "tools/list"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("expected a successful tools/list result, got %+v", resp)
	}
	result := resp.Result.(map[string]interface{})
	tools := result["tools"].([]Tool)
	if len(tools) != len(toolDefinitions) {
		t.Fatalf("expected %d tools, got %d", len(toolDefinitions), len(tools))
	}
}

func TestHandleMessage_UnknownMethod(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.handleMessage(&Message{Jsonrpc: "2.0", ID: float64(1), Method: "nope"})
	if resp == nil || resp.Error == nil || resp.Error.Code != MethodNotFound {
		t.Fatalf("expected MethodNotFound, got %+v", resp)
	}
}

// TestToolsCall_MissingTermIsInternalError is scenario S3: a tools/call with
// a missing required parameter returns JSON-RPC error -32603 whose message
// mentions the missing field.
func TestToolsCall_MissingTermIsInternalError(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.handleMessage(&Message{
		Jsonrpc: "2.0",
		ID:      float64(2),
		Method:  "tools/call",
		Params:  map[string]interface{}{"name": "search_code", "arguments": map[string]interface{}{}},
	})
	if resp == nil || resp.Error == nil {
		t.Fatalf("expected an error response, got %+v", resp)
	}
	if resp.Error.Code != InternalError {
		t.Fatalf("expected code %d, got %d", InternalError, resp.Error.Code)
	}
	if got := resp.Error.Message; !strings.Contains(got, "term") {
		t.Fatalf("expected the error message to mention \"term\", got %q", got)
	}
}

func TestToolsCall_UnknownToolIsInternalError(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.handleMessage(&Message{
		Jsonrpc: "2.0",
		ID:      float64(3),
		Method:  "tools/call",
		Params:  map[string]interface{}{"name": "not_a_tool", "arguments": map[string]interface{}{}},
	})
	if resp == nil || resp.Error == nil || resp.Error.Code != InternalError {
		t.Fatalf("expected InternalError for an unknown tool, got %+v", resp)
	}
}

// TestToolsCall_EnvelopeIsParseableJSON is property P9: every successful
// tools/call response has result.content[0].text parseable as JSON.
func TestToolsCall_EnvelopeIsParseableJSON(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.handleMessage(&Message{
		Jsonrpc: "2.0",
		ID:      float64(4),
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name":      "record_decision",
			"arguments": map[string]interface{}{"content": "use sqlite for storage"},
		},
	})
	if resp == nil || resp.Error != nil {
		t.Fatalf("expected a successful call, got %+v", resp)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 {
		t.Fatalf("expected exactly one content block, got %d", len(content))
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &parsed); err != nil {
		t.Fatalf("expected content[0].text to be valid JSON: %v", err)
	}
	if parsed["content"] != "use sqlite for storage" {
		t.Fatalf("unexpected decoded record: %+v", parsed)
	}
}

func TestToolValidateOutput_RoundTrips(t *testing.T) {
	d := newTestDispatcher(t)
	result, err := d.Call("validate_output", map[string]interface{}{
		"data":   map[string]interface{}{"name": "ok"},
		"schema": map[string]interface{}{"type": "object", "required": []interface{}{"name", "age"}},
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	out := result.(map[string]interface{})
	if out["valid"].(bool) {
		t.Fatal("expected validation to fail for a missing required field")
	}
}
