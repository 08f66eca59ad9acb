package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"kotadb/internal/logging"
)

// maxMessageSize bounds a single stdio JSON-RPC line, mirroring the
// teacher's transport.go.
const maxMessageSize = 1024 * 1024

// Handler serves POST /mcp. Per §4.8.1's per-request isolation rule, each
// HTTP request builds a fresh requestServer value over the shared
// Dispatcher — there is no per-connection mutable state to isolate in
// KotaDB's scope, but the construction still happens per request so that
// changes here (e.g. adding per-request tracing) never leak across calls.
type Handler struct {
	dispatcher *Dispatcher
	logger     *logging.Logger
}

func NewHandler(d *Dispatcher, logger *logging.Logger) *Handler {
	return &Handler{dispatcher: d, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rs := requestServer{dispatcher: h.dispatcher}

	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeHTTPMessage(w, newErrorMessage(nil, ParseError, "invalid JSON-RPC message"), http.StatusBadRequest)
		return
	}

	resp := rs.dispatcher.handleMessage(&msg)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeHTTPMessage(w, resp, http.StatusOK)
}

func writeHTTPMessage(w http.ResponseWriter, msg *Message, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(msg)
}

// requestServer is the fresh-per-request value the HTTP handler
// constructs; the stdio loop below constructs exactly one for the
// process's lifetime, since there is only ever one request stream there.
type requestServer struct {
	dispatcher *Dispatcher
}

// ServeStdio runs the tool protocol over r/w, one line-delimited JSON
// message at a time, reusing a single requestServer for the process
// lifetime (§E).
func ServeStdio(d *Dispatcher, r io.Reader, w io.Writer, logger *logging.Logger) error {
	rs := requestServer{dispatcher: d}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxMessageSize), maxMessageSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			writeStdioMessage(w, newErrorMessage(nil, ParseError, "invalid JSON-RPC message"), logger)
			continue
		}

		resp := rs.dispatcher.handleMessage(&msg)
		if resp == nil {
			continue
		}
		writeStdioMessage(w, resp, logger)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdio transport: %w", err)
	}
	return nil
}

func writeStdioMessage(w io.Writer, msg *Message, logger *logging.Logger) {
	data, err := json.Marshal(msg)
	if err != nil {
		if logger != nil {
			logger.Error("marshaling stdio response failed", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	fmt.Fprintf(w, "%s\n", data)
}
