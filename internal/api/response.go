// Package api implements the REST request surface (§4.8.2): route
// registration, the auth + rate-limit pre-handler pipeline, and the shared
// JSON response helpers. The middleware chain and server scaffolding follow
// the teacher's internal/api package; the routes and error envelope are
// KotaDB's own.
package api

import (
	"encoding/json"
	"net/http"

	"kotadb/internal/kotaerr"
)

// errorBody is §4.9's REST error envelope: { "error": { "code", "message", "details"? } }.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the §4.9 error envelope, mapping a *kotaerr.Error
// to its designated HTTP status via kotaerr.HTTPStatus; any other error is
// treated as an internal_error.
func WriteError(w http.ResponseWriter, err error) {
	var ke *kotaerr.Error
	if kotaerr.As(err, &ke) {
		WriteJSON(w, kotaerr.HTTPStatus(ke.Kind), errorResponse{Error: errorBody{
			Code:    string(ke.Kind),
			Message: ke.Message,
			Details: ke.Details,
		}})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
		Code:    string(kotaerr.InternalError),
		Message: err.Error(),
	}})
}

// BadRequest writes an invalid_argument error.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, kotaerr.New(kotaerr.InvalidArgument, message))
}

// NotFound writes a not_found error.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, kotaerr.New(kotaerr.NotFound, message))
}

// InternalError writes an internal_error.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, kotaerr.New(kotaerr.InternalError, message))
}
