// Package kotaerr implements the error taxonomy every component reports
// through: a typed kind, a human message, optional structured details, and
// an optional wrapped cause.
package kotaerr

import "fmt"

// Kind is one of the error kinds enumerated in the error handling design.
type Kind string

const (
	InvalidArgument  Kind = "invalid_argument"
	AuthDenied       Kind = "auth_denied"
	RateLimited      Kind = "rate_limited"
	NotFound         Kind = "not_found"
	StoreBusy        Kind = "store_busy"
	StoreWriteError  Kind = "store_write_error"
	SchemaError      Kind = "schema_error"
	SchemaDrift      Kind = "schema_drift"
	ParseError       Kind = "parse_error"
	RefNotFound      Kind = "ref_not_found"
	CloneFailed      Kind = "clone_failed"
	NetworkTransient Kind = "network_transient"
	InternalError    Kind = "internal_error"
)

// Error is the typed error every KotaDB component returns.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// WithDetails attaches structured detail fields and returns the receiver.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// New creates an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// As is a thin wrapper so callers don't need to import "errors" just for this.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// HTTPStatus maps a Kind to the REST status code the error handling design
// assigns it.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidArgument:
		return 400
	case AuthDenied:
		return 401
	case RateLimited:
		return 429
	case NotFound:
		return 404
	case StoreBusy:
		return 503
	case SchemaError, StoreWriteError, InternalError:
		return 500
	default:
		return 500
	}
}

// JSONRPCCode maps a Kind to a JSON-RPC error code: -32602 for
// InvalidArgument, -32603 for every other kind. The MCP tools/call handler
// does not use this mapping; it reports every tool-level failure (§4.8.1)
// as a JSON-RPC error object with -32603.
func JSONRPCCode(kind Kind) int {
	switch kind {
	case InvalidArgument:
		return -32602
	default:
		return -32603
	}
}

// Retryable reports whether the error handling design treats this kind as
// transient and retryable by the Indexer's backoff policy.
func Retryable(kind Kind) bool {
	switch kind {
	case NetworkTransient, StoreBusy:
		return true
	default:
		return false
	}
}
