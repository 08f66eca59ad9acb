package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"kotadb/internal/auth"
	"kotadb/internal/logging"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	authContextKey
)

// GetRequestID returns the request id attached by RequestIDMiddleware, if any.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetAuthContext returns the auth.Context attached by AuthMiddleware, if any.
func GetAuthContext(ctx context.Context) (auth.Context, bool) {
	c, ok := ctx.Value(authContextKey).(auth.Context)
	return c, ok
}

// responseWriter wraps http.ResponseWriter to capture the status code
// written, for logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// RequestIDMiddleware assigns (or reuses) an X-Request-ID header, mirroring
// the teacher's behavior.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", reqID)
			ctx := context.WithValue(r.Context(), requestIDKey, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggingMiddleware logs every request with its outcome status and duration.
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			logger.Info("request", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.status,
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  rw.Header().Get("X-Request-ID"),
			})
		})
	}
}

// RecoveryMiddleware turns a panic in a downstream handler into a 500
// internal_error response instead of crashing the process.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", map[string]interface{}{
						"panic": fmt.Sprintf("%v", rec),
						"path":  r.URL.Path,
					})
					InternalError(w, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORSConfig controls allowed cross-origin callers. An empty AllowedOrigins
// disables CORS entirely (same-origin only), matching the teacher's default.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}
}

func (c CORSConfig) allows(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// CORSMiddleware applies CORSConfig, including OPTIONS preflight handling.
func CORSMiddleware(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && config.allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// AuthMiddleware runs the §4.8.3 pre-handler pipeline via auth.Manager:
// it authenticates the bearer token, enforces the tier's rate limit, sets
// the X-RateLimit-* / Retry-After headers before the handler writes any
// body, and attaches the resulting auth.Context to the request context.
// /health is exempt per §4.8.3's preamble.
func AuthMiddleware(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearerToken(r)
			authCtx, status, err := manager.Authenticate(token)
			writeRateLimitHeaders(w, status)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, status auth.RateLimitStatus) {
	if status.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(status.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(status.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(status.ResetAt.Unix(), 10))
	}
	if !status.Allowed && status.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(status.RetryAfter.Seconds())))
	}
}
