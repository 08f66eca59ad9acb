package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kotadb/internal/auth"
	"kotadb/internal/indexer"
	"kotadb/internal/logging"
	"kotadb/internal/query"
	"kotadb/internal/storage"
)

// ServerConfig configures the HTTP server (§4.8.2/§4.8.3).
type ServerConfig struct {
	CORS CORSConfig
	// McpHandler serves POST /mcp (§4.8.1). It is a plain http.Handler so
	// this package never imports internal/mcp, keeping the tool protocol
	// and the REST surface independently testable.
	McpHandler http.Handler
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{CORS: DefaultCORSConfig()}
}

// Server is the REST request surface: route registration plus the
// Recovery -> Logging -> Auth -> RequestID -> CORS middleware chain.
type Server struct {
	router      *http.ServeMux
	server      *http.Server
	addr        string
	logger      *logging.Logger
	engine      *query.Engine
	db          *storage.DB
	indexer     *indexer.Indexer // nil if index-enqueue endpoint disabled
	authManager *auth.Manager
	config      ServerConfig
}

// NewServer builds the Server, registers routes, and wraps them in the
// middleware chain. indexer and authManager may be nil (local-only /
// auth-disabled deployments).
func NewServer(addr string, engine *query.Engine, db *storage.DB, ix *indexer.Indexer, authManager *auth.Manager, logger *logging.Logger, config ServerConfig) *Server {
	s := &Server{
		addr:        addr,
		logger:      logger,
		engine:      engine,
		db:          db,
		indexer:     ix,
		authManager: authManager,
		router:      http.NewServeMux(),
		config:      config,
	}

	s.registerRoutes()

	handler := s.applyMiddleware(s.router)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// applyMiddleware wraps handler in the chain, Recovery outermost and CORS
// innermost (closest to the handler):
//
//	Recovery -> Logging -> Auth -> RequestID -> CORS -> handler
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	handler = CORSMiddleware(s.config.CORS)(handler)
	handler = RequestIDMiddleware()(handler)
	if s.authManager != nil {
		handler = AuthMiddleware(s.authManager)(handler)
	}
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	return handler
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", map[string]interface{}{"addr": s.addr})
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server", nil)
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

// ServeHTTP lets Server stand in for http.Handler directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}
