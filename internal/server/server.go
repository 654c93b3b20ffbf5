// Package server wires the HTTP surface: routing, middleware, and the
// pipeline behind /v1/chat/completions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/duckgate/duckgate/internal/cache"
	"github.com/duckgate/duckgate/internal/config"
	"github.com/duckgate/duckgate/internal/pipeline"
	"github.com/duckgate/duckgate/internal/upstream"
)

// maxBodyBytes limits the size of incoming request bodies.
const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

// closableStore is satisfied by both cache backends.
type closableStore interface {
	cache.Store
	Close() error
}

// Server is the main HTTP server.
type Server struct {
	Config     *config.ServerConfig
	httpServer *http.Server
	Pipeline   *pipeline.Pipeline
	store      closableStore
}

// New creates a new server with all routes registered. The continuity store
// backend is picked by configuration: Redis when an address is set, an
// in-process store otherwise.
func New(cfg *config.ServerConfig) *Server {
	var store closableStore
	if cfg.RedisAddr != "" {
		store = cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	} else {
		store = cache.NewMemoryStore(cache.DefaultCapacity)
	}

	s := &Server{
		Config: cfg,
		store:  store,
		Pipeline: &pipeline.Pipeline{
			Cache:        cache.New(store, cache.DefaultTTL),
			Upstream:     upstream.NewClient(cfg),
			CompletionID: "chatcmpl-" + uuid.NewString(),
			Verbose:      cfg.Verbose,
		},
	}

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	// OpenAI-compatible routes
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleListModels)

	// OPTIONS for CORS preflight
	mux.HandleFunc("OPTIONS /", s.handleOptions)

	handler := corsMiddleware(authMiddleware(cfg, verboseMiddleware(cfg, debugMiddleware(cfg, mux))))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler exposes the fully wired middleware chain, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and closes the continuity store. The
// store closes only after the drain finishes, so in-flight requests can still
// persist their continuity mappings.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.store != nil {
		s.store.Close()
	}
	return err
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
