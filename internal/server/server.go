// Package server implements the orchestrator's HTTP API (§6): webhook
// ingestion and the documents surface, grounded on the reference
// implementation's server.go/router.go chi wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/livingdocs/pipeline/internal/config"
	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/store"
)

// Server wraps an HTTP server with graceful shutdown.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer builds a Server bound to cfg.Server.Port, routing pipeline
// triggers through dispatcher and serving documents out of objStore.
func NewServer(cfg *config.Config, dispatcher core.JobDispatcher, objStore *store.Store, logger *slog.Logger) *Server {
	router := NewRouter(cfg, dispatcher, objStore, logger)

	return &Server{
		server: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the HTTP server and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server with a 30-second timeout.
func (s *Server) Stop() error {
	s.logger.Info("shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
