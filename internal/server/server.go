// Package server hosts the MCP endpoint and the operational HTTP routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/openapi-bridge/internal/bridge"
	common "github.com/bobmcallan/openapi-bridge/internal/common"
	"github.com/bobmcallan/openapi-bridge/internal/config"
)

// StatusSource reports the bridge state served on /api/version.
type StatusSource interface {
	Info() bridge.Info
}

// Server manages the HTTP server and routes.
type Server struct {
	mcp     http.Handler
	metrics http.Handler
	status  StatusSource
	router  *http.ServeMux
	server  *http.Server
	logger  *common.Logger
}

// New creates the HTTP server. metricsHandler and status may be nil, in which
// case the matching routes answer 404 and a version-only payload.
func New(cfg *config.Config, mcpHandler http.Handler, status StatusSource, metricsHandler http.Handler, logger *common.Logger) *Server {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Server{
		mcp:     mcpHandler,
		metrics: metricsHandler,
		status:  status,
		logger:  logger,
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // slow backends plus the executor timeout
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Str("url", fmt.Sprintf("http://%s/mcp", s.server.Addr)).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
