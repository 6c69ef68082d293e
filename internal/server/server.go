// Package server exposes the agent over HTTP and websocket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/smhanov/contextual"
	"github.com/ternarybob/arbor"
)

// Answerer is the part of *contextual.Agent the server needs.
type Answerer interface {
	Answer(ctx context.Context, query string, opts ...contextual.AnswerOption) (contextual.Result, error)
}

var _ Answerer = (*contextual.Agent)(nil)

// Server manages the HTTP server and routes
type Server struct {
	agent  Answerer
	info   any
	logger arbor.ILogger
	router *http.ServeMux
	server *http.Server
}

// New creates a server for agent listening on addr. info is reported by
// /healthz and may be nil.
func New(agent Answerer, addr string, info any, logger arbor.ILogger) *Server {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	s := &Server{
		agent:  agent,
		info:   info,
		logger: logger,
	}

	s.router = s.setupRoutes()

	// An answer can take several model calls, so writes get a long deadline.
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.withConditionalMiddleware(s.router)
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("HTTP server starting")
	s.logger.Info().Str("url", fmt.Sprintf("http://%s/ui", s.server.Addr)).Msg("Chat widget available")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
