package api

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the HTTP server so main can start and stop it.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates a server around handler.
func NewServer(handler http.Handler) *Server {
	return &Server{handler: handler}
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// a refresh composes every row, so writes get more room
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
