// Package statusserver provides the HTTP status and administration API
// for the drawhub server.
//
// It uses the Go standard library net/http for implementation, serving
// health, metrics, and session introspection endpoints. The API is
// meant to be bound to a loopback or otherwise trusted interface.
package statusserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/oxleyk/drawhub/internal/core/session"
	"github.com/oxleyk/drawhub/internal/server/config"
)

// Server is the status API HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// New creates a status server for the given registry. The metrics
// handler is mounted at /metrics; pass nil to disable the endpoint.
func New(cfg config.StatusSection, registry *session.Registry, metrics http.Handler, logger *slog.Logger) *Server {
	h := newHandler(registry, metrics, logger)

	var handler http.Handler = h
	if cfg.RateLimitPerSecond > 0 {
		handler = RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst)(handler)
	}
	handler = RequestID()(handler)
	handler = Recover(logger)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		handler: handler,
	}
}

// Handler returns the fully-wrapped request handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
