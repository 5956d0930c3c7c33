// Package server owns the HTTP surface: the chi router, its middleware
// chain, and listener lifecycle. Routes are mounted by the caller.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	Router *chi.Mux

	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// New builds the server with its middleware chain applied. No read or write
// timeouts are set: completion requests stream for as long as the agent runs.
func New(addr string, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "agentwrap")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &Server{
		Router: r,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the listener and serves in the background. It returns once the
// address is bound, so callers can rely on Addr immediately after.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	s.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr is the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
