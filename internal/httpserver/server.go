// Package httpserver exposes the bookmark operations over a small REST
// API consumed by the single-page frontend.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and its router.
type Server struct {
	http *http.Server
}

// NewRouter builds the chi router with the middleware stack and the
// API routes.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(logRequests)

	r.Get("/healthz", h.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/bookmarks", h.List)
		r.Post("/bookmarks", h.Add)
		r.Patch("/bookmarks", h.Update)
		r.Put("/bookmarks", h.Check)
		r.Delete("/bookmarks", h.Delete)
		r.Patch("/visit/bookmark", h.Visit)
	})

	return r
}

// New builds the server around the router.
func New(addr string, h *Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start runs the server until it fails or is shut down.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.http.Addr)

	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop shuts the server down gracefully within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

// logRequests writes one structured access-log line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}
