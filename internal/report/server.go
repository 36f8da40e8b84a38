// Package report serves the collected dataset over HTTP: collection status,
// raw metadata, rendered charts, and Prometheus metrics.
//
// READ-ONLY BY CONSTRUCTION:
// The collector is the only writer of the data directory. This server only
// ever loads the cached files, so it can run alongside a collection without
// coordination.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/kudoscope/internal/collector"
	"github.com/sakif/kudoscope/internal/store"
)

// Config holds the report server configuration.
type Config struct {
	Port      int
	ChartsDir string // rendered PNGs served under /charts/
}

// Server wires the router to the cached dataset.
type Server struct {
	router *chi.Mux
	config Config
	store  store.Store
	logger *slog.Logger
}

// New creates a report server over the given store.
//
// ROUTE STRUCTURE:
// GET /healthz       → liveness probe
// GET /api/status    → collection status summary (JSON)
// GET /api/metadata  → raw collection metadata (JSON)
// GET /charts/*      → rendered chart PNGs
// GET /metrics       → Prometheus metrics
func New(cfg Config, st store.Store, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		store:  st,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(requestLogger(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/metadata", s.handleMetadata)
	})

	fileServer := http.FileServer(http.Dir(s.config.ChartsDir))
	s.router.Handle("/charts/*", http.StripPrefix("/charts/", fileServer))

	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := collector.BuildStatus(s.store)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.store.LoadMetadata()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully,
// giving in-flight requests 30 seconds to complete.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("report server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
