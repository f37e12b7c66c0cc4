// Package web exposes the analysis engine over a thin REST surface.
// Handlers marshal engine results only; all analysis and consistency
// logic lives behind the session cache and the batch scheduler.
package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/franz/photo-janitor/internal/analyze"
	"github.com/franz/photo-janitor/internal/photo"
	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/session"
	"github.com/franz/photo-janitor/internal/util"
)

// Server serves the engine's REST API
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	cache   *session.Cache
	library photo.Library
	cfg     analyze.Config
	logger  *report.EventLogger

	mu      sync.Mutex
	running bool // one analysis run at a time
}

// Config holds web server configuration
type Config struct {
	Host    string
	Port    int
	Cache   *session.Cache
	Library photo.Library
	Logger  *report.EventLogger
	Analyze analyze.Config
}

// NewServer creates the REST server
func NewServer(cfg *Config) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:  r,
		cache:   cfg.Cache,
		library: cfg.Library,
		cfg:     cfg.Analyze,
		logger:  cfg.Logger,
	}

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{fingerprint}", s.handleGetSession)
		r.Delete("/sessions/{fingerprint}", s.handleDeleteSession)
		r.Post("/sessions/{fingerprint}/filtered", s.handleSaveFiltered)
		r.Get("/stats/{fingerprint}", s.handleStats)
	})
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	util.InfoLog("Serving API on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	util.InfoLog("Shutting down API server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
