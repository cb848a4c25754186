// Package server exposes a small read-only HTTP surface over limiter
// state: health, version, and current usage/limits. It never invokes the
// limiter, so the advisory endpoints are safe to poll while a fetch runs
// in another process.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/core"
)

// UsageSource provides the limiter state the endpoints render.
type UsageSource interface {
	Snapshot() core.LimiterState
	CooldownSeconds() float64
}

// Server represents the HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	logger  *zap.Logger
	usage   UsageSource
	version string
	host    string
	port    int
}

// New creates a new HTTP server instance.
func New(host string, port int, logger *zap.Logger, usage UsageSource, version string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		router:  r,
		logger:  logger,
		usage:   usage,
		version: version,
		host:    host,
		port:    port,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Get("/v1/usage", s.handleUsage)
	r.Get("/v1/limits", s.handleLimits)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

type usageEntry struct {
	Unit string `json:"unit"`
	Used int    `json:"used"`
	Max  int    `json:"max"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	state := s.usage.Snapshot()

	entries := make([]usageEntry, 0, len(state.Limits))
	for _, unit := range core.UnitsCoarseToFine {
		max, ok := state.Limits[unit]
		if !ok {
			continue
		}
		entries = append(entries, usageEntry{Unit: unit.String(), Used: state.Usage[unit], Max: max})
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"usage":            entries,
		"latest_time":      state.Latest.UTC().Format(time.RFC3339),
		"cooldown_seconds": s.usage.CooldownSeconds(),
	})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	state := s.usage.Snapshot()

	limits := make(map[string]int, len(state.Limits))
	for unit, max := range state.Limits {
		limits[unit.String()] = max
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"limits": limits})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}
