// Package api exposes the HTTP interface for the sync service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/feirasderua/gsc-sync/internal/config"
	"github.com/feirasderua/gsc-sync/internal/metrics"
	"github.com/feirasderua/gsc-sync/internal/pipeline"
)

// SyncRunner executes one sync run for a "days ago" offset.
type SyncRunner interface {
	Run(ctx context.Context, daysAgo int) (pipeline.Result, error)
}

// Server wires HTTP handlers to the sync pipeline.
type Server struct {
	router chi.Router
	runner SyncRunner
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner SyncRunner, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(5 * time.Minute))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Post("/trigger-gsc-sync", s.triggerSync)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type syncResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	DateProcessed string `json:"date_processed,omitempty"`
	RowsFound     int    `json:"rows_found"`
	Inserted      int    `json:"inserted"`
	Updated       int    `json:"updated"`
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"message": "GSC sync service is running"})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) triggerSync(w http.ResponseWriter, r *http.Request) {
	// Configuration fault: checked before any network call.
	if s.cfg.DB.DSN == "" {
		s.logger.Error("trigger rejected: database dsn not configured")
		writeJSON(w, s.logger, http.StatusInternalServerError, syncResponse{
			Status:  "error",
			Message: "database dsn is not configured",
		})
		return
	}

	days := s.parseDays(r)
	res, err := s.runner.Run(r.Context(), days)
	if err != nil {
		writeJSON(w, s.logger, http.StatusInternalServerError, syncResponse{
			Status:        "error",
			Message:       err.Error(),
			DateProcessed: res.DateProcessed,
			RowsFound:     res.RowsFound,
			Inserted:      res.Inserted,
			Updated:       res.Updated,
		})
		return
	}

	writeJSON(w, s.logger, http.StatusOK, syncResponse{
		Status:        "success",
		Message:       res.Message,
		DateProcessed: res.DateProcessed,
		RowsFound:     res.RowsFound,
		Inserted:      res.Inserted,
		Updated:       res.Updated,
	})
}

// parseDays reads the optional "days" query parameter. Missing or
// unparseable values fall back to the configured default, never an
// error.
func (s *Server) parseDays(r *http.Request) int {
	fallback := s.cfg.GSC.DefaultDaysAgo
	if fallback <= 0 {
		fallback = 2
	}
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return fallback
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		s.logger.Warn("invalid days parameter, using default",
			zap.String("days", raw),
			zap.Int("default", fallback),
		)
		return fallback
	}
	return days
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
