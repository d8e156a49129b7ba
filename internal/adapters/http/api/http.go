// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/whodle/internal/adapters/scheduler"
	service "github.com/okian/whodle/internal/app"
	"github.com/okian/whodle/internal/domain/model"
)

// Puzzle is the player-facing part of the service.
type Puzzle interface {
	ProcessGuess(ctx context.Context, variant model.Variant, guessedID int64) (model.GuessResult, error)
	GetTodaysPresentation(ctx context.Context, variant model.Variant) (model.Presentation, error)
}

// Trigger runs a selection on demand. The scheduler implements it so manual
// runs share its guard.
type Trigger interface {
	TriggerSelectionForDate(ctx context.Context, date time.Time, overwrite bool) (scheduler.TriggerResult, error)
}

// StatsProvider reports service and scheduler state for /stats.
type StatsProvider interface {
	Stats(ctx context.Context) (service.Stats, error)
}

// StatusProvider reports the scheduler state.
type StatusProvider interface {
	Status() scheduler.Status
}

// Server wires HTTP routes for the puzzle API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	dailyHandler  *DailyHandler
	guessHandler  *GuessHandler
	adminHandler  *AdminHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(puzzle Puzzle, trigger Trigger, stats StatsProvider, status StatusProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(stats, status),
		dailyHandler:  NewDailyHandler(puzzle),
		guessHandler:  NewGuessHandler(puzzle),
		adminHandler:  NewAdminHandler(trigger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/daily/{variant}", MetricsMiddleware(s.dailyHandler.HandleGetDaily, "daily"))
	mux.HandleFunc("/guess", MetricsMiddleware(s.guessHandler.HandlePostGuess, "guess"))
	mux.HandleFunc("/admin/selection", MetricsMiddleware(s.adminHandler.HandleTriggerSelection, "admin_selection"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps a service or scheduler error onto a response.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && code == codeInternal {
		// Internals stay in the logs.
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}
