package api

import (
	"net/http"

	"github.com/okian/whodle/internal/adapters/scheduler"
	service "github.com/okian/whodle/internal/app"
)

type statsResponse struct {
	service.Stats
	Scheduler scheduler.Status `json:"scheduler"`
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	stats  StatsProvider
	status StatusProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats StatsProvider, status StatusProvider) *StatsHandler {
	return &StatsHandler{stats: stats, status: status}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := statsResponse{Stats: st}
	if h.status != nil {
		resp.Scheduler = h.status.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}
