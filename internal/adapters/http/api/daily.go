package api

import (
	"net/http"

	"github.com/okian/whodle/internal/domain/model"
)

// DailyHandler serves today's presentation per variant.
type DailyHandler struct {
	puzzle Puzzle
}

// NewDailyHandler creates a new daily handler.
func NewDailyHandler(puzzle Puzzle) *DailyHandler {
	return &DailyHandler{puzzle: puzzle}
}

// HandleGetDaily handles GET /daily/{variant} requests.
func (h *DailyHandler) HandleGetDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	variant, err := model.ParseVariant(r.PathValue("variant"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	p, err := h.puzzle.GetTodaysPresentation(r.Context(), variant)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
