package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// dateLayout is the calendar-day format accepted by the admin API.
const dateLayout = "2006-01-02"

// selectionRequest is the body of POST /admin/selection.
type selectionRequest struct {
	Date      string `json:"date"`
	Overwrite bool   `json:"overwrite"`
}

func (s selectionRequest) validate() (time.Time, error) {
	if strings.TrimSpace(s.Date) == "" {
		return time.Time{}, errors.New("missing date")
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s.Date), time.UTC)
	if err != nil {
		return time.Time{}, errors.New("invalid date; must be YYYY-MM-DD")
	}
	return d, nil
}

// AdminHandler exposes the manual selection trigger.
type AdminHandler struct {
	trigger Trigger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(trigger Trigger) *AdminHandler {
	return &AdminHandler{trigger: trigger}
}

// HandleTriggerSelection handles POST /admin/selection requests. The run is
// synchronous; the response carries the added and updated row counts.
func (h *AdminHandler) HandleTriggerSelection(w http.ResponseWriter, r *http.Request) {
	const op = "api.trigger_selection"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req selectionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeServiceError(w, badRequest(op, err))
		return
	}
	date, err := req.validate()
	if err != nil {
		writeServiceError(w, badRequest(op, err))
		return
	}
	res, err := h.trigger.TriggerSelectionForDate(r.Context(), date, req.Overwrite)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
