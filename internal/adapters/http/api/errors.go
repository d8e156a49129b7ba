package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/whodle/internal/adapters/scheduler"
	service "github.com/okian/whodle/internal/app"
	"github.com/okian/whodle/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// Error codes returned in the response body.
const (
	codeBadRequest            = "bad_request"
	codeNoSelection           = "no_selection"
	codeUnknownCandidate      = "unknown_candidate"
	codeUnknownVariant        = "unknown_variant"
	codeInconsistentSelection = "inconsistent_selection"
	codeSelectionInProgress   = "selection_in_progress"
	codeNoCandidates          = "no_candidates"
	codeShuttingDown          = "shutting_down"
	codeInternal              = "internal_error"
)

func badRequest(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, model.ErrUnknownVariant):
		return http.StatusBadRequest, codeUnknownVariant
	case errors.Is(err, service.ErrUnknownCandidate):
		return http.StatusBadRequest, codeUnknownCandidate
	case errors.Is(err, service.ErrNoSelectionForToday):
		return http.StatusNotFound, codeNoSelection
	case errors.Is(err, scheduler.ErrSelectionInProgress):
		return http.StatusConflict, codeSelectionInProgress
	case errors.Is(err, scheduler.ErrSchedulerStopped):
		return http.StatusServiceUnavailable, codeShuttingDown
	case errors.Is(err, service.ErrNoCandidates):
		return http.StatusUnprocessableEntity, codeNoCandidates
	case errors.Is(err, service.ErrInconsistentSelection):
		return http.StatusInternalServerError, codeInconsistentSelection
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
