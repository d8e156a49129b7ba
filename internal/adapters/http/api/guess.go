package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/whodle/internal/domain/model"
)

// maxBodyBytes caps request bodies for the JSON endpoints.
const maxBodyBytes = 1 << 16

// guessRequest is the body of POST /guess.
type guessRequest struct {
	Variant     string `json:"variant"`
	CandidateID int64  `json:"candidate_id"`
}

func (g guessRequest) validate() (model.Variant, error) {
	v, err := model.ParseVariant(g.Variant)
	if err != nil {
		return "", err
	}
	if g.CandidateID <= 0 {
		return "", errors.New("candidate_id must be positive")
	}
	return v, nil
}

// GuessHandler scores guesses.
type GuessHandler struct {
	puzzle Puzzle
}

// NewGuessHandler creates a new guess handler.
func NewGuessHandler(puzzle Puzzle) *GuessHandler {
	return &GuessHandler{puzzle: puzzle}
}

// HandlePostGuess handles POST /guess requests.
func (h *GuessHandler) HandlePostGuess(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_guess"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req guessRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeServiceError(w, badRequest(op, err))
		return
	}
	variant, err := req.validate()
	if err != nil {
		if errors.Is(err, model.ErrUnknownVariant) {
			writeServiceError(w, err)
			return
		}
		writeServiceError(w, badRequest(op, err))
		return
	}

	res, err := h.puzzle.ProcessGuess(r.Context(), variant, req.CandidateID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
