package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrNoCandidates aborts a selection run: the pool is empty.
	ErrNoCandidates = errors.New("no candidates")
	// ErrNoSelectionForToday means today's run has not happened or failed.
	ErrNoSelectionForToday = errors.New("no selection for today")
	// ErrUnknownCandidate is a client error: the guessed id does not exist.
	ErrUnknownCandidate = errors.New("unknown candidate")
	// ErrInconsistentSelection means today's row points at missing data.
	ErrInconsistentSelection = errors.New("inconsistent selection")
	ErrNoStore               = errors.New("store is required")
)
