package scheduler

import "errors"

// Sentinel kinds for scheduler errors.
var (
	// ErrTimeZoneUnavailable means the schedule's time zone could not be loaded.
	ErrTimeZoneUnavailable = errors.New("time zone unavailable")
	// ErrSelectionInProgress is returned by a manual trigger while a run is in flight.
	ErrSelectionInProgress = errors.New("selection in progress")
	// ErrSchedulerStopped is returned by a manual trigger after shutdown began.
	ErrSchedulerStopped = errors.New("scheduler stopped")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrNoRunner         = errors.New("runner is required")
)
