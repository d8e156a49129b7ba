package scheduler

import (
	"time"

	"github.com/okian/whodle/pkg/clock"
	"github.com/okian/whodle/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScheduleTime sets the wall-clock time of the daily run.
func WithScheduleTime(hour, minute int) Option {
	return func(s *Scheduler) {
		s.hour, s.minute = hour, minute
	}
}

// WithTimeZone sets the IANA zone the schedule time is read in.
func WithTimeZone(name string) Option {
	return func(s *Scheduler) {
		if name != "" {
			s.tzName = name
		}
	}
}

// WithLocationLoader replaces time.LoadLocation.
func WithLocationLoader(fn func(name string) (*time.Location, error)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.loadLocation = fn
		}
	}
}

// WithPollInterval sets the tick period.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBackoff sets the wait after the time zone fails to load.
func WithBackoff(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.backoff = d
		}
	}
}
