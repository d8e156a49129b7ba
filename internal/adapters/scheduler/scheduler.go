// Package scheduler drives the daily selection from a long-lived polling
// loop. At most one selection run is in flight per process.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	service "github.com/okian/whodle/internal/app"
	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/pkg/clock"
	"github.com/okian/whodle/pkg/logger"
	"github.com/okian/whodle/pkg/metrics"
)

const (
	defaultPollInterval = 2 * time.Minute
	defaultBackoff      = time.Hour
)

// Runner is the part of the service the scheduler drives.
type Runner interface {
	SelectionExists(ctx context.Context, date time.Time) (bool, error)
	RunDailySelection(ctx context.Context, date time.Time, overwrite bool) (service.SelectionOutcome, error)
}

// TickResult says what one tick did.
type TickResult string

// Tick results.
const (
	TickStarted       TickResult = "started"
	TickStopped       TickResult = "stopped"
	TickBusy          TickResult = metrics.OutcomeBusy
	TickAlreadyDone   TickResult = "already_done"
	TickWaiting       TickResult = metrics.OutcomeWaiting
	TickTZUnavailable TickResult = metrics.OutcomeTZError
	TickFailed        TickResult = metrics.OutcomeFailed
)

// Status is the scheduler state reported on /stats.
type Status struct {
	Running     bool      `json:"running"`
	LastTick    time.Time `json:"last_tick,omitempty"`
	LastResult  string    `json:"last_result,omitempty"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// TriggerResult is returned by a manual run.
type TriggerResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Scheduler polls the clock and runs the daily selection once the target
// time has passed and no selection exists for today.
type Scheduler struct {
	runner       Runner
	clock        clock.Clock
	hour, minute int
	tzName       string
	loadLocation func(string) (*time.Location, error)
	interval     time.Duration
	backoff      time.Duration

	busy atomic.Bool

	// life guards stopping and every wg.Add so Wait never races a new run.
	life     sync.Mutex
	stopping bool
	wg       sync.WaitGroup

	mu     sync.Mutex
	status Status

	logger logger.Logger
}

// New builds a Scheduler. The default schedule is 00:05 UTC.
func New(runner Runner, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrNoRunner
	}
	s := &Scheduler{
		runner:       runner,
		clock:        clock.NewReal(),
		hour:         0,
		minute:       5,
		tzName:       "UTC",
		loadLocation: time.LoadLocation,
		interval:     defaultPollInterval,
		backoff:      defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hour < 0 || s.hour > 23 || s.minute < 0 || s.minute > 59 {
		return nil, fmt.Errorf("%w: %02d:%02d", ErrInvalidSchedule, s.hour, s.minute)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scheduler")
	}
	return s, nil
}

// Run ticks until ctx is cancelled, then waits for an in-flight run to
// finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info(ctx, "scheduler started",
		logger.String("schedule_time", fmt.Sprintf("%02d:%02d", s.hour, s.minute)),
		logger.String("time_zone", s.tzName),
		logger.Duration("poll_interval", s.interval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(context.WithoutCancel(ctx), "scheduler stopping, waiting for in-flight run")
			s.stop()
			return nil
		case <-timer.C:
			wait := s.interval
			if s.Tick(ctx) == TickTZUnavailable {
				wait = s.backoff
			}
			timer.Reset(wait)
		}
	}
}

// Wait blocks until every run started by Tick or TriggerSelectionForDate
// returns. It does not refuse new runs; once Run has returned, new runs are
// refused with TickStopped or ErrSchedulerStopped.
func (s *Scheduler) Wait() { s.wg.Wait() }

// stop refuses new runs, then waits for the in-flight one.
func (s *Scheduler) stop() {
	s.life.Lock()
	s.stopping = true
	s.life.Unlock()
	s.wg.Wait()
}

// track registers a run with wg unless the scheduler is stopping.
func (s *Scheduler) track() bool {
	s.life.Lock()
	defer s.life.Unlock()
	if s.stopping {
		return false
	}
	s.wg.Add(1)
	return true
}

// Tick performs one scheduling step. A started run continues on its own
// goroutine, detached from ctx cancellation.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	if !s.busy.CompareAndSwap(false, true) {
		return s.record(ctx, TickBusy)
	}
	metrics.UpdateSchedulerRunning(true)

	today := s.clock.TodayUtc()
	exists, err := s.runner.SelectionExists(ctx, today)
	if err != nil {
		s.release()
		s.logger.Error(ctx, "existence check failed",
			logger.String("date", model.DateKey(today)),
			logger.Error(err),
		)
		return s.record(ctx, TickFailed)
	}
	if exists {
		s.release()
		s.logger.Debug(ctx, "selection already exists for today", logger.String("date", model.DateKey(today)))
		return s.record(ctx, TickAlreadyDone)
	}

	due, err := s.due(today)
	if err != nil {
		s.release()
		metrics.RecordErrorByComponent("scheduler", "tz_unavailable")
		s.logger.Error(ctx, "cannot compute schedule time",
			logger.String("severity", "critical"),
			logger.String("time_zone", s.tzName),
			logger.Duration("retry_in", s.backoff),
			logger.Error(err),
		)
		return s.record(ctx, TickTZUnavailable)
	}
	if !due {
		s.release()
		return s.record(ctx, TickWaiting)
	}

	if !s.track() {
		s.release()
		return s.record(ctx, TickStopped)
	}
	go func() {
		defer s.wg.Done()
		defer s.release()
		runCtx := context.WithoutCancel(ctx)
		out, err := s.runner.RunDailySelection(runCtx, today, false)
		s.finish(out, err)
	}()
	return s.record(ctx, TickStarted)
}

// TriggerSelectionForDate runs the selection for date now, through the same
// guard as the loop.
func (s *Scheduler) TriggerSelectionForDate(ctx context.Context, date time.Time, overwrite bool) (TriggerResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return TriggerResult{}, ErrSelectionInProgress
	}
	metrics.UpdateSchedulerRunning(true)
	if !s.track() {
		s.release()
		return TriggerResult{}, ErrSchedulerStopped
	}
	defer s.wg.Done()
	defer s.release()

	s.logger.Info(ctx, "manual selection triggered",
		logger.String("date", model.DateKey(date)),
		logger.Bool("overwrite", overwrite),
	)
	out, err := s.runner.RunDailySelection(context.WithoutCancel(ctx), clock.Day(date), overwrite)
	s.finish(out, err)
	if err != nil {
		return TriggerResult{}, err
	}
	return TriggerResult{Added: out.Added, Updated: out.Updated}, nil
}

// Status returns a copy of the current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Running = s.busy.Load()
	return st
}

// due reports whether the schedule time has passed for runDate. The target
// is runDate's calendar day at HH:mm in the configured zone.
func (s *Scheduler) due(runDate time.Time) (bool, error) {
	loc, err := s.loadLocation(s.tzName)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrTimeZoneUnavailable, s.tzName, err)
	}
	target := time.Date(runDate.Year(), runDate.Month(), runDate.Day(), s.hour, s.minute, 0, 0, loc)
	return !s.clock.UtcNow().Before(target), nil
}

func (s *Scheduler) release() {
	s.busy.Store(false)
	metrics.UpdateSchedulerRunning(false)
}

func (s *Scheduler) record(ctx context.Context, r TickResult) TickResult {
	metrics.RecordSchedulerTick(string(r))
	s.mu.Lock()
	s.status.LastTick = s.clock.UtcNow()
	s.status.LastResult = string(r)
	s.mu.Unlock()
	if r == TickBusy {
		s.logger.Debug(ctx, "selection in flight, skipping tick")
	}
	return r
}

func (s *Scheduler) finish(out service.SelectionOutcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRun = s.clock.UtcNow()
	s.status.LastError = ""
	switch {
	case err != nil:
		s.status.LastOutcome = metrics.OutcomeFailed
		s.status.LastError = err.Error()
	case out.Skipped:
		s.status.LastOutcome = metrics.OutcomeSkipped
	default:
		s.status.LastOutcome = metrics.OutcomeSucceeded
	}
}
