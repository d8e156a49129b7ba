package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/whodle/internal/app"
	"github.com/okian/whodle/pkg/clock"
	"github.com/okian/whodle/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type runCall struct {
	date      time.Time
	overwrite bool
	ctxErr    error
}

// fakeRunner marks a day as done after a successful run. When gate is set
// each run blocks until it is closed.
type fakeRunner struct {
	mu       sync.Mutex
	done     map[string]bool
	calls    []runCall
	err      error
	gate     chan struct{}
	started  chan struct{}
	checkErr error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{done: map[string]bool{}, started: make(chan struct{}, 8)}
}

func (f *fakeRunner) SelectionExists(_ context.Context, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.done[date.Format("2006-01-02")], nil
}

func (f *fakeRunner) RunDailySelection(ctx context.Context, date time.Time, overwrite bool) (service.SelectionOutcome, error) {
	f.started <- struct{}{}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runCall{date: date, overwrite: overwrite, ctxErr: ctx.Err()})
	if f.err != nil {
		return service.SelectionOutcome{}, f.err
	}
	key := date.Format("2006-01-02")
	if f.done[key] && !overwrite {
		return service.SelectionOutcome{Date: date, Skipped: true}, nil
	}
	updated := 0
	if f.done[key] {
		updated = 3
	}
	f.done[key] = true
	return service.SelectionOutcome{Date: date, Added: 3 - updated, Updated: updated}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var (
	day     = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	before  = day.Add(1 * time.Minute)
	after   = day.Add(10 * time.Minute)
	failing = errors.New("db locked")
)

func newScheduler(r Runner, at time.Time, opts ...Option) *Scheduler {
	opts = append([]Option{WithClock(clock.NewFixed(at)), WithScheduleTime(0, 5)}, opts...)
	s, err := New(r, opts...)
	So(err, ShouldBeNil)
	return s
}

func TestNew(t *testing.T) {
	Convey("Given invalid arguments", t, func() {
		_, err := New(nil)
		So(errors.Is(err, ErrNoRunner), ShouldBeTrue)
		_, err = New(newFakeRunner(), WithScheduleTime(24, 0))
		So(errors.Is(err, ErrInvalidSchedule), ShouldBeTrue)
	})
}

func TestTick(t *testing.T) {
	ctx := context.Background()

	Convey("Given a scheduler before the target time", t, func() {
		r := newFakeRunner()
		s := newScheduler(r, before)

		Convey("Then the tick waits and does not run", func() {
			So(s.Tick(ctx), ShouldEqual, TickWaiting)
			So(r.callCount(), ShouldEqual, 0)
			So(s.Status().Running, ShouldBeFalse)
		})
	})

	Convey("Given a scheduler past the target time", t, func() {
		r := newFakeRunner()
		s := newScheduler(r, after)

		Convey("When it ticks", func() {
			So(s.Tick(ctx), ShouldEqual, TickStarted)
			s.Wait()

			Convey("Then today's selection runs without overwrite", func() {
				So(r.callCount(), ShouldEqual, 1)
				So(r.calls[0].date, ShouldEqual, day)
				So(r.calls[0].overwrite, ShouldBeFalse)
				st := s.Status()
				So(st.LastOutcome, ShouldEqual, "succeeded")
				So(st.Running, ShouldBeFalse)
			})

			Convey("Then later ticks see the existing selection", func() {
				for i := 0; i < 5; i++ {
					So(s.Tick(ctx), ShouldEqual, TickAlreadyDone)
				}
				So(r.callCount(), ShouldEqual, 1)
			})
		})

		Convey("When a run is slow", func() {
			r.gate = make(chan struct{})
			So(s.Tick(ctx), ShouldEqual, TickStarted)
			<-r.started

			Convey("Then overlapping ticks and triggers are refused", func() {
				So(s.Tick(ctx), ShouldEqual, TickBusy)
				So(s.Tick(ctx), ShouldEqual, TickBusy)
				_, err := s.TriggerSelectionForDate(ctx, day, true)
				So(errors.Is(err, ErrSelectionInProgress), ShouldBeTrue)
				So(s.Status().Running, ShouldBeTrue)

				close(r.gate)
				s.Wait()
				So(r.callCount(), ShouldEqual, 1)
				So(s.Tick(ctx), ShouldEqual, TickAlreadyDone)
			})
		})

		Convey("When the run fails", func() {
			r.err = failing
			So(s.Tick(ctx), ShouldEqual, TickStarted)
			s.Wait()

			Convey("Then the flag is cleared and the next tick retries", func() {
				st := s.Status()
				So(st.LastOutcome, ShouldEqual, "failed")
				So(st.LastError, ShouldContainSubstring, "db locked")

				r.mu.Lock()
				r.err = nil
				r.mu.Unlock()
				So(s.Tick(ctx), ShouldEqual, TickStarted)
				s.Wait()
				So(r.callCount(), ShouldEqual, 2)
				So(s.Status().LastOutcome, ShouldEqual, "succeeded")
			})
		})

		Convey("When the existence check fails", func() {
			r.checkErr = failing
			So(s.Tick(ctx), ShouldEqual, TickFailed)
			So(r.callCount(), ShouldEqual, 0)
			So(s.Status().Running, ShouldBeFalse)
		})

		Convey("When the caller's context is cancelled after the run starts", func() {
			r.gate = make(chan struct{})
			tickCtx, cancel := context.WithCancel(ctx)
			So(s.Tick(tickCtx), ShouldEqual, TickStarted)
			<-r.started
			cancel()
			close(r.gate)
			s.Wait()

			Convey("Then the run saw a live context", func() {
				So(r.calls[0].ctxErr, ShouldBeNil)
			})
		})
	})

	Convey("Given a time zone that cannot be loaded", t, func() {
		r := newFakeRunner()
		s := newScheduler(r, after,
			WithTimeZone("Mars/Olympus"),
			WithLocationLoader(func(string) (*time.Location, error) { return nil, errors.New("no tzdata") }),
		)

		Convey("Then the tick reports it and does not run", func() {
			So(s.Tick(ctx), ShouldEqual, TickTZUnavailable)
			So(r.callCount(), ShouldEqual, 0)
			_, err := s.due(day)
			So(errors.Is(err, ErrTimeZoneUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given a schedule read in a zone ahead of UTC", t, func() {
		r := newFakeRunner()
		plus2 := time.FixedZone("CEST", 2*60*60)
		loader := WithLocationLoader(func(string) (*time.Location, error) { return plus2, nil })

		Convey("Then 06:00 local on the run date is 04:00 UTC", func() {
			s := newScheduler(r, day.Add(4*time.Hour), WithTimeZone("Europe/Prague"), WithScheduleTime(6, 0), loader)
			So(s.Tick(ctx), ShouldEqual, TickStarted)
			s.Wait()
			So(r.calls[0].date, ShouldEqual, day)
		})

		Convey("Then 03:59 UTC is still before 06:00 local", func() {
			s := newScheduler(r, day.Add(3*time.Hour+59*time.Minute), WithTimeZone("Europe/Prague"), WithScheduleTime(6, 0), loader)
			So(s.Tick(ctx), ShouldEqual, TickWaiting)
		})

		Convey("Then a local target before UTC midnight fires as soon as the run date begins", func() {
			s := newScheduler(r, day.Add(time.Minute), WithTimeZone("Europe/Prague"), loader)
			So(s.Tick(ctx), ShouldEqual, TickStarted)
			s.Wait()
			So(r.calls[0].date, ShouldEqual, day)
		})
	})

	Convey("Given a schedule read in a zone behind UTC", t, func() {
		r := newFakeRunner()
		minus4 := time.FixedZone("EDT", -4*60*60)
		loader := WithLocationLoader(func(string) (*time.Location, error) { return minus4, nil })
		noon := WithScheduleTime(12, 0)

		Convey("Then 00:30 UTC, the previous local evening, waits", func() {
			s := newScheduler(r, day.Add(30*time.Minute), WithTimeZone("America/New_York"), noon, loader)
			So(s.Tick(ctx), ShouldEqual, TickWaiting)
			So(r.callCount(), ShouldEqual, 0)
		})

		Convey("Then 15:59 UTC is still before noon local", func() {
			s := newScheduler(r, day.Add(15*time.Hour+59*time.Minute), WithTimeZone("America/New_York"), noon, loader)
			So(s.Tick(ctx), ShouldEqual, TickWaiting)
		})

		Convey("Then 16:00 UTC is noon local and runs the UTC day", func() {
			s := newScheduler(r, day.Add(16*time.Hour), WithTimeZone("America/New_York"), noon, loader)
			So(s.Tick(ctx), ShouldEqual, TickStarted)
			s.Wait()
			So(r.calls[0].date, ShouldEqual, day)
		})
	})
}

func TestTriggerSelectionForDate(t *testing.T) {
	ctx := context.Background()

	Convey("Given an idle scheduler", t, func() {
		r := newFakeRunner()
		s := newScheduler(r, before)
		target := time.Date(2026, 3, 30, 15, 0, 0, 0, time.UTC)

		Convey("When triggering a past date", func() {
			res, err := s.TriggerSelectionForDate(ctx, target, false)

			Convey("Then it runs regardless of the schedule time", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, TriggerResult{Added: 3})
				So(r.calls[0].date, ShouldEqual, clock.Day(target))
			})

			Convey("Then an overwrite reports updated rows", func() {
				res, err := s.TriggerSelectionForDate(ctx, target, true)
				So(err, ShouldBeNil)
				So(res, ShouldResemble, TriggerResult{Updated: 3})
			})
		})

		Convey("When the run fails", func() {
			r.err = failing
			_, err := s.TriggerSelectionForDate(ctx, target, false)
			So(errors.Is(err, failing), ShouldBeTrue)
			So(s.Status().Running, ShouldBeFalse)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running loop whose first run is slow", t, func() {
		r := newFakeRunner()
		r.gate = make(chan struct{})
		s := newScheduler(r, after, WithPollInterval(5*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()
		<-r.started

		Convey("When shutdown is requested mid-run", func() {
			time.Sleep(20 * time.Millisecond) // let a few ticks hit the busy guard
			cancel()

			Convey("Then Run waits for the run to finish", func() {
				select {
				case <-done:
					t.Fatal("Run returned before the in-flight run finished")
				case <-time.After(30 * time.Millisecond):
				}
				close(r.gate)
				select {
				case err := <-done:
					So(err, ShouldBeNil)
				case <-time.After(2 * time.Second):
					t.Fatal("Run did not return")
				}
				So(r.callCount(), ShouldEqual, 1)
				So(r.calls[0].ctxErr, ShouldBeNil)
			})
		})
	})

	Convey("Given a loop that cannot load its time zone", t, func() {
		r := newFakeRunner()
		loads := make(chan struct{}, 16)
		s := newScheduler(r, after,
			WithPollInterval(time.Millisecond),
			WithBackoff(time.Hour),
			WithLocationLoader(func(string) (*time.Location, error) {
				loads <- struct{}{}
				return nil, errors.New("no tzdata")
			}),
		)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		Convey("Then it backs off instead of polling", func() {
			<-loads
			time.Sleep(30 * time.Millisecond)
			So(len(loads), ShouldEqual, 0)
			cancel()
			So(<-done, ShouldBeNil)
			So(r.callCount(), ShouldEqual, 0)
		})
	})

	Convey("Given a loop that has shut down", t, func() {
		r := newFakeRunner()
		s := newScheduler(r, before, WithPollInterval(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()
		cancel()
		So(<-done, ShouldBeNil)

		Convey("Then a manual trigger is refused and the guard is released", func() {
			_, err := s.TriggerSelectionForDate(context.Background(), day, false)
			So(errors.Is(err, ErrSchedulerStopped), ShouldBeTrue)
			So(r.callCount(), ShouldEqual, 0)
			So(s.Status().Running, ShouldBeFalse)
		})

		Convey("Then a due tick does not start a run", func() {
			s.clock = clock.NewFixed(after)
			So(s.Tick(context.Background()), ShouldEqual, TickStopped)
			So(r.callCount(), ShouldEqual, 0)
		})
	})

	Convey("Given triggers racing a shutdown", t, func() {
		r := newFakeRunner()
		s := newScheduler(r, before, WithPollInterval(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = s.TriggerSelectionForDate(context.Background(), day.AddDate(0, 0, i), false)
			}(i)
		}
		cancel()
		So(<-done, ShouldBeNil)
		atReturn := r.callCount()
		wg.Wait()

		Convey("Then no run completes after Run returned", func() {
			So(r.callCount(), ShouldEqual, atReturn)
			So(s.Status().Running, ShouldBeFalse)
		})
	})
}
