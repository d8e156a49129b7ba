package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/whodle/internal/adapters/repository"
	"github.com/okian/whodle/internal/adapters/scheduler"
	service "github.com/okian/whodle/internal/app"
	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/internal/domain/selection"
	"github.com/okian/whodle/pkg/clock"
	"github.com/okian/whodle/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var today = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

type mockPuzzle struct {
	guessErr   error
	presentErr error
	lastGuess  int64
	lastVar    model.Variant
}

func (m *mockPuzzle) ProcessGuess(_ context.Context, v model.Variant, id int64) (model.GuessResult, error) {
	m.lastGuess, m.lastVar = id, v
	if m.guessErr != nil {
		return model.GuessResult{}, m.guessErr
	}
	return model.GuessResult{Variant: v, Exact: id == 1, Guess: model.Snapshot{ID: id}}, nil
}

func (m *mockPuzzle) GetTodaysPresentation(_ context.Context, v model.Variant) (model.Presentation, error) {
	if m.presentErr != nil {
		return model.Presentation{}, m.presentErr
	}
	return model.Presentation{Date: "2026-04-01", Variant: v, QuoteText: "we build"}, nil
}

type mockTrigger struct {
	err       error
	date      time.Time
	overwrite bool
}

func (m *mockTrigger) TriggerSelectionForDate(_ context.Context, d time.Time, overwrite bool) (scheduler.TriggerResult, error) {
	m.date, m.overwrite = d, overwrite
	if m.err != nil {
		return scheduler.TriggerResult{}, m.err
	}
	if overwrite {
		return scheduler.TriggerResult{Updated: 3}, nil
	}
	return scheduler.TriggerResult{Added: 3}, nil
}

type mockStats struct{ err error }

func (m mockStats) Stats(context.Context) (service.Stats, error) {
	if m.err != nil {
		return service.Stats{}, m.err
	}
	return service.Stats{Date: "2026-04-01", PoolSize: 3, TodaySelected: true, Variants: model.Variants}, nil
}

type mockStatus struct{}

func (mockStatus) Status() scheduler.Status {
	return scheduler.Status{LastOutcome: "succeeded"}
}

func newMux(p Puzzle, tr Trigger, st StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(p, tr, st, mockStatus{}).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var resp errorResponse
	So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
	return resp.Code
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockPuzzle{}, &mockTrigger{}, mockStats{})

		Convey("Then /healthz reports ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then /metrics serves the custom registry", func() {
			_ = do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "whodle_http_requests_total")
		})

		Convey("Then /stats merges service and scheduler state", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["pool_size"], ShouldEqual, float64(3))
			So(body["today_selected"], ShouldBeTrue)
			sched, ok := body["scheduler"].(map[string]any)
			So(ok, ShouldBeTrue)
			So(sched["last_outcome"], ShouldEqual, "succeeded")
		})

		Convey("Then wrong methods are not found", func() {
			So(do(mux, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/guess", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/admin/selection", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then unknown paths are not found", func() {
			So(do(mux, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a failing stats provider", t, func() {
		mux := newMux(&mockPuzzle{}, &mockTrigger{}, mockStats{err: errors.New("disk on fire")})
		w := do(mux, http.MethodGet, "/stats", "")

		Convey("Then internals are not leaked", func() {
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(errorCode(w), ShouldEqual, codeInternal)
			So(w.Body.String(), ShouldNotContainSubstring, "disk on fire")
		})
	})
}

func TestDailyHandler(t *testing.T) {
	Convey("Given the daily endpoint", t, func() {
		p := &mockPuzzle{}
		mux := newMux(p, &mockTrigger{}, mockStats{})

		Convey("When the variant is known", func() {
			w := do(mux, http.MethodGet, "/daily/Quote", "")

			Convey("Then the presentation is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got model.Presentation
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Variant, ShouldEqual, model.VariantQuote)
				So(got.QuoteText, ShouldEqual, "we build")
			})
		})

		Convey("When the variant is unknown", func() {
			w := do(mux, http.MethodGet, "/daily/audio", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, codeUnknownVariant)
		})

		Convey("When no selection exists yet", func() {
			p.presentErr = fmt.Errorf("lookup: %w", service.ErrNoSelectionForToday)
			w := do(mux, http.MethodGet, "/daily/classic", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, codeNoSelection)
		})

		Convey("When today's row is inconsistent", func() {
			p.presentErr = service.ErrInconsistentSelection
			w := do(mux, http.MethodGet, "/daily/photo", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(errorCode(w), ShouldEqual, codeInconsistentSelection)
		})
	})
}

func TestGuessHandler(t *testing.T) {
	Convey("Given the guess endpoint", t, func() {
		p := &mockPuzzle{}
		mux := newMux(p, &mockTrigger{}, mockStats{})

		Convey("When the body is valid", func() {
			w := do(mux, http.MethodPost, "/guess", `{"variant":"classic","candidate_id":1}`)

			Convey("Then the result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got model.GuessResult
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Exact, ShouldBeTrue)
				So(p.lastGuess, ShouldEqual, 1)
				So(p.lastVar, ShouldEqual, model.VariantClassic)
			})
		})

		cases := []struct {
			name string
			body string
			code string
		}{
			{"malformed json", `{"variant":`, codeBadRequest},
			{"unknown field", `{"variant":"classic","candidate_id":1,"x":1}`, codeBadRequest},
			{"missing id", `{"variant":"classic"}`, codeBadRequest},
			{"bad variant", `{"variant":"audio","candidate_id":1}`, codeUnknownVariant},
		}
		for _, tc := range cases {
			Convey("When the body has a "+tc.name, func() {
				w := do(mux, http.MethodPost, "/guess", tc.body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, tc.code)
			})
		}

		Convey("When the candidate is unknown", func() {
			p.guessErr = service.ErrUnknownCandidate
			w := do(mux, http.MethodPost, "/guess", `{"variant":"classic","candidate_id":99}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, codeUnknownCandidate)
		})
	})
}

func TestAdminHandler(t *testing.T) {
	Convey("Given the admin selection endpoint", t, func() {
		tr := &mockTrigger{}
		mux := newMux(&mockPuzzle{}, tr, mockStats{})

		Convey("When triggering a date", func() {
			w := do(mux, http.MethodPost, "/admin/selection", `{"date":"2026-04-01"}`)

			Convey("Then counts are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got scheduler.TriggerResult
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Added, ShouldEqual, 3)
				So(tr.date, ShouldEqual, today)
				So(tr.overwrite, ShouldBeFalse)
			})
		})

		Convey("When overwriting", func() {
			w := do(mux, http.MethodPost, "/admin/selection", `{"date":"2026-04-01","overwrite":true}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(tr.overwrite, ShouldBeTrue)
			So(w.Body.String(), ShouldContainSubstring, `"updated":3`)
		})

		Convey("When the date is missing or malformed", func() {
			So(do(mux, http.MethodPost, "/admin/selection", `{}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/admin/selection", `{"date":"01.04.2026"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a run is in progress", func() {
			tr.err = scheduler.ErrSelectionInProgress
			w := do(mux, http.MethodPost, "/admin/selection", `{"date":"2026-04-01"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(errorCode(w), ShouldEqual, codeSelectionInProgress)
		})

		Convey("When the scheduler is shutting down", func() {
			tr.err = scheduler.ErrSchedulerStopped
			w := do(mux, http.MethodPost, "/admin/selection", `{"date":"2026-04-01"}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(errorCode(w), ShouldEqual, codeShuttingDown)
		})

		Convey("When the pool is empty", func() {
			tr.err = service.ErrNoCandidates
			w := do(mux, http.MethodPost, "/admin/selection", `{"date":"2026-04-01"}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})
	})
}

func TestEndToEnd(t *testing.T) {
	Convey("Given a service and scheduler over a one-candidate pool", t, func() {
		store := repository.NewMemoryStore(repository.WithCandidates(model.Candidate{
			ID: 7, Name: "G", PartyShort: "ANO", Sex: "F", BirthDate: "1.1.1980",
			Quotes: []string{"hello"}, PictureRef: "/img/g.jpg",
		}))
		now := clock.NewFixed(today.Add(10 * time.Minute))
		svc, err := service.New(store, service.WithClock(now), service.WithSource(selection.NewSeededSource(1)))
		So(err, ShouldBeNil)
		sched, err := scheduler.New(svc, scheduler.WithClock(now))
		So(err, ShouldBeNil)

		mux := http.NewServeMux()
		NewServer(svc, sched, svc, sched).Register(context.Background(), mux)

		Convey("Then nothing is playable before the run", func() {
			So(do(mux, http.MethodGet, "/daily/quote", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When an admin triggers today's run", func() {
			w := do(mux, http.MethodPost, "/admin/selection", `{"date":"2026-04-01"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"added":3`)

			Convey("Then every variant is playable", func() {
				w := do(mux, http.MethodGet, "/daily/quote", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"quote_text":"hello"`)

				w = do(mux, http.MethodGet, "/daily/photo", "")
				So(w.Body.String(), ShouldContainSubstring, `"/img/g.jpg"`)
			})

			Convey("Then guessing the only candidate is exact", func() {
				w := do(mux, http.MethodPost, "/guess", `{"variant":"classic","candidate_id":7}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"exact":true`)
			})

			Convey("Then an unknown guess is a client error", func() {
				w := do(mux, http.MethodPost, "/guess", `{"variant":"classic","candidate_id":8}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then stats reflect the run", func() {
				w := do(mux, http.MethodGet, "/stats", "")
				So(w.Body.String(), ShouldContainSubstring, `"today_selected":true`)
				So(w.Body.String(), ShouldContainSubstring, `"last_outcome":"succeeded"`)
			})

			Convey("Then a second run without overwrite adds nothing", func() {
				w := do(mux, http.MethodPost, "/admin/selection", `{"date":"2026-04-01"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"added":0`)
			})
		})
	})
}

func TestRecover(t *testing.T) {
	Convey("Given a handler that panics", t, func() {
		h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}), logger.Get())

		Convey("Then the client gets a 500", func() {
			w := do(h, http.MethodGet, "/anything", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}
