// Package service implements the daily selection orchestrator and the guess
// service the HTTP API and scheduler depend on.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/whodle/internal/adapters/repository"
	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/internal/domain/selection"
	"github.com/okian/whodle/pkg/clock"
	"github.com/okian/whodle/pkg/logger"
)

// Publisher receives an event after every committed selection.
type Publisher interface {
	Publish(ctx context.Context, e model.SelectionEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, model.SelectionEvent) error { return nil }

// Service composes the stores, the selection algorithm and the evaluation
// engine. It holds no mutable state of its own; single-writer semantics for
// RunDailySelection are provided by the scheduler.
type Service struct {
	store     repository.Store
	clock     clock.Clock
	source    selection.Source
	selector  selection.Selector
	publisher Publisher
	newRunID  func() string

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSource sets the randomness used for picks and quote choice.
func WithSource(src selection.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithSelector replaces the weighted selector. It defaults to one over the
// configured Source.
func WithSelector(sel selection.Selector) Option {
	return func(s *Service) {
		if sel != nil {
			s.selector = sel
		}
	}
}

// WithPublisher sets where selection-completed events go.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithRunIDs overrides run id generation, mostly for tests.
func WithRunIDs(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newRunID = fn
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	s := &Service{
		store:     store,
		clock:     clock.NewReal(),
		publisher: nopPublisher{},
		newRunID:  newRunID,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.source == nil {
		src, err := selection.NewRandomSource()
		if err != nil {
			return nil, fmt.Errorf("seed selection source: %w", err)
		}
		s.source = src
	}
	if s.selector == nil {
		s.selector = selection.NewWeightedSelector(s.source)
	}
	return s, nil
}

// Stats summarises pool size and today's selection.
type Stats struct {
	Date          string          `json:"date"`
	PoolSize      int             `json:"pool_size"`
	TodaySelected bool            `json:"today_selected"`
	Variants      []model.Variant `json:"variants"`
}

// Stats reports pool size and which variants have a row for today.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	today := s.clock.TodayUtc()
	n, err := s.store.CountCandidates(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count candidates: %w", err)
	}
	rows, err := s.store.ListSelections(ctx, today)
	if err != nil {
		return Stats{}, fmt.Errorf("list selections: %w", err)
	}
	st := Stats{Date: model.DateKey(today), PoolSize: n, TodaySelected: len(rows) > 0, Variants: []model.Variant{}}
	for _, r := range rows {
		st.Variants = append(st.Variants, r.Variant)
	}
	return st, nil
}

// SelectionExists reports whether date already has a selection. The
// scheduler uses it for its "already ran today" check.
func (s *Service) SelectionExists(ctx context.Context, date time.Time) (bool, error) {
	return s.store.Exists(ctx, clock.Day(date))
}
