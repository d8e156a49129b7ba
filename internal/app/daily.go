package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/whodle/internal/adapters/repository"
	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/internal/domain/selection"
	"github.com/okian/whodle/pkg/clock"
	"github.com/okian/whodle/pkg/logger"
	"github.com/okian/whodle/pkg/metrics"
)

// SelectionOutcome reports what a RunDailySelection call did.
// Updated counts rows replaced by an overwrite; Added counts net new rows.
type SelectionOutcome struct {
	RunID     string
	Date      time.Time
	Skipped   bool
	Added     int
	Updated   int
	Fallbacks []model.Variant
}

type pick struct {
	candidate model.Candidate
	fallback  bool
}

func newRunID() string { return uuid.NewString() }

// RunDailySelection picks one candidate per variant for date and commits the
// rows and recency updates in one transaction. An existing selection is left
// untouched unless overwrite is set; in that case it is deleted first.
func (s *Service) RunDailySelection(ctx context.Context, date time.Time, overwrite bool) (SelectionOutcome, error) {
	start := time.Now()
	day := clock.Day(date)
	out := SelectionOutcome{RunID: s.newRunID(), Date: day}
	log := s.logger.With(
		logger.String("run_id", out.RunID),
		logger.String("date", model.DateKey(day)),
	)

	err := s.runDailySelection(ctx, log, &out, overwrite)
	outcome := metrics.OutcomeSucceeded
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailed
		metrics.RecordErrorByComponent("selection", errorKind(err))
		log.Error(ctx, "daily selection failed", logger.Error(err))
	case out.Skipped:
		outcome = metrics.OutcomeSkipped
		log.Info(ctx, "daily selection already exists, skipping")
	default:
		metrics.RecordSelectionRows(out.Added, out.Updated)
		log.Info(ctx, "daily selection committed",
			logger.Int("added", out.Added),
			logger.Int("updated", out.Updated),
			logger.Any("fallbacks", out.Fallbacks),
		)
		s.publish(ctx, log, out)
	}
	metrics.RecordSelectionRun(outcome, time.Since(start).Seconds())
	if err != nil {
		return SelectionOutcome{RunID: out.RunID, Date: day}, err
	}
	return out, nil
}

func (s *Service) runDailySelection(ctx context.Context, log logger.Logger, out *SelectionOutcome, overwrite bool) error {
	day := out.Date
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := tx.Exists(ctx, day)
	if err != nil {
		return fmt.Errorf("check existing selection: %w", err)
	}
	if exists && !overwrite {
		out.Skipped = true
		return nil
	}
	if exists {
		n, err := tx.DeleteFor(ctx, day)
		if err != nil {
			return fmt.Errorf("delete existing selection: %w", err)
		}
		out.Updated = n
	}

	pool, err := tx.LoadEligiblePool(ctx)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	metrics.UpdateCandidatePoolSize(len(pool))
	if len(pool) == 0 {
		return ErrNoCandidates
	}

	picks, err := s.pickAll(ctx, pool, day)
	if err != nil {
		return err
	}

	now := s.clock.UtcNow()
	rows := make([]model.DailySelection, 0, len(model.Variants))
	for _, v := range model.Variants {
		p := picks[v]
		row := model.DailySelection{Date: day, Variant: v, CandidateID: p.candidate.ID, CreatedAt: now}
		if v == model.VariantQuote {
			quote, err := s.pickQuote(p.candidate)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v, err)
			}
			row.QuoteText = quote
		}
		if p.fallback {
			out.Fallbacks = append(out.Fallbacks, v)
			metrics.RecordSelectionFallback(v.String())
			log.Warn(ctx, "variant fell back to classic pick", logger.String("variant", v.String()))
		}
		rows = append(rows, row)
	}

	if err := tx.Insert(ctx, rows); err != nil {
		return fmt.Errorf("insert selection: %w", err)
	}
	for _, row := range rows {
		if err := tx.UpsertRecency(ctx, row.CandidateID, row.Variant, day); err != nil {
			return fmt.Errorf("variant %s: upsert recency: %w", row.Variant, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	out.Added = len(rows) - out.Updated
	if out.Added < 0 {
		out.Added = 0
	}
	return nil
}

// pickAll runs the selector per variant. Classic draws from the whole pool
// and must succeed; quote and photo draw from their eligible subsets and fall
// back to the classic pick when the subset is empty.
func (s *Service) pickAll(ctx context.Context, pool []model.Candidate, day time.Time) (map[model.Variant]pick, error) {
	classic, err := s.selector.Select(ctx, pool, model.VariantClassic, day)
	if err != nil {
		return nil, fmt.Errorf("variant %s: %w", model.VariantClassic, err)
	}
	picks := map[model.Variant]pick{model.VariantClassic: {candidate: classic}}

	for _, v := range []model.Variant{model.VariantQuote, model.VariantPhoto} {
		c, err := s.selector.Select(ctx, eligible(pool, v), v, day)
		switch {
		case errors.Is(err, selection.ErrEmptyPool):
			picks[v] = pick{candidate: classic, fallback: true}
		case err != nil:
			return nil, fmt.Errorf("variant %s: %w", v, err)
		default:
			picks[v] = pick{candidate: c}
		}
	}
	return picks, nil
}

func eligible(pool []model.Candidate, v model.Variant) []model.Candidate {
	var out []model.Candidate
	for _, c := range pool {
		switch v {
		case model.VariantQuote:
			if !c.HasQuote() {
				continue
			}
		case model.VariantPhoto:
			if !c.HasPicture() {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// pickQuote chooses one non-blank quote of c, or "" when it has none.
func (s *Service) pickQuote(c model.Candidate) (string, error) {
	quotes := c.NonBlankQuotes()
	if len(quotes) == 0 {
		return "", nil
	}
	i := s.source.Next(len(quotes))
	if i < 0 || i >= len(quotes) {
		return "", fmt.Errorf("%w: quote index %d of %d", selection.ErrBadDraw, i, len(quotes))
	}
	return quotes[i], nil
}

func (s *Service) publish(ctx context.Context, log logger.Logger, out SelectionOutcome) {
	ev := model.SelectionEvent{
		RunID:     out.RunID,
		Date:      model.DateKey(out.Date),
		Variants:  model.Variants,
		Added:     out.Added,
		Updated:   out.Updated,
		Fallbacks: out.Fallbacks,
		At:        s.clock.UtcNow(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		metrics.RecordEventPublished(false)
		metrics.RecordErrorByComponent("publisher", "enqueue_failed")
		log.Warn(ctx, "selection event not published", logger.Error(err))
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, selection.ErrEmptyPool), errors.Is(err, selection.ErrBadDraw):
		return "selection"
	case errors.Is(err, repository.ErrDuplicateRow):
		return "duplicate_row"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "storage"
	}
}
