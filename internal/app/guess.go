package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/whodle/internal/adapters/repository"
	"github.com/okian/whodle/internal/domain/evaluation"
	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/pkg/logger"
	"github.com/okian/whodle/pkg/metrics"
)

// ProcessGuess scores guessedID against today's target for variant.
// It never writes.
func (s *Service) ProcessGuess(ctx context.Context, variant model.Variant, guessedID int64) (model.GuessResult, error) {
	res, err := s.processGuess(ctx, variant, guessedID)
	if err != nil {
		metrics.RecordGuessError(variant.String(), guessErrorKind(err))
		if errors.Is(err, ErrInconsistentSelection) {
			s.logger.Error(ctx, "today's selection is inconsistent",
				logger.String("variant", variant.String()),
				logger.Error(err),
			)
		}
		return model.GuessResult{}, err
	}
	metrics.RecordGuess(variant.String(), res.Exact)
	return res, nil
}

func (s *Service) processGuess(ctx context.Context, variant model.Variant, guessedID int64) (model.GuessResult, error) {
	if _, err := model.ParseVariant(variant.String()); err != nil {
		return model.GuessResult{}, err
	}
	today := s.clock.TodayUtc()
	sel, err := s.todaysSelection(ctx, variant)
	if err != nil {
		return model.GuessResult{}, err
	}

	guess, err := s.store.GetCandidate(ctx, guessedID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.GuessResult{}, fmt.Errorf("%w: %d", ErrUnknownCandidate, guessedID)
	}
	if err != nil {
		return model.GuessResult{}, fmt.Errorf("load guessed candidate: %w", err)
	}

	target, err := s.target(ctx, sel)
	if err != nil {
		return model.GuessResult{}, err
	}
	return evaluation.Evaluate(variant, target, guess, today), nil
}

// GetTodaysPresentation returns what guessers see for variant today.
func (s *Service) GetTodaysPresentation(ctx context.Context, variant model.Variant) (model.Presentation, error) {
	if _, err := model.ParseVariant(variant.String()); err != nil {
		return model.Presentation{}, err
	}
	sel, err := s.todaysSelection(ctx, variant)
	if err != nil {
		return model.Presentation{}, err
	}
	target, err := s.target(ctx, sel)
	if err != nil {
		return model.Presentation{}, err
	}

	p := model.Presentation{Date: model.DateKey(sel.Date), Variant: variant}
	switch variant {
	case model.VariantQuote:
		p.QuoteText = strings.TrimSpace(sel.QuoteText)
		if p.QuoteText == "" {
			return model.Presentation{}, fmt.Errorf("%w: quote selection for candidate %d has no text", ErrInconsistentSelection, target.ID)
		}
	case model.VariantPhoto:
		if !target.HasPicture() {
			return model.Presentation{}, fmt.Errorf("%w: candidate %d has no picture", ErrInconsistentSelection, target.ID)
		}
		p.PictureRef = strings.TrimSpace(target.PictureRef)
	case model.VariantClassic:
		p.Classic = &model.ClassicSummary{Attributes: append([]model.Attribute(nil), model.ClassicAttributes...)}
	}
	return p, nil
}

func (s *Service) todaysSelection(ctx context.Context, variant model.Variant) (model.DailySelection, error) {
	sel, err := s.store.GetSelection(ctx, s.clock.TodayUtc(), variant)
	if errors.Is(err, repository.ErrNotFound) {
		return model.DailySelection{}, fmt.Errorf("%w: %s", ErrNoSelectionForToday, variant)
	}
	if err != nil {
		return model.DailySelection{}, fmt.Errorf("load selection: %w", err)
	}
	return sel, nil
}

func (s *Service) target(ctx context.Context, sel model.DailySelection) (model.Candidate, error) {
	c, err := s.store.GetCandidate(ctx, sel.CandidateID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Candidate{}, fmt.Errorf("%w: selected candidate %d is missing", ErrInconsistentSelection, sel.CandidateID)
	}
	if err != nil {
		return model.Candidate{}, fmt.Errorf("load target: %w", err)
	}
	return c, nil
}

func guessErrorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrUnknownVariant):
		return "unknown_variant"
	case errors.Is(err, ErrNoSelectionForToday):
		return "no_selection"
	case errors.Is(err, ErrUnknownCandidate):
		return "unknown_candidate"
	case errors.Is(err, ErrInconsistentSelection):
		return "inconsistent_selection"
	default:
		return "storage"
	}
}
