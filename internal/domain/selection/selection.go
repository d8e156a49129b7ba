// Package selection picks the daily target from an eligible candidate pool
// using recency-weighted randomness.
package selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/pkg/clock"
)

// neverSelectedGap is the gap assigned to candidates never chosen for a
// variant. It exceeds any real gap so they always outweigh repeats.
const neverSelectedGap = 1 << 20

// Selector chooses one candidate per call.
type Selector interface {
	Select(ctx context.Context, pool []model.Candidate, variant model.Variant, today time.Time) (model.Candidate, error)
}

// Gap returns the number of days since c was last chosen for variant.
func Gap(c model.Candidate, variant model.Variant, today time.Time) int {
	last, ok := c.LastSelected(variant)
	if !ok {
		return neverSelectedGap
	}
	gap := clock.DaysBetween(last, today)
	if gap < 0 {
		return 0
	}
	if gap > neverSelectedGap {
		return neverSelectedGap
	}
	return gap
}

// Weight returns (gap+1)^2 for c. It is always at least 1.
func Weight(c model.Candidate, variant model.Variant, today time.Time) int {
	g := Gap(c, variant, today) + 1
	return g * g
}

// WeightedSelector implements Selector with the squared-gap weighting.
type WeightedSelector struct {
	src Source
}

// NewWeightedSelector returns a selector drawing from src.
func NewWeightedSelector(src Source) *WeightedSelector {
	return &WeightedSelector{src: src}
}

// Select draws one candidate. Candidates are walked in ascending id order so
// a given draw always maps to the same candidate.
func (s *WeightedSelector) Select(ctx context.Context, pool []model.Candidate, variant model.Variant, today time.Time) (model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return model.Candidate{}, err
	}
	if len(pool) == 0 {
		return model.Candidate{}, fmt.Errorf("%w: variant %s", ErrEmptyPool, variant)
	}

	ordered := make([]model.Candidate, len(pool))
	copy(ordered, pool)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	cumulative := make([]int, len(ordered))
	total := 0
	for i, c := range ordered {
		total += Weight(c, variant, today)
		cumulative[i] = total
	}

	r := s.src.Next(total)
	if r < 0 || r >= total {
		return model.Candidate{}, fmt.Errorf("%w: draw %d outside [0,%d)", ErrBadDraw, r, total)
	}
	for i, cw := range cumulative {
		if cw > r {
			return ordered[i], nil
		}
	}
	// unreachable: r < total == cumulative[last]
	return ordered[len(ordered)-1], nil
}
