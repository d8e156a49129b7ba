// Package repository defines the candidate, recency and daily-selection
// store contracts and an in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/whodle/internal/domain/model"
)

// CandidateStore gives read access to the candidate pool.
type CandidateStore interface {
	// LoadEligiblePool returns every candidate with quotes, pictures and
	// recency joined in, ordered by ascending id.
	LoadEligiblePool(ctx context.Context) ([]model.Candidate, error)
}

// CandidateReader looks up single candidates.
type CandidateReader interface {
	// GetCandidate returns ErrNotFound for an unknown id.
	GetCandidate(ctx context.Context, id int64) (model.Candidate, error)
}

// RecencyTracker reads and stages per-variant recency.
type RecencyTracker interface {
	// GetRecency reports false when the candidate was never selected for variant.
	GetRecency(ctx context.Context, candidateID int64, variant model.Variant) (model.RecencyRecord, bool, error)
	// UpsertRecency creates or overwrites the last-selected date.
	UpsertRecency(ctx context.Context, candidateID int64, variant model.Variant, date time.Time) error
}

// SelectionChecker answers whether a day already has a selection.
type SelectionChecker interface {
	Exists(ctx context.Context, date time.Time) (bool, error)
}

// DailySelectionStore writes the picks for a day.
type DailySelectionStore interface {
	SelectionChecker
	// DeleteFor removes every row for date and returns how many were removed.
	DeleteFor(ctx context.Context, date time.Time) (int, error)
	Insert(ctx context.Context, rows []model.DailySelection) error
}

// SelectionReader reads committed selections.
type SelectionReader interface {
	SelectionChecker
	// GetSelection returns ErrNotFound when no row exists for (date, variant).
	GetSelection(ctx context.Context, date time.Time, variant model.Variant) (model.DailySelection, error)
	ListSelections(ctx context.Context, date time.Time) ([]model.DailySelection, error)
}

// Tx is a unit of work. Writes are invisible to readers until Commit.
// Rollback after Commit is a no-op.
type Tx interface {
	CandidateStore
	RecencyTracker
	DailySelectionStore
	Commit() error
	Rollback() error
}

// Store is the full persistence surface used by the service.
type Store interface {
	CandidateStore
	CandidateReader
	SelectionReader
	// Begin starts a unit of work.
	Begin(ctx context.Context) (Tx, error)
	// CountCandidates returns the size of the pool.
	CountCandidates(ctx context.Context) (int, error)
}

// CandidateWriter is used by ingestion tooling; the service never writes candidates.
type CandidateWriter interface {
	PutCandidate(ctx context.Context, c model.Candidate) error
}
