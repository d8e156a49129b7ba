package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/pkg/clock"
)

type recencyKey struct {
	candidateID int64
	variant     model.Variant
}

type selectionKey struct {
	date    string
	variant model.Variant
}

// MemoryStore implements Store in process memory. Transactions are
// serialised: Begin blocks until the previous Tx finishes.
type MemoryStore struct {
	mu         sync.RWMutex
	writer     sync.Mutex
	candidates map[int64]model.Candidate
	recency    map[recencyKey]time.Time
	selections map[selectionKey]model.DailySelection
}

// NewMemoryStore creates an empty store configured by opts.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		candidates: make(map[int64]model.Candidate),
		recency:    make(map[recencyKey]time.Time),
		selections: make(map[selectionKey]model.DailySelection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutCandidate inserts or replaces a candidate. Recency on c is ignored.
func (s *MemoryStore) PutCandidate(ctx context.Context, c model.Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID <= 0 {
		return fmt.Errorf("%w: candidate id must be positive", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Recency = nil
	s.candidates[c.ID] = cloneCandidate(c)
	return nil
}

// LoadEligiblePool returns all candidates in ascending id order.
func (s *MemoryStore) LoadEligiblePool(ctx context.Context) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poolLocked(nil), nil
}

// GetCandidate returns one candidate with recency joined in.
func (s *MemoryStore) GetCandidate(ctx context.Context, id int64) (model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return model.Candidate{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[id]
	if !ok {
		return model.Candidate{}, fmt.Errorf("candidate %d: %w", id, ErrNotFound)
	}
	return s.withRecencyLocked(c, nil), nil
}

// CountCandidates returns the pool size.
func (s *MemoryStore) CountCandidates(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidates), nil
}

// Exists reports whether any committed selection exists for date.
func (s *MemoryStore) Exists(ctx context.Context, date time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := model.DateKey(date)
	for k := range s.selections {
		if k.date == key {
			return true, nil
		}
	}
	return false, nil
}

// GetSelection returns the committed selection for (date, variant).
func (s *MemoryStore) GetSelection(ctx context.Context, date time.Time, variant model.Variant) (model.DailySelection, error) {
	if err := ctx.Err(); err != nil {
		return model.DailySelection{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.selections[selectionKey{date: model.DateKey(date), variant: variant}]
	if !ok {
		return model.DailySelection{}, fmt.Errorf("selection %s/%s: %w", model.DateKey(date), variant, ErrNotFound)
	}
	return row, nil
}

// ListSelections returns the committed rows for date ordered by variant.
func (s *MemoryStore) ListSelections(ctx context.Context, date time.Time) ([]model.DailySelection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := model.DateKey(date)
	var rows []model.DailySelection
	for k, row := range s.selections {
		if k.date == key {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Variant < rows[j].Variant })
	return rows, nil
}

// Begin starts a unit of work, waiting for any other to finish first.
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.writer.Lock()
	return &memoryTx{
		store:   s,
		recency: make(map[recencyKey]time.Time),
		deleted: make(map[string]bool),
		inserts: make(map[selectionKey]model.DailySelection),
	}, nil
}

// poolLocked must be called with s.mu held.
func (s *MemoryStore) poolLocked(staged map[recencyKey]time.Time) []model.Candidate {
	pool := make([]model.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		pool = append(pool, s.withRecencyLocked(c, staged))
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool
}

func (s *MemoryStore) withRecencyLocked(c model.Candidate, staged map[recencyKey]time.Time) model.Candidate {
	out := cloneCandidate(c)
	for _, v := range model.Variants {
		key := recencyKey{candidateID: c.ID, variant: v}
		last, ok := staged[key]
		if !ok {
			last, ok = s.recency[key]
		}
		if ok {
			if out.Recency == nil {
				out.Recency = make(map[model.Variant]time.Time)
			}
			out.Recency[v] = last
		}
	}
	return out
}

func cloneCandidate(c model.Candidate) model.Candidate {
	c.Constituencies = append([]string(nil), c.Constituencies...)
	c.Educations = append([]string(nil), c.Educations...)
	c.Quotes = append([]string(nil), c.Quotes...)
	if c.Recency != nil {
		r := make(map[model.Variant]time.Time, len(c.Recency))
		for k, v := range c.Recency {
			r[k] = v
		}
		c.Recency = r
	}
	return c
}

// memoryTx stages writes until Commit.
type memoryTx struct {
	store   *MemoryStore
	done    bool
	recency map[recencyKey]time.Time
	deleted map[string]bool
	inserts map[selectionKey]model.DailySelection
}

func (t *memoryTx) check(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	return ctx.Err()
}

func (t *memoryTx) LoadEligiblePool(ctx context.Context) ([]model.Candidate, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.poolLocked(t.recency), nil
}

func (t *memoryTx) GetRecency(ctx context.Context, candidateID int64, variant model.Variant) (model.RecencyRecord, bool, error) {
	if err := t.check(ctx); err != nil {
		return model.RecencyRecord{}, false, err
	}
	key := recencyKey{candidateID: candidateID, variant: variant}
	last, ok := t.recency[key]
	if !ok {
		t.store.mu.RLock()
		last, ok = t.store.recency[key]
		t.store.mu.RUnlock()
	}
	if !ok {
		return model.RecencyRecord{}, false, nil
	}
	return model.RecencyRecord{CandidateID: candidateID, Variant: variant, LastSelected: last}, true, nil
}

func (t *memoryTx) UpsertRecency(ctx context.Context, candidateID int64, variant model.Variant, date time.Time) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.recency[recencyKey{candidateID: candidateID, variant: variant}] = clock.Day(date)
	return nil
}

func (t *memoryTx) Exists(ctx context.Context, date time.Time) (bool, error) {
	if err := t.check(ctx); err != nil {
		return false, err
	}
	key := model.DateKey(date)
	for k := range t.inserts {
		if k.date == key {
			return true, nil
		}
	}
	if t.deleted[key] {
		return false, nil
	}
	return t.store.Exists(ctx, date)
}

func (t *memoryTx) DeleteFor(ctx context.Context, date time.Time) (int, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	key := model.DateKey(date)
	n := 0
	for k := range t.inserts {
		if k.date == key {
			delete(t.inserts, k)
			n++
		}
	}
	if !t.deleted[key] {
		t.store.mu.RLock()
		for k := range t.store.selections {
			if k.date == key {
				n++
			}
		}
		t.store.mu.RUnlock()
		t.deleted[key] = true
	}
	return n, nil
}

func (t *memoryTx) Insert(ctx context.Context, rows []model.DailySelection) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	for _, row := range rows {
		if err := ValidateSelection(row); err != nil {
			return err
		}
		key := selectionKey{date: model.DateKey(row.Date), variant: row.Variant}
		if _, ok := t.inserts[key]; ok {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateRow, key.date, key.variant)
		}
		if !t.deleted[key.date] {
			t.store.mu.RLock()
			_, ok := t.store.selections[key]
			t.store.mu.RUnlock()
			if ok {
				return fmt.Errorf("%w: %s/%s", ErrDuplicateRow, key.date, key.variant)
			}
		}
		row.Date = clock.Day(row.Date)
		t.inserts[key] = row
	}
	return nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	s := t.store
	s.mu.Lock()
	for date := range t.deleted {
		for k := range s.selections {
			if k.date == date {
				delete(s.selections, k)
			}
		}
	}
	for k, row := range t.inserts {
		s.selections[k] = row
	}
	for k, d := range t.recency {
		s.recency[k] = d
	}
	s.mu.Unlock()
	t.finish()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memoryTx) finish() {
	t.done = true
	t.store.writer.Unlock()
}

// ValidateSelection checks the rules every stored row must satisfy.
func ValidateSelection(row model.DailySelection) error {
	if row.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if _, err := model.ParseVariant(string(row.Variant)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if row.CandidateID <= 0 {
		return fmt.Errorf("%w: candidate id is required", ErrInvalidInput)
	}
	if row.Variant != model.VariantQuote && strings.TrimSpace(row.QuoteText) != "" {
		return fmt.Errorf("%w: quote text only applies to the quote variant", ErrInvalidInput)
	}
	return nil
}
