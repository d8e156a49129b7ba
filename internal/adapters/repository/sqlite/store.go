// Package sqlite provides the durable SQLite implementation of the
// candidate, recency and daily-selection stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/whodle/internal/adapters/repository"
	"github.com/okian/whodle/internal/domain/model"
	"github.com/okian/whodle/pkg/clock"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence.
type Store struct {
	sqlDB *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := cleanPath +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutCandidate inserts or replaces a candidate and its quotes.
func (s *Store) PutCandidate(ctx context.Context, c model.Candidate) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if c.ID <= 0 {
		return fmt.Errorf("%w: candidate id must be positive", repository.ErrInvalidInput)
	}
	constituencies, err := encodeList(c.Constituencies)
	if err != nil {
		return err
	}
	educations, err := encodeList(c.Educations)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO candidates (
	id, name, party, party_short, sex, birth_date,
	constituencies, educations, education_level, picture_ref
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	party = excluded.party,
	party_short = excluded.party_short,
	sex = excluded.sex,
	birth_date = excluded.birth_date,
	constituencies = excluded.constituencies,
	educations = excluded.educations,
	education_level = excluded.education_level,
	picture_ref = excluded.picture_ref
`,
		c.ID, c.Name, c.Party, c.PartyShort, c.Sex, c.BirthDate,
		constituencies, educations, c.EducationLevel, c.PictureRef,
	); err != nil {
		return fmt.Errorf("put candidate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM candidate_quotes WHERE candidate_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear quotes: %w", err)
	}
	for i, q := range c.Quotes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO candidate_quotes (candidate_id, position, text) VALUES (?, ?, ?)`,
			c.ID, i, q,
		); err != nil {
			return fmt.Errorf("put quote: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit candidate: %w", err)
	}
	return nil
}

// LoadEligiblePool returns every candidate ordered by id.
func (s *Store) LoadEligiblePool(ctx context.Context) ([]model.Candidate, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return loadPool(ctx, s.sqlDB)
}

// GetCandidate returns one candidate with quotes and recency.
func (s *Store) GetCandidate(ctx context.Context, id int64) (model.Candidate, error) {
	if err := s.ready(ctx); err != nil {
		return model.Candidate{}, err
	}
	return getCandidate(ctx, s.sqlDB, id)
}

// CountCandidates returns the pool size.
func (s *Store) CountCandidates(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return n, nil
}

// Exists reports whether any selection row exists for date.
func (s *Store) Exists(ctx context.Context, date time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	return exists(ctx, s.sqlDB, date)
}

// GetSelection returns the row for (date, variant).
func (s *Store) GetSelection(ctx context.Context, date time.Time, variant model.Variant) (model.DailySelection, error) {
	if err := s.ready(ctx); err != nil {
		return model.DailySelection{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT date, variant, candidate_id, quote_text, created_at
FROM daily_selections
WHERE date = ? AND variant = ?
`, model.DateKey(date), string(variant))
	sel, err := scanSelection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailySelection{}, fmt.Errorf("selection %s/%s: %w", model.DateKey(date), variant, repository.ErrNotFound)
	}
	if err != nil {
		return model.DailySelection{}, fmt.Errorf("get selection: %w", err)
	}
	return sel, nil
}

// ListSelections returns all rows for date ordered by variant.
func (s *Store) ListSelections(ctx context.Context, date time.Time) ([]model.DailySelection, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT date, variant, candidate_id, quote_text, created_at
FROM daily_selections
WHERE date = ?
ORDER BY variant
`, model.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	var out []model.DailySelection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		out = append(out, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selections: %w", err)
	}
	return out, nil
}

// Begin starts an immediate (write-locking) transaction.
func (s *Store) Begin(ctx context.Context) (repository.Tx, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	return &storeTx{tx: tx}, nil
}

// storeTx implements repository.Tx on a *sql.Tx.
type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) LoadEligiblePool(ctx context.Context) ([]model.Candidate, error) {
	return loadPool(ctx, t.tx)
}

func (t *storeTx) GetRecency(ctx context.Context, candidateID int64, variant model.Variant) (model.RecencyRecord, bool, error) {
	var last string
	err := t.tx.QueryRowContext(ctx, `
SELECT last_selected FROM candidate_recency WHERE candidate_id = ? AND variant = ?
`, candidateID, string(variant)).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RecencyRecord{}, false, nil
	}
	if err != nil {
		return model.RecencyRecord{}, false, fmt.Errorf("get recency: %w", err)
	}
	d, err := parseDate(last)
	if err != nil {
		return model.RecencyRecord{}, false, err
	}
	return model.RecencyRecord{CandidateID: candidateID, Variant: variant, LastSelected: d}, true, nil
}

func (t *storeTx) UpsertRecency(ctx context.Context, candidateID int64, variant model.Variant, date time.Time) error {
	if _, err := t.tx.ExecContext(ctx, `
INSERT INTO candidate_recency (candidate_id, variant, last_selected) VALUES (?, ?, ?)
ON CONFLICT(candidate_id, variant) DO UPDATE SET last_selected = excluded.last_selected
`, candidateID, string(variant), model.DateKey(date)); err != nil {
		return fmt.Errorf("upsert recency: %w", err)
	}
	return nil
}

func (t *storeTx) Exists(ctx context.Context, date time.Time) (bool, error) {
	return exists(ctx, t.tx, date)
}

func (t *storeTx) DeleteFor(ctx context.Context, date time.Time) (int, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM daily_selections WHERE date = ?`, model.DateKey(date))
	if err != nil {
		return 0, fmt.Errorf("delete selections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete selections: %w", err)
	}
	return int(n), nil
}

func (t *storeTx) Insert(ctx context.Context, rows []model.DailySelection) error {
	for _, row := range rows {
		if err := repository.ValidateSelection(row); err != nil {
			return err
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = time.Now().UTC()
		}
		if _, err := t.tx.ExecContext(ctx, `
INSERT INTO daily_selections (date, variant, candidate_id, quote_text, created_at)
VALUES (?, ?, ?, ?, ?)
`, model.DateKey(row.Date), string(row.Variant), row.CandidateID, row.QuoteText, row.CreatedAt.UTC().UnixMilli()); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s/%s", repository.ErrDuplicateRow, model.DateKey(row.Date), row.Variant)
			}
			return fmt.Errorf("insert selection: %w", err)
		}
	}
	return nil
}

func (t *storeTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return repository.ErrTxDone
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *storeTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func exists(ctx context.Context, q queryer, date time.Time) (bool, error) {
	var found int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM daily_selections WHERE date = ? LIMIT 1`, model.DateKey(date)).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check selection: %w", err)
	}
	return true, nil
}

const candidateColumns = `id, name, party, party_short, sex, birth_date, constituencies, educations, education_level, picture_ref`

type scanner interface {
	Scan(dest ...any) error
}

func scanCandidate(sc scanner) (model.Candidate, error) {
	var c model.Candidate
	var constituencies, educations string
	if err := sc.Scan(
		&c.ID, &c.Name, &c.Party, &c.PartyShort, &c.Sex, &c.BirthDate,
		&constituencies, &educations, &c.EducationLevel, &c.PictureRef,
	); err != nil {
		return model.Candidate{}, err
	}
	var err error
	if c.Constituencies, err = decodeList(constituencies); err != nil {
		return model.Candidate{}, err
	}
	if c.Educations, err = decodeList(educations); err != nil {
		return model.Candidate{}, err
	}
	return c, nil
}

func scanSelection(sc scanner) (model.DailySelection, error) {
	var sel model.DailySelection
	var date, variant string
	var createdAt int64
	if err := sc.Scan(&date, &variant, &sel.CandidateID, &sel.QuoteText, &createdAt); err != nil {
		return model.DailySelection{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return model.DailySelection{}, err
	}
	sel.Date = d
	sel.Variant = model.Variant(variant)
	sel.CreatedAt = time.UnixMilli(createdAt).UTC()
	return sel, nil
}

func loadPool(ctx context.Context, q queryer) ([]model.Candidate, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+candidateColumns+` FROM candidates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	var pool []model.Candidate
	index := make(map[int64]int)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		index[c.ID] = len(pool)
		pool = append(pool, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	rows.Close()

	if err := joinQuotes(ctx, q, `SELECT candidate_id, text FROM candidate_quotes ORDER BY candidate_id, position`, nil, func(id int64, text string) {
		if i, ok := index[id]; ok {
			pool[i].Quotes = append(pool[i].Quotes, text)
		}
	}); err != nil {
		return nil, err
	}
	if err := joinRecency(ctx, q, `SELECT candidate_id, variant, last_selected FROM candidate_recency`, nil, func(id int64, v model.Variant, d time.Time) {
		if i, ok := index[id]; ok {
			setRecency(&pool[i], v, d)
		}
	}); err != nil {
		return nil, err
	}
	return pool, nil
}

func getCandidate(ctx context.Context, q queryer, id int64) (model.Candidate, error) {
	c, err := scanCandidate(q.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Candidate{}, fmt.Errorf("candidate %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return model.Candidate{}, fmt.Errorf("get candidate: %w", err)
	}
	if err := joinQuotes(ctx, q, `SELECT candidate_id, text FROM candidate_quotes WHERE candidate_id = ? ORDER BY position`, []any{id}, func(_ int64, text string) {
		c.Quotes = append(c.Quotes, text)
	}); err != nil {
		return model.Candidate{}, err
	}
	if err := joinRecency(ctx, q, `SELECT candidate_id, variant, last_selected FROM candidate_recency WHERE candidate_id = ?`, []any{id}, func(_ int64, v model.Variant, d time.Time) {
		setRecency(&c, v, d)
	}); err != nil {
		return model.Candidate{}, err
	}
	return c, nil
}

func joinQuotes(ctx context.Context, q queryer, query string, args []any, fn func(id int64, text string)) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return fmt.Errorf("scan quote: %w", err)
		}
		fn(id, text)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate quotes: %w", err)
	}
	return nil
}

func joinRecency(ctx context.Context, q queryer, query string, args []any, fn func(id int64, v model.Variant, d time.Time)) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list recency: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var variant, last string
		if err := rows.Scan(&id, &variant, &last); err != nil {
			return fmt.Errorf("scan recency: %w", err)
		}
		d, err := parseDate(last)
		if err != nil {
			return err
		}
		fn(id, model.Variant(variant), d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate recency: %w", err)
	}
	return nil
}

func setRecency(c *model.Candidate, v model.Variant, d time.Time) {
	if c.Recency == nil {
		c.Recency = make(map[model.Variant]time.Time)
	}
	c.Recency[v] = d
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return clock.Day(d), nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var (
	_ repository.Store           = (*Store)(nil)
	_ repository.CandidateWriter = (*Store)(nil)
	_ repository.Tx              = (*storeTx)(nil)
)
