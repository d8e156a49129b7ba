package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

type migration struct {
	name string
	up   string
}

// migrations run in order, each at most once.
var migrations = []migration{
	{
		name: "001_candidates.sql",
		up: `
CREATE TABLE IF NOT EXISTS candidates (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	party TEXT NOT NULL DEFAULT '',
	party_short TEXT NOT NULL DEFAULT '',
	sex TEXT NOT NULL DEFAULT '',
	birth_date TEXT NOT NULL DEFAULT '',
	constituencies TEXT NOT NULL DEFAULT '[]',
	educations TEXT NOT NULL DEFAULT '[]',
	education_level TEXT NOT NULL DEFAULT '',
	picture_ref TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS candidate_quotes (
	candidate_id INTEGER NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (candidate_id, position)
);
`,
	},
	{
		name: "002_recency.sql",
		up: `
CREATE TABLE IF NOT EXISTS candidate_recency (
	candidate_id INTEGER NOT NULL,
	variant TEXT NOT NULL,
	last_selected TEXT NOT NULL,
	PRIMARY KEY (candidate_id, variant)
);
`,
	},
	{
		name: "003_daily_selections.sql",
		up: `
CREATE TABLE IF NOT EXISTS daily_selections (
	date TEXT NOT NULL,
	variant TEXT NOT NULL,
	candidate_id INTEGER NOT NULL,
	quote_text TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	PRIMARY KEY (date, variant)
);
`,
	},
}

// applyMigrations executes pending migrations, one transaction each.
func applyMigrations(ctx context.Context, sqlDB *sql.DB) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}
	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	applied_at INTEGER NOT NULL
);
`, migrationTable)
	if _, err := sqlDB.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range migrations {
		applied, err := isApplied(ctx, sqlDB, m.name)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if applied {
			continue
		}

		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil && !isAlreadyExistsError(err) {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			m.name,
			time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

func isAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isApplied(ctx context.Context, sqlDB *sql.DB, name string) (bool, error) {
	var found int
	err := sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
