package seed

import (
	"context"
	"fmt"

	"github.com/okian/whodle/internal/adapters/repository/sqlite"
	"github.com/okian/whodle/pkg/logger"
	"github.com/okian/whodle/pkg/metrics"
)

// Run parses cfg.File and, unless DryRun is set, upserts every candidate
// into the SQLite store at cfg.DBPath.
func Run(ctx context.Context, cfg Config) error {
	log := logger.Get().Named("seed")

	candidates, err := ParseFile(cfg.File)
	if err != nil {
		return err
	}
	log.Info(ctx, "seed file parsed",
		logger.String("file", cfg.File),
		logger.Int("candidates", len(candidates)),
	)
	if cfg.DryRun {
		return nil
	}

	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	n, err := Load(ctx, store, candidates)
	if err != nil {
		metrics.RecordErrorByComponent("seed", "put_candidate")
		return err
	}
	total, err := store.CountCandidates(ctx)
	if err != nil {
		return fmt.Errorf("count candidates: %w", err)
	}
	log.Info(ctx, "candidates stored",
		logger.String("db_path", cfg.DBPath),
		logger.Int("written", n),
		logger.Int("pool_size", total),
	)
	return nil
}
