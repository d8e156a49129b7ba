package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/whodle/internal/seed"
	"github.com/okian/whodle/pkg/logger"
)

func main() {
	var (
		dbPath  = flag.String("db", "data/whodle.db", "SQLite database to seed")
		file    = flag.String("file", "candidates.json", "JSON array of candidates")
		dryRun  = flag.Bool("dry-run", false, "Parse and validate the file without writing")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seed.Run(ctx, seed.Config{DBPath: *dbPath, File: *file, DryRun: *dryRun}); err != nil {
		logger.Get().Error(ctx, "seed failed", logger.Error(err))
		os.Exit(1)
	}
}
