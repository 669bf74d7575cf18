package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lantern.fyi/grantmatch/internal/cli"
	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/embed"
	"lantern.fyi/grantmatch/internal/ingest"
	"lantern.fyi/grantmatch/internal/logging"
	"lantern.fyi/grantmatch/internal/scheduler"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	intervalHours := fs.Int("interval-hours", 0, "Hours between ingest cycles (defaults to config)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("watch failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	embedder, err := embed.NewOpenAIEmbedder(cfg.EmbeddingHost, cfg.EmbeddingModel)
	if err != nil {
		logger.Error().Err(err).Msg("embedder initialization failed")
		fmt.Fprintf(os.Stderr, "Failed to initialize embedder: %v\n", err)
		return 1
	}

	connectors, err := buildConnectors(cfg, "all", logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	interval := cfg.IngestIntervalHours
	if *intervalHours > 0 {
		interval = *intervalHours
	}

	ingestor := ingest.NewService(pool, pool, logger, cfg.IngestPageSize, cfg.IngestMaxRecords)
	embeds := embed.NewService(pool, pool, embedder, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(pool, ingestor, embeds, connectors, interval, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
		fmt.Fprintf(os.Stderr, "Scheduler failed: %v\n", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	<-sigCh
	cancel()
	sched.Stop()

	return 0
}
