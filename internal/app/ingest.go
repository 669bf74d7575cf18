package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"lantern.fyi/grantmatch/internal/cli"
	"lantern.fyi/grantmatch/internal/ingest"
	"lantern.fyi/grantmatch/internal/logging"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	source := fs.String("source", "all", "Source to ingest: grants.gov, sam.gov or all")
	maxRecords := fs.Int("max-records", 0, "Override the per-pass record limit (0 uses config)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "ingest does not accept positional arguments")
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	connectors, err := buildConnectors(cfg, *source, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	limit := cfg.IngestMaxRecords
	if *maxRecords > 0 {
		limit = *maxRecords
	}

	svc := ingest.NewService(pool, pool, logger, cfg.IngestPageSize, limit)

	exitCode := 0
	for _, connector := range connectors {
		result, err := svc.RunPass(ctx, connector)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest %s failed: %v\n", connector.Name(), err)
			exitCode = 1
			if result == nil {
				continue
			}
		}
		fmt.Printf("source=%s status=%s fetched=%d new=%d updated=%d merged=%d errors=%d\n",
			result.Source, result.Status,
			result.Counters.Fetched, result.Counters.New,
			result.Counters.Updated, result.Counters.Merged, result.Counters.Errors)
	}

	return exitCode
}
