package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"lantern.fyi/grantmatch/internal/cli"
	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/export"
	"lantern.fyi/grantmatch/internal/globaltime"
	"lantern.fyi/grantmatch/internal/logging"
)

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	source := fs.String("source", "", "Filter by source (empty for all)")
	status := fs.String("status", "", "Filter by status (empty for all)")
	limit := fs.Int("limit", 1000, "Maximum records to export")
	outPath := fs.String("out", "", "Output file (defaults to opportunities-YYYY-MM-DD.xlsx)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit < 1 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 1")
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

	svc := export.NewService(pool, logger)
	data, err := svc.OpportunitiesXLSX(ctx, db.OpportunityListOptions{
		Source: strings.TrimSpace(strings.ToLower(*source)),
		Status: strings.TrimSpace(strings.ToLower(*status)),
		Limit:  *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		return 1
	}

	path := strings.TrimSpace(*outPath)
	if path == "" {
		path = fmt.Sprintf("opportunities-%s.xlsx", globaltime.UTC().Format("2006-01-02"))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
		return 1
	}

	fmt.Printf("wrote %s (%d bytes)\n", path, len(data))
	return 0
}
