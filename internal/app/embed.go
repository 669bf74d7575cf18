package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"lantern.fyi/grantmatch/internal/cli"
	"lantern.fyi/grantmatch/internal/embed"
	"lantern.fyi/grantmatch/internal/logging"
)

func runEmbed(args []string) int {
	fs := flag.NewFlagSet("embed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	limit := fs.Int("limit", 500, "Maximum records to embed per target")
	target := fs.String("target", "all", "What to backfill: opportunities, profiles or all")

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
	switch *target {
	case "opportunities", "profiles", "all":
	default:
		fmt.Fprintln(os.Stderr, "--target must be opportunities, profiles or all")
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

	embedder, err := embed.NewOpenAIEmbedder(cfg.EmbeddingHost, cfg.EmbeddingModel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize embedder: %v\n", err)
		return 1
	}

	svc := embed.NewService(pool, pool, embedder, logger)

	if *target == "opportunities" || *target == "all" {
		result, err := svc.BackfillOpportunities(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Opportunity backfill failed: %v\n", err)
			return 1
		}
		fmt.Printf("opportunities: processed=%d embedded=%d skipped=%d failed=%d\n",
			result.Processed, result.Embedded, result.Skipped, result.Failed)
	}

	if *target == "profiles" || *target == "all" {
		result, err := svc.BackfillProfiles(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Profile backfill failed: %v\n", err)
			return 1
		}
		fmt.Printf("profiles: processed=%d embedded=%d skipped=%d failed=%d\n",
			result.Processed, result.Embedded, result.Skipped, result.Failed)
	}

	return 0
}
