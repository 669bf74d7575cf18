package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"lantern.fyi/grantmatch/internal/auth"
	"lantern.fyi/grantmatch/internal/cli"
	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/embed"
	"lantern.fyi/grantmatch/internal/logging"
	"lantern.fyi/grantmatch/internal/match"
)

func runMatch(args []string) int {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	email := fs.String("email", "", "Profile email to match for")
	query := fs.String("query", "", "Ad-hoc query text (overrides the profile text)")
	topK := fs.Int("top-k", 10, "Number of results")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*email) == "" && strings.TrimSpace(*query) == "" {
		fmt.Fprintln(os.Stderr, "either --email or --query is required")
		return 2
	}
	if *topK < 1 {
		fmt.Fprintln(os.Stderr, "--top-k must be >= 1")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
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

	var profile *db.UserProfile
	if trimmed := auth.NormalizeEmail(*email); trimmed != "" {
		loaded, err := pool.GetProfileByEmail(ctx, trimmed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load profile: %v\n", err)
			return 1
		}
		if loaded == nil {
			fmt.Fprintf(os.Stderr, "No profile found for %s\n", trimmed)
			return 1
		}
		profile = loaded
	}

	svc := match.NewService(pool, embedder, logger)
	matches, err := svc.MatchProfile(ctx, profile, strings.TrimSpace(*query), *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(matches); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		agency := ""
		if m.Opportunity.Agency != nil {
			agency = *m.Opportunity.Agency
		}
		rows = append(rows, []string{
			fmt.Sprintf("%.4f", m.Score),
			m.Opportunity.Source,
			truncateForTable(m.Opportunity.Title, 60),
			truncateForTable(agency, 32),
			m.Opportunity.OpportunityUUID,
		})
	}
	if err := writeTable([]string{"score", "source", "title", "agency", "uuid"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	return 0
}
