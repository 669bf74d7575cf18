package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"lantern.fyi/grantmatch/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, _, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	stats, err := pool.GetSystemStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	sourceRows := make([][]string, 0, len(stats.Sources)+1)
	for _, row := range stats.Sources {
		sourceRows = append(sourceRows, []string{
			row.Source,
			fmt.Sprintf("%d", row.OpportunityCount),
			fmt.Sprintf("%d", row.ActiveCount),
			fmt.Sprintf("%d", row.EmbeddedCount),
			fmt.Sprintf("%d", row.RollingCount),
			formatUTCTimestampPtr(row.LatestUpdatedAt),
		})
	}
	sourceRows = append(sourceRows, []string{
		"TOTAL",
		fmt.Sprintf("%d", stats.TotalOpportunities),
		fmt.Sprintf("%d", stats.ActiveCount),
		fmt.Sprintf("%d", stats.EmbeddedCount),
		"",
		"",
	})

	if err := writeTable([]string{"source", "opportunities", "active", "embedded", "rolling", "last_updated"}, sourceRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render source table: %v\n", err)
		return 1
	}

	fmt.Println()
	summaryRows := [][]string{
		{"cross_source_opportunities", fmt.Sprintf("%d", stats.CrossSourceCount)},
		{"profiles", fmt.Sprintf("%d", stats.ProfileCount)},
		{"last_completed_run", formatUTCTimestampPtr(stats.LastCompletedRunAt)},
	}
	if err := writeTable([]string{"metric", "value"}, summaryRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render summary table: %v\n", err)
		return 1
	}

	return 0
}
