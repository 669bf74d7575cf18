package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"lantern.fyi/grantmatch/internal/cli"
)

func runRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	source := fs.String("source", "", "Filter by source (empty for all)")
	limit := fs.Int("limit", 25, "Maximum runs to list")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

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

	runs, err := pool.ListIngestionRuns(ctx, strings.TrimSpace(strings.ToLower(*source)), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query ingestion runs: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(runs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		errorMessage := ""
		if run.ErrorMessage != nil {
			errorMessage = *run.ErrorMessage
		}
		rows = append(rows, []string{
			run.Source,
			run.Status,
			run.StartedAt.UTC().Format(time.RFC3339),
			formatUTCTimestampPtr(run.FinishedAt),
			fmt.Sprintf("%d", run.RecordsFetched),
			fmt.Sprintf("%d", run.RecordsNew),
			fmt.Sprintf("%d", run.RecordsUpdated),
			fmt.Sprintf("%d", run.RecordsMerged),
			fmt.Sprintf("%d", run.RecordErrors),
			truncateForTable(errorMessage, 48),
		})
	}
	headers := []string{"source", "status", "started", "finished", "fetched", "new", "updated", "merged", "errors", "message"}
	if err := writeTable(headers, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	return 0
}
