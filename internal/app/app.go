// Package app implements the grantmatch CLI commands.
package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "embed":
		return runEmbed(args[1:])
	case "match":
		return runMatch(args[1:])
	case "runs":
		return runRuns(args[1:])
	case "stats":
		return runStats(args[1:])
	case "export":
		return runExport(args[1:])
	case "serve":
		return runServe(args[1:])
	case "watch":
		return runWatch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "grantmatch CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  grantmatch <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health   Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  ingest   Fetch and resolve opportunities from the configured sources")
	fmt.Fprintln(os.Stderr, "  embed    Backfill embeddings for opportunities and profiles")
	fmt.Fprintln(os.Stderr, "  match    Rank opportunities for a profile or ad-hoc query")
	fmt.Fprintln(os.Stderr, "  runs     List recent ingestion runs")
	fmt.Fprintln(os.Stderr, "  stats    Show corpus-wide statistics")
	fmt.Fprintln(os.Stderr, "  export   Write an XLSX workbook of opportunities")
	fmt.Fprintln(os.Stderr, "  serve    Start the Echo API server")
	fmt.Fprintln(os.Stderr, "  watch    Run the ingest-and-embed scheduler in the foreground")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"grantmatch <command> -h\" for command-specific flags.")
}
