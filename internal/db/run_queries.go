package db

import (
	"context"
	"fmt"
	"time"
)

// RunCounters accumulates per-run ingestion totals.
type RunCounters struct {
	Fetched int
	New     int
	Updated int
	Merged  int
	Errors  int
}

// CreateIngestionRun opens a run ledger entry in the running state.
func (p *Pool) CreateIngestionRun(ctx context.Context, source string) (*IngestionRun, error) {
	const q = `
INSERT INTO grants.ingestion_runs (source, status)
VALUES ($1, 'running')
RETURNING run_id, ingestion_run_uuid::text, started_at
`
	run := &IngestionRun{Source: source, Status: "running"}
	err := p.QueryRow(ctx, q, source).Scan(&run.RunID, &run.IngestionRunUUID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create ingestion run: %w", err)
	}
	return run, nil
}

// UpdateIngestionRunCounters flushes the in-memory counters to the ledger row.
func (p *Pool) UpdateIngestionRunCounters(ctx context.Context, runID int64, counters RunCounters) error {
	const q = `
UPDATE grants.ingestion_runs
SET records_fetched = $1,
	records_new = $2,
	records_updated = $3,
	records_merged = $4,
	record_errors = $5,
	updated_at = now()
WHERE run_id = $6
`
	tag, err := p.Exec(ctx, q,
		counters.Fetched, counters.New, counters.Updated, counters.Merged, counters.Errors,
		runID,
	)
	if err != nil {
		return fmt.Errorf("update ingestion run counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingestion run %d not found", runID)
	}
	return nil
}

// FinalizeIngestionRun transitions a run to completed or failed exactly once.
func (p *Pool) FinalizeIngestionRun(ctx context.Context, runID int64, status string, counters RunCounters, errorMessage *string, finishedAt time.Time) error {
	if status != "completed" && status != "failed" {
		return fmt.Errorf("invalid terminal run status %q", status)
	}

	const q = `
UPDATE grants.ingestion_runs
SET status = $1::grants.ingestion_run_status,
	records_fetched = $2,
	records_new = $3,
	records_updated = $4,
	records_merged = $5,
	record_errors = $6,
	error_message = $7,
	finished_at = $8,
	updated_at = now()
WHERE run_id = $9
  AND status = 'running'
`
	tag, err := p.Exec(ctx, q,
		status,
		counters.Fetched, counters.New, counters.Updated, counters.Merged, counters.Errors,
		errorMessage, finishedAt.UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("finalize ingestion run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingestion run %d is not running", runID)
	}
	return nil
}

// ListIngestionRuns lists recent runs, newest first, optionally by source.
func (p *Pool) ListIngestionRuns(ctx context.Context, source string, limit int) ([]IngestionRun, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	r.run_id,
	r.ingestion_run_uuid::text,
	r.source,
	r.started_at,
	r.finished_at,
	r.status,
	r.records_fetched,
	r.records_new,
	r.records_updated,
	r.records_merged,
	r.record_errors,
	r.error_message,
	r.created_at,
	r.updated_at
FROM grants.ingestion_runs r
WHERE ($1 = '' OR r.source = $1)
ORDER BY r.started_at DESC, r.run_id DESC
LIMIT $2
`
	rows, err := p.Query(ctx, q, source, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingestion runs: %w", err)
	}
	defer rows.Close()

	items := make([]IngestionRun, 0, limit)
	for rows.Next() {
		var row IngestionRun
		if err := rows.Scan(
			&row.RunID,
			&row.IngestionRunUUID,
			&row.Source,
			&row.StartedAt,
			&row.FinishedAt,
			&row.Status,
			&row.RecordsFetched,
			&row.RecordsNew,
			&row.RecordsUpdated,
			&row.RecordsMerged,
			&row.RecordErrors,
			&row.ErrorMessage,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ingestion run row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingestion run rows: %w", err)
	}

	return items, nil
}
