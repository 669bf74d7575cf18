package db

import (
	"context"
	"fmt"
	"time"
)

// SourceStats summarizes one source's corpus.
type SourceStats struct {
	Source           string     `json:"source"`
	OpportunityCount int64      `json:"opportunity_count"`
	ActiveCount      int64      `json:"active_count"`
	EmbeddedCount    int64      `json:"embedded_count"`
	RollingCount     int64      `json:"rolling_count"`
	EarliestPostedAt *time.Time `json:"earliest_posted_at,omitempty"`
	LatestUpdatedAt  *time.Time `json:"latest_updated_at,omitempty"`
}

// SystemStats is the aggregate view served by the stats command and endpoint.
type SystemStats struct {
	TotalOpportunities int64         `json:"total_opportunities"`
	ActiveCount        int64         `json:"active_count"`
	EmbeddedCount      int64         `json:"embedded_count"`
	CrossSourceCount   int64         `json:"cross_source_count"`
	ProfileCount       int64         `json:"profile_count"`
	Sources            []SourceStats `json:"sources"`
	LastCompletedRunAt *time.Time    `json:"last_completed_run_at,omitempty"`
}

// GetSystemStats gathers corpus-wide counts.
func (p *Pool) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	stats := &SystemStats{}

	const totalsQ = `
SELECT
	COUNT(*)::bigint,
	COUNT(*) FILTER (WHERE o.status = 'active')::bigint,
	COUNT(*) FILTER (WHERE o.embedding IS NOT NULL)::bigint
FROM grants.opportunities o
`
	if err := p.QueryRow(ctx, totalsQ).Scan(
		&stats.TotalOpportunities,
		&stats.ActiveCount,
		&stats.EmbeddedCount,
	); err != nil {
		return nil, fmt.Errorf("query opportunity totals: %w", err)
	}

	const crossQ = `
SELECT COUNT(*)::bigint
FROM (
	SELECT o.opportunity_number
	FROM grants.opportunities o
	WHERE o.opportunity_number IS NOT NULL
	GROUP BY o.opportunity_number
	HAVING COUNT(DISTINCT o.source) > 1
) dup
`
	if err := p.QueryRow(ctx, crossQ).Scan(&stats.CrossSourceCount); err != nil {
		return nil, fmt.Errorf("query cross-source count: %w", err)
	}

	const profilesQ = `SELECT COUNT(*)::bigint FROM grants.user_profiles`
	if err := p.QueryRow(ctx, profilesQ).Scan(&stats.ProfileCount); err != nil {
		return nil, fmt.Errorf("query profile count: %w", err)
	}

	const lastRunQ = `
SELECT MAX(r.finished_at)
FROM grants.ingestion_runs r
WHERE r.status = 'completed'
`
	if err := p.QueryRow(ctx, lastRunQ).Scan(&stats.LastCompletedRunAt); err != nil && !IsNoRows(err) {
		return nil, fmt.Errorf("query last completed run: %w", err)
	}

	const sourcesQ = `
SELECT
	o.source,
	COUNT(*)::bigint,
	COUNT(*) FILTER (WHERE o.status = 'active')::bigint,
	COUNT(*) FILTER (WHERE o.embedding IS NOT NULL)::bigint,
	COUNT(*) FILTER (WHERE o.is_rolling)::bigint,
	MIN(o.posted_date),
	MAX(o.updated_at)
FROM grants.opportunities o
GROUP BY o.source
ORDER BY o.source
`
	rows, err := p.Query(ctx, sourcesQ)
	if err != nil {
		return nil, fmt.Errorf("query per-source stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row SourceStats
		if err := rows.Scan(
			&row.Source,
			&row.OpportunityCount,
			&row.ActiveCount,
			&row.EmbeddedCount,
			&row.RollingCount,
			&row.EarliestPostedAt,
			&row.LatestUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan source stats row: %w", err)
		}
		stats.Sources = append(stats.Sources, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source stats rows: %w", err)
	}

	return stats, nil
}
