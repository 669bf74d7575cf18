package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lantern.fyi/grantmatch/internal/db"
)

var (
	errNilPayload      = errors.New("payload is nil")
	errMissingIdentity = errors.New("source, source_id and title are required")
)

// Canonical source names.
const (
	SourceGrantsGov = "grants.gov"
	SourceSAMGov    = "sam.gov"
)

// Connector fetches one page of raw opportunity payloads from a source API.
// Payloads must conform to the interchange schema in the schema package.
type Connector interface {
	Name() string
	FetchPage(ctx context.Context, offset, limit int) ([]json.RawMessage, error)
}

// Store is the persistence surface the linker and resolver need.
type Store interface {
	FindByOpportunityNumber(ctx context.Context, number string) (*db.Opportunity, error)
	FindBySourceID(ctx context.Context, source, sourceID string) (*db.Opportunity, error)
	InsertOpportunity(ctx context.Context, o *db.Opportunity) error
	UpdateOpportunity(ctx context.Context, o *db.Opportunity, expectedUpdatedAt time.Time) (bool, error)
}

// RunStore is the ledger surface for ingestion passes.
type RunStore interface {
	CreateIngestionRun(ctx context.Context, source string) (*db.IngestionRun, error)
	UpdateIngestionRunCounters(ctx context.Context, runID int64, counters db.RunCounters) error
	FinalizeIngestionRun(ctx context.Context, runID int64, status string, counters db.RunCounters, errorMessage *string, finishedAt time.Time) error
}

// NormalizationError marks a single record that could not be normalized.
// It fails the record, never the pass.
type NormalizationError struct {
	Source   string
	SourceID string
	Field    string
	Err      error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s record %s field %s: %v", e.Source, e.SourceID, e.Field, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}
