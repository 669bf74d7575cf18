package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/globaltime"
	payloadschema "lantern.fyi/grantmatch/schema"
)

// Counters are flushed to the run ledger every this many fetched records.
const counterFlushInterval = 50

// PassResult summarizes one completed or failed ingestion pass.
type PassResult struct {
	RunID    int64          `json:"run_id"`
	RunUUID  string         `json:"run_uuid"`
	Source   string         `json:"source"`
	Status   string         `json:"status"`
	Counters db.RunCounters `json:"counters"`
}

// Service drives full ingestion passes: fetch, validate, normalize, link,
// merge, and keep the run ledger honest throughout.
type Service struct {
	store      Store
	runs       RunStore
	normalizer *Normalizer
	resolver   *Resolver
	logger     zerolog.Logger
	pageSize   int
	maxRecords int
}

func NewService(store Store, runs RunStore, logger zerolog.Logger, pageSize, maxRecords int) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Service{
		store:      store,
		runs:       runs,
		normalizer: NewNormalizer(logger),
		resolver:   NewResolver(store, logger),
		logger:     logger,
		pageSize:   pageSize,
		maxRecords: maxRecords,
	}
}

// RunPass ingests one source end to end. Only a failure to fetch the first
// page fails the run; a mid-pass fetch failure or a bad record increments the
// error counter and the pass keeps its committed work.
func (s *Service) RunPass(ctx context.Context, connector Connector) (*PassResult, error) {
	run, err := s.runs.CreateIngestionRun(ctx, connector.Name())
	if err != nil {
		return nil, fmt.Errorf("open ingestion run: %w", err)
	}

	s.logger.Info().
		Str("source", connector.Name()).
		Int64("run_id", run.RunID).
		Msg("starting ingestion pass")

	var counters db.RunCounters
	offset := 0

	for {
		payloads, err := connector.FetchPage(ctx, offset, s.pageSize)
		if err != nil {
			if counters.Fetched == 0 {
				return s.failRun(ctx, run, counters, fmt.Errorf("fetch first page: %w", err))
			}
			counters.Errors++
			s.logger.Error().Err(err).
				Str("source", connector.Name()).
				Int("offset", offset).
				Msg("page fetch failed mid-pass, finishing with committed work")
			break
		}
		if len(payloads) == 0 {
			break
		}

		for _, payload := range payloads {
			counters.Fetched++

			outcome, err := s.processRecord(ctx, payload)
			if err != nil {
				counters.Errors++
				s.logger.Error().Err(err).
					Str("source", connector.Name()).
					Msg("record failed")
			} else {
				switch outcome {
				case OutcomeNew:
					counters.New++
				case OutcomeUpdated:
					counters.Updated++
				case OutcomeMerged:
					counters.Merged++
				}
			}

			if counters.Fetched%counterFlushInterval == 0 {
				if err := s.runs.UpdateIngestionRunCounters(ctx, run.RunID, counters); err != nil {
					s.logger.Warn().Err(err).Int64("run_id", run.RunID).Msg("counter flush failed")
				}
				s.logger.Info().
					Str("source", connector.Name()).
					Int("fetched", counters.Fetched).
					Msg("ingestion progress")
			}
		}

		offset += s.pageSize
		if s.maxRecords > 0 && counters.Fetched >= s.maxRecords {
			s.logger.Info().
				Str("source", connector.Name()).
				Int("max_records", s.maxRecords).
				Msg("reached record limit for this pass")
			break
		}
	}

	finishedAt := globaltime.Now()
	if err := s.runs.FinalizeIngestionRun(ctx, run.RunID, "completed", counters, nil, finishedAt); err != nil {
		return nil, fmt.Errorf("finalize ingestion run: %w", err)
	}

	result := &PassResult{
		RunID:    run.RunID,
		RunUUID:  run.IngestionRunUUID,
		Source:   connector.Name(),
		Status:   "completed",
		Counters: counters,
	}

	s.logger.Info().
		Str("source", connector.Name()).
		Int("fetched", counters.Fetched).
		Int("new", counters.New).
		Int("updated", counters.Updated).
		Int("merged", counters.Merged).
		Int("errors", counters.Errors).
		Msg("ingestion pass completed")

	return result, nil
}

func (s *Service) processRecord(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	raw, err := payloadschema.ValidateOpportunityPayload(payload)
	if err != nil {
		return 0, fmt.Errorf("validate payload: %w", err)
	}

	record, err := s.normalizer.Normalize(raw)
	if err != nil {
		return 0, err
	}

	return s.resolver.Apply(ctx, record)
}

func (s *Service) failRun(ctx context.Context, run *db.IngestionRun, counters db.RunCounters, cause error) (*PassResult, error) {
	message := cause.Error()
	if err := s.runs.FinalizeIngestionRun(ctx, run.RunID, "failed", counters, &message, globaltime.Now()); err != nil {
		s.logger.Error().Err(err).Int64("run_id", run.RunID).Msg("could not mark run as failed")
	}

	return &PassResult{
		RunID:    run.RunID,
		RunUUID:  run.IngestionRunUUID,
		Source:   run.Source,
		Status:   "failed",
		Counters: counters,
	}, cause
}
