// Package scheduler wires up the cron job that periodically runs ingestion
// passes and the embedding backfill.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/embed"
	"lantern.fyi/grantmatch/internal/globaltime"
	"lantern.fyi/grantmatch/internal/ingest"
)

// Backfill at most this many records per cycle to bound cycle time.
const backfillBatchLimit = 500

// Scheduler wraps robfig/cron and manages the ingest-and-embed loop.
type Scheduler struct {
	cron       *cron.Cron
	pool       *db.Pool
	ingestor   *ingest.Service
	embeds     *embed.Service
	connectors []ingest.Connector
	spec       string
	logger     zerolog.Logger
}

// New creates a Scheduler that fires every intervalHours hours.
func New(pool *db.Pool, ingestor *ingest.Service, embeds *embed.Service, connectors []ingest.Connector, intervalHours int, logger zerolog.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = 6
	}
	return &Scheduler{
		cron:       cron.New(),
		pool:       pool,
		ingestor:   ingestor,
		embeds:     embeds,
		connectors: connectors,
		spec:       fmt.Sprintf("@every %dh", intervalHours),
		logger:     logger,
	}
}

// Start registers the job and starts the scheduler. One cycle runs
// immediately so the corpus is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Msg("scheduler started")

	go s.runCycle(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("scheduler stopped")
}

// runCycle ingests every configured source, closes stale records, and
// backfills embeddings for whatever is new.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.logger.Info().Msg("ingest cycle started")

	for _, connector := range s.connectors {
		if _, err := s.ingestor.RunPass(ctx, connector); err != nil {
			s.logger.Error().Err(err).Str("source", connector.Name()).Msg("ingestion pass failed")
		}
	}

	closed, err := s.pool.CloseExpiredOpportunities(ctx, globaltime.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("deadline sweep failed")
	} else if closed > 0 {
		s.logger.Info().Int64("closed", closed).Msg("deadline sweep done")
	}

	if _, err := s.embeds.BackfillOpportunities(ctx, backfillBatchLimit); err != nil {
		s.logger.Error().Err(err).Msg("embedding backfill failed")
	}
	if _, err := s.embeds.BackfillProfiles(ctx, backfillBatchLimit); err != nil {
		s.logger.Error().Err(err).Msg("profile embedding backfill failed")
	}

	s.logger.Info().Msg("ingest cycle complete")
}
