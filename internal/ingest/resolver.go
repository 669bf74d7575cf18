package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
)

// ErrMergeConflict is returned when concurrent writers keep invalidating the
// optimistic update after the retry budget is exhausted.
var ErrMergeConflict = errors.New("merge conflict: record changed concurrently")

const maxMergeRetries = 3

// Outcome classifies what applying a candidate did to the corpus.
type Outcome int

const (
	OutcomeNew Outcome = iota
	OutcomeUpdated
	OutcomeMerged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeUpdated:
		return "updated"
	case OutcomeMerged:
		return "merged"
	default:
		return "unknown"
	}
}

// Resolver links incoming candidates to canonical records and applies the
// merge policy. Updates are guarded by the updated_at value read at link
// time; a lost race re-links and retries.
type Resolver struct {
	store  Store
	logger zerolog.Logger
}

func NewResolver(store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

func (r *Resolver) Apply(ctx context.Context, incoming *db.Opportunity) (Outcome, error) {
	if incoming == nil {
		return 0, fmt.Errorf("incoming record is nil")
	}

	for attempt := 0; attempt <= maxMergeRetries; attempt++ {
		existing, err := FindExisting(ctx, r.store, incoming)
		if err != nil {
			return 0, err
		}

		if existing == nil {
			if err := r.store.InsertOpportunity(ctx, incoming); err != nil {
				return 0, err
			}
			return OutcomeNew, nil
		}

		var (
			merged  *db.Opportunity
			outcome Outcome
		)
		if existing.Source == incoming.Source {
			merged = overwriteSameSource(existing, incoming)
			outcome = OutcomeUpdated
		} else {
			merged = mergeCrossSource(existing, incoming)
			outcome = OutcomeMerged
			r.logger.Info().
				Str("source", incoming.Source).
				Str("source_id", incoming.SourceID).
				Str("canonical_source", existing.Source).
				Int64("opportunity_id", existing.OpportunityID).
				Msg("merging cross-source record")
		}

		applied, err := r.store.UpdateOpportunity(ctx, merged, existing.UpdatedAt)
		if err != nil {
			return 0, err
		}
		if applied {
			return outcome, nil
		}

		r.logger.Debug().
			Int64("opportunity_id", existing.OpportunityID).
			Int("attempt", attempt+1).
			Msg("optimistic update lost race, re-linking")
	}

	return 0, fmt.Errorf("apply %s/%s: %w", incoming.Source, incoming.SourceID, ErrMergeConflict)
}

// overwriteSameSource replaces every content field with the re-ingested
// values. Identity (id, uuid, created_at) never changes. The stored
// embedding survives only when the embedded text did not move.
func overwriteSameSource(existing, incoming *db.Opportunity) *db.Opportunity {
	merged := *incoming
	merged.OpportunityID = existing.OpportunityID
	merged.OpportunityUUID = existing.OpportunityUUID
	merged.CreatedAt = existing.CreatedAt

	if existing.Description == incoming.Description && existing.Summary == incoming.Summary {
		merged.Embedding = existing.Embedding
		merged.EmbeddingModel = existing.EmbeddingModel
	} else {
		merged.Embedding = nil
		merged.EmbeddingModel = nil
	}

	return &merged
}

// mergeCrossSource enriches the canonical record without destroying it: the
// description (and its summary) only moves to a strictly longer one, focus
// areas take the union, and everything else stays as first seen.
func mergeCrossSource(existing, incoming *db.Opportunity) *db.Opportunity {
	merged := *existing

	if len(incoming.Description) > len(existing.Description) {
		merged.Description = incoming.Description
		merged.Summary = incoming.Summary
		merged.Embedding = nil
		merged.EmbeddingModel = nil
	}

	union := UnionStrings(
		db.DecodeStringSlice(existing.FocusAreas),
		db.DecodeStringSlice(incoming.FocusAreas),
	)
	merged.FocusAreas = db.EncodeStringSlice(union)

	return &merged
}
