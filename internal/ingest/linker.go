package ingest

import (
	"context"
	"fmt"

	"lantern.fyi/grantmatch/internal/db"
)

// FindExisting resolves the canonical record an incoming candidate belongs
// to, or nil when it is new. The opportunity number is the stronger key and
// links across all sources; the (source, source_id) pair only links within
// the candidate's own source. When several records share an opportunity
// number the most recently updated one wins.
func FindExisting(ctx context.Context, store Store, candidate *db.Opportunity) (*db.Opportunity, error) {
	if candidate == nil {
		return nil, fmt.Errorf("candidate is nil")
	}

	if candidate.OpportunityNumber != nil && *candidate.OpportunityNumber != "" {
		existing, err := store.FindByOpportunityNumber(ctx, *candidate.OpportunityNumber)
		if err != nil {
			return nil, fmt.Errorf("link by opportunity number: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	existing, err := store.FindBySourceID(ctx, candidate.Source, candidate.SourceID)
	if err != nil {
		return nil, fmt.Errorf("link by source id: %w", err)
	}
	return existing, nil
}
