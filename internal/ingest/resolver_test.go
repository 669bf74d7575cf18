package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
)

// fakeStore is an in-memory Store with a deterministic clock and an
// optional number of forced optimistic-update losses.
type fakeStore struct {
	mu             sync.Mutex
	nextID         int64
	clock          time.Time
	records        []*db.Opportunity
	forcedLosses   int
	updateAttempts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID: 1,
		clock:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) FindByOpportunityNumber(_ context.Context, number string) (*db.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *db.Opportunity
	for _, r := range s.records {
		if r.OpportunityNumber == nil || *r.OpportunityNumber != number {
			continue
		}
		if best == nil || r.UpdatedAt.After(best.UpdatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (s *fakeStore) FindBySourceID(_ context.Context, source, sourceID string) (*db.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.Source == source && r.SourceID == sourceID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertOpportunity(_ context.Context, o *db.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	o.OpportunityID = s.nextID
	o.OpportunityUUID = fmt.Sprintf("00000000-0000-0000-0000-%012d", s.nextID)
	o.CreatedAt = now
	o.UpdatedAt = now
	s.nextID++

	copied := *o
	s.records = append(s.records, &copied)
	return nil
}

func (s *fakeStore) UpdateOpportunity(_ context.Context, o *db.Opportunity, expectedUpdatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateAttempts++
	for i, r := range s.records {
		if r.OpportunityID != o.OpportunityID {
			continue
		}
		if !r.UpdatedAt.Equal(expectedUpdatedAt) {
			return false, nil
		}
		if s.forcedLosses > 0 {
			s.forcedLosses--
			r.UpdatedAt = s.tick()
			return false, nil
		}
		copied := *o
		copied.CreatedAt = r.CreatedAt
		copied.UpdatedAt = s.tick()
		s.records[i] = &copied
		return true, nil
	}
	return false, nil
}

func (s *fakeStore) all() []*db.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*db.Opportunity, 0, len(s.records))
	for _, r := range s.records {
		copied := *r
		out = append(out, &copied)
	}
	return out
}

func strPtr(s string) *string { return &s }

func candidate(source, sourceID, number, title, description string, focusAreas []string) *db.Opportunity {
	o := &db.Opportunity{
		Source:      source,
		SourceID:    sourceID,
		Title:       title,
		Description: description,
		Summary:     BuildSummary(description, title),
		Status:      "active",
		FocusAreas:  db.EncodeStringSlice(focusAreas),
	}
	if number != "" {
		o.OpportunityNumber = strPtr(number)
	}
	return o
}

func TestResolverInsertsNewRecord(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())

	outcome, err := resolver.Apply(context.Background(),
		candidate(SourceGrantsGov, "G1", "OPP-100", "Health Program", "short description here", []string{"health"}))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if outcome != OutcomeNew {
		t.Fatalf("outcome = %v, want new", outcome)
	}
	if got := len(store.all()); got != 1 {
		t.Fatalf("record count = %d, want 1", got)
	}
}

func TestResolverSameSourceOverwritePreservesIdentity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	first := candidate(SourceGrantsGov, "G1", "OPP-100", "Old Title", "a perfectly usable description", nil)
	if _, err := resolver.Apply(ctx, first); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	original := store.all()[0]

	second := candidate(SourceGrantsGov, "G1", "OPP-100", "New Title", "a perfectly usable description", nil)
	outcome, err := resolver.Apply(ctx, second)
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("outcome = %v, want updated", outcome)
	}

	records := store.all()
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	got := records[0]
	if got.Title != "New Title" {
		t.Fatalf("title = %q, want overwrite", got.Title)
	}
	if got.OpportunityID != original.OpportunityID {
		t.Fatalf("id changed on re-ingest: %d -> %d", original.OpportunityID, got.OpportunityID)
	}
	if got.OpportunityUUID != original.OpportunityUUID {
		t.Fatalf("uuid changed on re-ingest")
	}
	if !got.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("created_at changed on re-ingest")
	}
	if !got.UpdatedAt.After(original.UpdatedAt) {
		t.Fatalf("updated_at must advance on re-ingest")
	}
}

func TestResolverSameSourceOverwriteClearsStaleEmbedding(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	seed := candidate(SourceGrantsGov, "G1", "", "Title", "the original description text", nil)
	if _, err := resolver.Apply(ctx, seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	store.mu.Lock()
	store.records[0].Embedding = []byte(`[0.1,0.2]`)
	store.records[0].EmbeddingModel = strPtr("all-MiniLM-L6-v2")
	store.mu.Unlock()

	changed := candidate(SourceGrantsGov, "G1", "", "Title", "a completely different description now", nil)
	if _, err := resolver.Apply(ctx, changed); err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if got := store.all()[0]; got.Embedding != nil || got.EmbeddingModel != nil {
		t.Fatalf("embedding must be cleared when the embedded text changed")
	}

	same := candidate(SourceGrantsGov, "G1", "", "Title", "a completely different description now", nil)
	store.mu.Lock()
	store.records[0].Embedding = []byte(`[0.3,0.4]`)
	store.records[0].EmbeddingModel = strPtr("all-MiniLM-L6-v2")
	store.mu.Unlock()
	if _, err := resolver.Apply(ctx, same); err != nil {
		t.Fatalf("identical re-ingest failed: %v", err)
	}
	if got := store.all()[0]; got.Embedding == nil {
		t.Fatalf("embedding must survive an identical re-ingest")
	}
}

func TestResolverCrossSourceMerge(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	first := candidate(SourceGrantsGov, "G1", "OPP-100", "Health Program", "short", []string{"health"})
	if _, err := resolver.Apply(ctx, first); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	longer := "a much longer and more detailed description of the opportunity"
	second := candidate(SourceSAMGov, "S9", "OPP-100", "Health Program Notice", longer, []string{"social"})
	outcome, err := resolver.Apply(ctx, second)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if outcome != OutcomeMerged {
		t.Fatalf("outcome = %v, want merged", outcome)
	}

	records := store.all()
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	got := records[0]
	if got.Source != SourceGrantsGov {
		t.Fatalf("source = %q, identity must stay with first-seen record", got.Source)
	}
	if got.Description != longer {
		t.Fatalf("description = %q, want the longer text", got.Description)
	}
	if got.Title != "Health Program" {
		t.Fatalf("title = %q, cross-source merge must not touch the title", got.Title)
	}

	focus := db.DecodeStringSlice(got.FocusAreas)
	if len(focus) != 2 || focus[0] != "health" || focus[1] != "social" {
		t.Fatalf("focus areas = %v, want union [health social]", focus)
	}
}

func TestResolverCrossSourceMergeOrderIndependent(t *testing.T) {
	t.Parallel()

	longer := "a much longer and more detailed description of the opportunity"

	for name, order := range map[string][2]*db.Opportunity{
		"grants first": {
			candidate(SourceGrantsGov, "G1", "OPP-100", "A", "short", []string{"health"}),
			candidate(SourceSAMGov, "S9", "OPP-100", "B", longer, []string{"social"}),
		},
		"sam first": {
			candidate(SourceSAMGov, "S9", "OPP-100", "B", longer, []string{"social"}),
			candidate(SourceGrantsGov, "G1", "OPP-100", "A", "short", []string{"health"}),
		},
	} {
		store := newFakeStore()
		resolver := NewResolver(store, zerolog.Nop())
		ctx := context.Background()

		for _, c := range order {
			if _, err := resolver.Apply(ctx, c); err != nil {
				t.Fatalf("%s: apply failed: %v", name, err)
			}
		}

		records := store.all()
		if len(records) != 1 {
			t.Fatalf("%s: record count = %d, want 1", name, len(records))
		}
		if records[0].Description != longer {
			t.Fatalf("%s: description = %q, want the longer text regardless of order", name, records[0].Description)
		}
		focus := db.DecodeStringSlice(records[0].FocusAreas)
		if len(focus) != 2 {
			t.Fatalf("%s: focus areas = %v, want union of both inputs", name, focus)
		}
	}
}

func TestResolverCrossSourceKeepsLongerExistingDescription(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	longer := "the original, thorough description of this opportunity"
	if _, err := resolver.Apply(ctx, candidate(SourceGrantsGov, "G1", "OPP-200", "T", longer, nil)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	before := store.all()[0]

	if _, err := resolver.Apply(ctx, candidate(SourceSAMGov, "S2", "OPP-200", "T2", "short", nil)); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	got := store.all()[0]
	if got.Description != longer {
		t.Fatalf("description = %q, an equal-or-shorter incoming text must not win", got.Description)
	}
	if !got.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("updated_at must advance even when the merge changes nothing else")
	}
}

func TestResolverMergeConflictExhaustsRetries(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	if _, err := resolver.Apply(ctx, candidate(SourceGrantsGov, "G1", "", "T", "a usable description", nil)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	store.mu.Lock()
	store.forcedLosses = 10
	store.mu.Unlock()

	_, err := resolver.Apply(ctx, candidate(SourceGrantsGov, "G1", "", "T2", "a usable description", nil))
	if !errors.Is(err, ErrMergeConflict) {
		t.Fatalf("expected ErrMergeConflict, got %v", err)
	}
}

func TestResolverRecoversFromSingleConflict(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	if _, err := resolver.Apply(ctx, candidate(SourceGrantsGov, "G1", "", "T", "a usable description", nil)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	store.mu.Lock()
	store.forcedLosses = 1
	store.mu.Unlock()

	outcome, err := resolver.Apply(ctx, candidate(SourceGrantsGov, "G1", "", "T2", "a usable description", nil))
	if err != nil {
		t.Fatalf("apply should succeed after re-linking: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("outcome = %v, want updated", outcome)
	}
	if got := store.all()[0].Title; got != "T2" {
		t.Fatalf("title = %q, want T2", got)
	}
}
