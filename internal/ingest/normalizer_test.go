package ingest

import (
	"testing"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
	payloadschema "lantern.fyi/grantmatch/schema"
)

func TestNormalizeFullRecord(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(zerolog.Nop())
	raw := &payloadschema.RawOpportunity{
		PayloadVersion:    "v1",
		Source:            SourceGrantsGov,
		SourceID:          "358532",
		OpportunityNumber: strPtr("ED-GRANTS-061225-001"),
		Title:             "Community Health Innovation Program",
		Agency:            strPtr("Department of Health and Human Services"),
		Description:       strPtr("Funding for community health initiatives in underserved areas."),
		PostedDate:        strPtr("2026-06-12"),
		CloseDate:         strPtr("08/15/2026"),
		AwardFloor:        strPtr("$50,000"),
		AwardCeiling:      strPtr("$500,000"),
		ApplicantTypes:    []string{"Nonprofits"},
		CFDANumbers:       []string{"93.243"},
	}

	got, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if got.OpportunityNumber == nil || *got.OpportunityNumber != "ED-GRANTS-061225-001" {
		t.Fatalf("opportunity number = %v", got.OpportunityNumber)
	}
	if got.PostedDate == nil || got.PostedDate.Year() != 2026 || got.PostedDate.Month() != 6 {
		t.Fatalf("posted date = %v", got.PostedDate)
	}
	if got.CloseDate == nil || got.CloseDate.Month() != 8 || got.CloseDate.Day() != 15 {
		t.Fatalf("close date = %v", got.CloseDate)
	}
	if got.IsRolling {
		t.Fatalf("concrete close date must not set rolling")
	}
	if got.AwardFloor == nil || *got.AwardFloor != 50000 {
		t.Fatalf("award floor = %v", got.AwardFloor)
	}
	if got.AwardCeiling == nil || *got.AwardCeiling != 500000 {
		t.Fatalf("award ceiling = %v", got.AwardCeiling)
	}
	if got.Status != "active" {
		t.Fatalf("status = %q, want active", got.Status)
	}
	if got.Summary != "Funding for community health initiatives in underserved areas." {
		t.Fatalf("summary = %q", got.Summary)
	}
}

func TestNormalizeSynthesizesMissingDescription(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(zerolog.Nop())
	raw := &payloadschema.RawOpportunity{
		PayloadVersion:    "v1",
		Source:            SourceSAMGov,
		SourceID:          "abc-1",
		OpportunityNumber: strPtr("W911-26-R-0001"),
		Title:             "Base Infrastructure Support",
		Agency:            strPtr("Department of Defense"),
	}

	got, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if got.Description == "" {
		t.Fatalf("description must be synthesized, never empty")
	}
	if got.Summary == "" {
		t.Fatalf("summary must not be empty")
	}
}

func TestNormalizeRollingCloseDate(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(zerolog.Nop())
	raw := &payloadschema.RawOpportunity{
		PayloadVersion: "v1",
		Source:         SourceGrantsGov,
		SourceID:       "1",
		Title:          "Open Topic Research Program",
		Description:    strPtr("Continuously accepting applications for research projects."),
		CloseDate:      strPtr("Rolling"),
	}

	got, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if !got.IsRolling {
		t.Fatalf("expected rolling deadline")
	}
	if got.CloseDate != nil {
		t.Fatalf("close date must stay null for rolling deadlines")
	}
}

func TestNormalizeUnparseableDatesDegradeToNull(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(zerolog.Nop())
	raw := &payloadschema.RawOpportunity{
		PayloadVersion: "v1",
		Source:         SourceGrantsGov,
		SourceID:       "1",
		Title:          "Grant With Odd Dates",
		Description:    strPtr("A description that is long enough to keep."),
		PostedDate:     strPtr("sometime soon"),
		CloseDate:      strPtr("eventually"),
	}

	got, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("bad dates must not fail the record: %v", err)
	}
	if got.PostedDate != nil || got.CloseDate != nil {
		t.Fatalf("unparseable dates must degrade to null")
	}
	if got.IsRolling {
		t.Fatalf("an unparseable date is not a rolling signal")
	}
}

func TestNormalizeInfersFocusAreasFromTitle(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(zerolog.Nop())
	raw := &payloadschema.RawOpportunity{
		PayloadVersion: "v1",
		Source:         SourceSAMGov,
		SourceID:       "2",
		Title:          "Military Health Software Research",
		Description:    strPtr("A description that is long enough to keep."),
	}

	got, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	focus := db.DecodeStringSlice(got.FocusAreas)
	want := map[string]bool{"health": true, "technology": true, "defense": true}
	if len(focus) != len(want) {
		t.Fatalf("focus areas = %v", focus)
	}
	for _, f := range focus {
		if !want[f] {
			t.Fatalf("unexpected focus area %q", f)
		}
	}
}

func TestNormalizeMissingIdentityFails(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(zerolog.Nop())
	raw := &payloadschema.RawOpportunity{
		PayloadVersion: "v1",
		Source:         SourceGrantsGov,
		Title:          "No source id",
	}

	if _, err := n.Normalize(raw); err == nil {
		t.Fatalf("expected identity error")
	}
}
