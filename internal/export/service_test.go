package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"lantern.fyi/grantmatch/internal/db"
)

type fakeStore struct {
	records []db.Opportunity
}

func (s *fakeStore) ListOpportunities(_ context.Context, _ db.OpportunityListOptions) ([]db.Opportunity, error) {
	return s.records, nil
}

func TestOpportunitiesXLSX(t *testing.T) {
	t.Parallel()

	number := "OPP-100"
	agency := "Department of Energy"
	ceiling := int64(250000)
	posted := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{
		records: []db.Opportunity{
			{
				OpportunityUUID:   "00000000-0000-0000-0000-000000000001",
				Source:            "grants.gov",
				OpportunityNumber: &number,
				Title:             "Clean Energy Pilot",
				Agency:            &agency,
				Status:            "active",
				PostedDate:        &posted,
				IsRolling:         true,
				AwardCeiling:      &ceiling,
				FocusAreas:        db.EncodeStringSlice([]string{"technology"}),
			},
		},
	}

	svc := NewService(store, zerolog.Nop())
	data, err := svc.OpportunitiesXLSX(context.Background(), db.OpportunityListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("exported bytes are not a valid workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Opportunities")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count = %d, want header plus one record", len(rows))
	}
	if rows[0][0] != "UUID" || rows[0][3] != "Title" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}
	if rows[1][3] != "Clean Energy Pilot" {
		t.Fatalf("title cell = %q", rows[1][3])
	}
	if rows[1][8] != "yes" {
		t.Fatalf("rolling cell = %q, want yes", rows[1][8])
	}
	if rows[1][10] != "250000" {
		t.Fatalf("award ceiling cell = %q", rows[1][10])
	}
}
