package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"lantern.fyi/grantmatch/internal/db"
)

// Store is the read surface the exporter needs.
type Store interface {
	ListOpportunities(ctx context.Context, opts db.OpportunityListOptions) ([]db.Opportunity, error)
}

// Service produces XLSX workbooks of opportunities for offline review.
type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// OpportunitiesXLSX returns an XLSX workbook as bytes for the given filter.
func (s *Service) OpportunitiesXLSX(ctx context.Context, opts db.OpportunityListOptions) ([]byte, error) {
	start := time.Now()

	if opts.Limit <= 0 {
		opts.Limit = 1000
	}

	records, err := s.store.ListOpportunities(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Opportunities"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"UUID",
		"Source",
		"Opportunity Number",
		"Title",
		"Agency",
		"Status",
		"Posted",
		"Closes",
		"Rolling",
		"Award Floor",
		"Award Ceiling",
		"Focus Areas",
		"URL",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range records {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.OpportunityUUID)
		write(2, r.Source)
		write(3, derefOr(r.OpportunityNumber, ""))
		write(4, r.Title)
		write(5, derefOr(r.Agency, ""))
		write(6, r.Status)
		write(7, formatDate(r.PostedDate))
		write(8, formatDate(r.CloseDate))
		if r.IsRolling {
			write(9, "yes")
		} else {
			write(9, "no")
		}
		write(10, formatAmount(r.AwardFloor))
		write(11, formatAmount(r.AwardCeiling))
		write(12, joinFocusAreas(r.FocusAreas))
		write(13, derefOr(r.OpportunityURL, ""))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "C", 20)
	_ = f.SetColWidth(sheet, "D", "D", 48)
	_ = f.SetColWidth(sheet, "E", "E", 36)
	_ = f.SetColWidth(sheet, "F", "I", 12)
	_ = f.SetColWidth(sheet, "J", "K", 14)
	_ = f.SetColWidth(sheet, "L", "L", 28)
	_ = f.SetColWidth(sheet, "M", "M", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info().
		Int("rows", len(records)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("opportunities export written")

	return buf.Bytes(), nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAmount(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func joinFocusAreas(raw []byte) string {
	areas := db.DecodeStringSlice(raw)
	out := ""
	for i, a := range areas {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}
