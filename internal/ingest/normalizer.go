package ingest

import (
	"strings"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
	payloadschema "lantern.fyi/grantmatch/schema"
)

// Normalizer turns validated raw payloads into canonical records. Parse
// failures on individual fields degrade to null values with a warning;
// only a missing identity fails the record.
type Normalizer struct {
	logger zerolog.Logger
}

func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

func (n *Normalizer) Normalize(raw *payloadschema.RawOpportunity) (*db.Opportunity, error) {
	if raw == nil {
		return nil, &NormalizationError{Field: "payload", Err: errNilPayload}
	}

	source := strings.TrimSpace(raw.Source)
	sourceID := strings.TrimSpace(raw.SourceID)
	title := strings.TrimSpace(raw.Title)
	if source == "" || sourceID == "" || title == "" {
		return nil, &NormalizationError{
			Source:   source,
			SourceID: sourceID,
			Field:    "identity",
			Err:      errMissingIdentity,
		}
	}

	o := &db.Opportunity{
		Source:   source,
		SourceID: sourceID,
		Title:    title,
		Status:   "active",
	}

	if raw.OpportunityNumber != nil {
		if number := strings.TrimSpace(*raw.OpportunityNumber); number != "" {
			o.OpportunityNumber = &number
		}
	}
	if raw.Agency != nil {
		if agency := strings.TrimSpace(*raw.Agency); agency != "" {
			o.Agency = &agency
		}
	}
	if raw.OpportunityURL != nil {
		if u := strings.TrimSpace(*raw.OpportunityURL); u != "" {
			o.OpportunityURL = &u
		}
	}

	if raw.PostedDate != nil && strings.TrimSpace(*raw.PostedDate) != "" {
		if parsed, ok := ParseFlexibleDate(*raw.PostedDate); ok {
			o.PostedDate = &parsed
		} else {
			n.logger.Warn().
				Str("source", source).
				Str("source_id", sourceID).
				Str("posted_date", *raw.PostedDate).
				Msg("could not parse posted date")
		}
	}

	if raw.CloseDate != nil {
		closeDate, isRolling, ok := ParseCloseDate(*raw.CloseDate)
		if !ok {
			n.logger.Warn().
				Str("source", source).
				Str("source_id", sourceID).
				Str("close_date", *raw.CloseDate).
				Msg("could not parse close date")
		}
		o.CloseDate = closeDate
		o.IsRolling = isRolling
	}

	if raw.AwardFloor != nil {
		o.AwardFloor = ParseMoney(*raw.AwardFloor)
	}
	if raw.AwardCeiling != nil {
		o.AwardCeiling = ParseMoney(*raw.AwardCeiling)
	}
	if raw.TotalFunding != nil {
		o.TotalFunding = ParseMoney(*raw.TotalFunding)
	}

	description := ""
	if raw.Description != nil {
		description = StripMarkup(*raw.Description)
	}
	if len([]rune(description)) < minUsableDescriptionRunes {
		agency := ""
		if o.Agency != nil {
			agency = *o.Agency
		}
		number := ""
		if o.OpportunityNumber != nil {
			number = *o.OpportunityNumber
		}
		description = SynthesizeDescription(title, agency, number, raw.CFDANumbers)
	}
	o.Description = description
	o.Summary = BuildSummary(description, title)

	focusAreas := raw.FocusAreas
	if len(focusAreas) == 0 {
		focusAreas = InferFocusAreas(title)
	}
	o.FocusAreas = db.EncodeStringSlice(focusAreas)
	o.ApplicantTypes = db.EncodeStringSlice(raw.ApplicantTypes)
	o.CFDANumbers = db.EncodeStringSlice(raw.CFDANumbers)

	return o, nil
}
