package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateOpportunityPayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"grants_gov",
		"source_id":"358532",
		"opportunity_number":"ED-GRANTS-061225-001",
		"title":"Community Health Innovation Program",
		"agency":"Department of Health and Human Services",
		"description":"Funding for community health initiatives.",
		"posted_date":"2026-06-12",
		"close_date":"08/15/2026",
		"award_ceiling":"$500,000",
		"applicant_types":["Nonprofits","State governments"],
		"focus_areas":["health"],
		"cfda_numbers":["93.243"],
		"opportunity_url":"https://www.grants.gov/search-results-detail/358532"
	}`)

	raw, err := ValidateOpportunityPayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if raw.Source != "grants_gov" {
		t.Fatalf("expected source=grants_gov, got %q", raw.Source)
	}
	if raw.OpportunityNumber == nil || *raw.OpportunityNumber != "ED-GRANTS-061225-001" {
		t.Fatalf("unexpected opportunity_number: %v", raw.OpportunityNumber)
	}
	if raw.AwardCeiling == nil || *raw.AwardCeiling != "$500,000" {
		t.Fatalf("expected raw award_ceiling to stay unparsed, got %v", raw.AwardCeiling)
	}
}

func TestValidateOpportunityPayload_MissingSourceID(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"sam_gov",
		"title":"Missing source id"
	}`)

	_, err := ValidateOpportunityPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for missing source_id")
	}
}

func TestValidateOpportunityPayload_WhitespaceTitle(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"sam_gov",
		"source_id":"abc",
		"title":"   "
	}`)

	_, err := ValidateOpportunityPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only title")
	}
	if !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected title semantic error, got: %v", err)
	}
}

func TestValidateOpportunityPayload_WrongVersion(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v2",
		"source":"grants_gov",
		"source_id":"1",
		"title":"Wrong version"
	}`)

	_, err := ValidateOpportunityPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for payload_version v2")
	}
}

func TestValidateOpportunityPayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"grants_gov",
		"source_id":"1",
		"title":"ok"
	}{}`)

	_, err := ValidateOpportunityPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for trailing content")
	}
}

func TestValidateOpportunityPayload_EmptyFocusArea(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"grants_gov",
		"source_id":"1",
		"title":"ok",
		"focus_areas":["health",""]
	}`)

	_, err := ValidateOpportunityPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for empty focus area")
	}
}
