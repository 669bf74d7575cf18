package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed opportunity.schema.json
var opportunitySchemaJSON string

// RawOpportunity is the interchange payload every source connector produces
// before normalization. Dates and money fields stay raw strings here.
type RawOpportunity struct {
	PayloadVersion    string         `json:"payload_version"`
	Source            string         `json:"source"`
	SourceID          string         `json:"source_id"`
	OpportunityNumber *string        `json:"opportunity_number,omitempty"`
	Title             string         `json:"title"`
	Agency            *string        `json:"agency,omitempty"`
	Description       *string        `json:"description,omitempty"`
	PostedDate        *string        `json:"posted_date,omitempty"`
	CloseDate         *string        `json:"close_date,omitempty"`
	AwardFloor        *string        `json:"award_floor,omitempty"`
	AwardCeiling      *string        `json:"award_ceiling,omitempty"`
	TotalFunding      *string        `json:"total_funding,omitempty"`
	ApplicantTypes    []string       `json:"applicant_types,omitempty"`
	FocusAreas        []string       `json:"focus_areas,omitempty"`
	CFDANumbers       []string       `json:"cfda_numbers,omitempty"`
	OpportunityURL    *string        `json:"opportunity_url,omitempty"`
	SourceMetadata    map[string]any `json:"source_metadata,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func ValidateOpportunityPayload(payload json.RawMessage) (*RawOpportunity, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var raw RawOpportunity
	if err := json.Unmarshal(normalized, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&raw); err != nil {
		return nil, err
	}

	return &raw, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("opportunity.schema.json", strings.NewReader(opportunitySchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("opportunity.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(raw *RawOpportunity) error {
	if raw == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(raw.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if strings.TrimSpace(raw.SourceID) == "" {
		return fmt.Errorf("source_id must not be empty")
	}
	if strings.TrimSpace(raw.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(raw.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}

	if raw.OpportunityURL != nil {
		trimmed := strings.TrimSpace(*raw.OpportunityURL)
		if trimmed != "" {
			if _, err := url.ParseRequestURI(trimmed); err != nil {
				return fmt.Errorf("opportunity_url is not a valid URI: %w", err)
			}
		}
	}

	for i, at := range raw.ApplicantTypes {
		if strings.TrimSpace(at) == "" {
			return fmt.Errorf("applicant_types[%d] must not be empty", i)
		}
	}
	for i, fa := range raw.FocusAreas {
		if strings.TrimSpace(fa) == "" {
			return fmt.Errorf("focus_areas[%d] must not be empty", i)
		}
	}

	return nil
}
