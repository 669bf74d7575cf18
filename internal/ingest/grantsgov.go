package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	payloadschema "lantern.fyi/grantmatch/schema"
)

const connectorUserAgent = "grantmatch/1.0"

// GrantsGovConnector pages through posted opportunities on the Grants.gov
// search API.
type GrantsGovConnector struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewGrantsGovConnector(baseURL string, logger zerolog.Logger) *GrantsGovConnector {
	return &GrantsGovConnector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *GrantsGovConnector) Name() string { return SourceGrantsGov }

type grantsGovSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatus      string `json:"oppStatus"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

type grantsGovOpportunity struct {
	OpportunityID     json.Number `json:"opportunityId"`
	OpportunityNumber string      `json:"opportunityNumber"`
	OpportunityTitle  string      `json:"opportunityTitle"`
	AgencyName        string      `json:"agencyName"`
	AgencyCode        string      `json:"agencyCode"`
	Description       string      `json:"description"`
	OpenDate          string      `json:"openDate"`
	CloseDate         string      `json:"closeDate"`
	AwardFloor        string      `json:"awardFloor"`
	AwardCeiling      string      `json:"awardCeiling"`
	TotalFunding      string      `json:"estimatedTotalProgramFunding"`
	ApplicantTypes    []string    `json:"applicantTypes"`
	CFDAList          []struct {
		CFDANumber string `json:"cfdaNumber"`
	} `json:"cfdaList"`
}

type grantsGovSearchResponse struct {
	Opportunities []grantsGovOpportunity `json:"opportunities"`
}

func (c *GrantsGovConnector) FetchPage(ctx context.Context, offset, limit int) ([]json.RawMessage, error) {
	body, err := json.Marshal(grantsGovSearchRequest{
		Keyword:        "",
		OppStatus:      "posted",
		SortBy:         "openDate|desc",
		Rows:           limit,
		StartRecordNum: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	url := c.baseURL + "/search/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", connectorUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search grants.gov: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("grants.gov returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed grantsGovSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode grants.gov response: %w", err)
	}

	payloads := make([]json.RawMessage, 0, len(parsed.Opportunities))
	for _, opp := range parsed.Opportunities {
		id := strings.TrimSpace(opp.OpportunityID.String())
		if id == "" {
			c.logger.Warn().Str("title", opp.OpportunityTitle).Msg("skipping grants.gov record without id")
			continue
		}

		raw := payloadschema.RawOpportunity{
			PayloadVersion: "v1",
			Source:         SourceGrantsGov,
			SourceID:       id,
			Title:          strings.TrimSpace(opp.OpportunityTitle),
			ApplicantTypes: opp.ApplicantTypes,
		}

		raw.OpportunityNumber = optionalString(opp.OpportunityNumber)
		raw.Agency = optionalString(opp.AgencyName)
		raw.Description = optionalString(opp.Description)
		raw.PostedDate = optionalString(opp.OpenDate)
		raw.CloseDate = optionalString(opp.CloseDate)
		raw.AwardFloor = optionalString(opp.AwardFloor)
		raw.AwardCeiling = optionalString(opp.AwardCeiling)
		raw.TotalFunding = optionalString(opp.TotalFunding)

		detailURL := "https://www.grants.gov/search-results-detail/" + id
		raw.OpportunityURL = &detailURL

		for _, cfda := range opp.CFDAList {
			if number := strings.TrimSpace(cfda.CFDANumber); number != "" {
				raw.CFDANumbers = append(raw.CFDANumbers, number)
			}
		}
		if code := strings.TrimSpace(opp.AgencyCode); code != "" {
			raw.SourceMetadata = map[string]any{"agency_code": code}
		}

		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode payload for %s: %w", id, err)
		}
		payloads = append(payloads, encoded)
	}

	return payloads, nil
}

func optionalString(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
