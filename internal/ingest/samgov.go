package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/globaltime"
	payloadschema "lantern.fyi/grantmatch/schema"
)

// SAM.gov only serves a bounded posted-date window, so each pass looks back
// this many days from now.
const samGovLookbackDays = 180

// SAMGovConnector pages through contract and assistance notices on the
// SAM.gov opportunities API.
type SAMGovConnector struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewSAMGovConnector(baseURL, apiKey string, logger zerolog.Logger) *SAMGovConnector {
	return &SAMGovConnector{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *SAMGovConnector) Name() string { return SourceSAMGov }

type samGovNotice struct {
	NoticeID           string `json:"noticeId"`
	Title              string `json:"title"`
	SolNum             string `json:"solNum"`
	NoticeNum          string `json:"noticeNum"`
	FullParentPathName string `json:"fullParentPathName"`
	Agency             string `json:"agency"`
	Description        string `json:"description"`
	UILink             string `json:"uiLink"`
	PublishDate        string `json:"publishDate"`
	ArchiveDate        string `json:"archiveDate"`
}

type samGovResponse struct {
	OpportunitiesData []samGovNotice `json:"opportunitiesData"`
	OpportunityList   []samGovNotice `json:"opportunityList"`
	Opportunities     []samGovNotice `json:"opportunities"`
	Notices           []samGovNotice `json:"notices"`
}

func (r samGovResponse) notices() []samGovNotice {
	for _, candidates := range [][]samGovNotice{
		r.OpportunitiesData, r.OpportunityList, r.Opportunities, r.Notices,
	} {
		if len(candidates) > 0 {
			return candidates
		}
	}
	return nil
}

func (c *SAMGovConnector) FetchPage(ctx context.Context, offset, limit int) ([]json.RawMessage, error) {
	now := globaltime.Now()

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("postedFrom", now.AddDate(0, 0, -samGovLookbackDays).Format("01/02/2006"))
	params.Set("postedTo", now.Format("01/02/2006"))
	params.Set("active", "true")

	endpoint := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", connectorUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search sam.gov: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sam.gov returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed samGovResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode sam.gov response: %w", err)
	}

	notices := parsed.notices()
	payloads := make([]json.RawMessage, 0, len(notices))
	for _, notice := range notices {
		id := strings.TrimSpace(notice.NoticeID)
		if id == "" {
			c.logger.Warn().Str("title", notice.Title).Msg("skipping sam.gov notice without id")
			continue
		}

		raw := payloadschema.RawOpportunity{
			PayloadVersion: "v1",
			Source:         SourceSAMGov,
			SourceID:       id,
			Title:          strings.TrimSpace(notice.Title),
		}

		number := strings.TrimSpace(notice.SolNum)
		if number == "" {
			number = strings.TrimSpace(notice.NoticeNum)
		}
		if number != "" {
			raw.OpportunityNumber = &number
		}

		agency := strings.TrimSpace(notice.FullParentPathName)
		if agency == "" {
			agency = strings.TrimSpace(notice.Agency)
		}
		if agency != "" {
			raw.Agency = &agency
		}

		raw.Description = optionalString(notice.Description)
		raw.PostedDate = optionalString(notice.PublishDate)
		raw.CloseDate = optionalString(notice.ArchiveDate)
		raw.OpportunityURL = optionalString(notice.UILink)

		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode payload for %s: %w", id, err)
		}
		payloads = append(payloads, encoded)
	}

	return payloads, nil
}
