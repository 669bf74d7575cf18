package httpapi

import (
	"time"

	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/match"
)

type opportunityResponse struct {
	OpportunityUUID   string     `json:"opportunity_uuid"`
	Source            string     `json:"source"`
	SourceID          string     `json:"source_id"`
	OpportunityNumber *string    `json:"opportunity_number,omitempty"`
	Title             string     `json:"title"`
	Agency            *string    `json:"agency,omitempty"`
	Description       string     `json:"description"`
	Summary           string     `json:"summary"`
	PostedDate        *time.Time `json:"posted_date,omitempty"`
	CloseDate         *time.Time `json:"close_date,omitempty"`
	IsRolling         bool       `json:"is_rolling"`
	AwardFloor        *int64     `json:"award_floor,omitempty"`
	AwardCeiling      *int64     `json:"award_ceiling,omitempty"`
	TotalFunding      *int64     `json:"total_funding,omitempty"`
	ApplicantTypes    []string   `json:"applicant_types,omitempty"`
	FocusAreas        []string   `json:"focus_areas,omitempty"`
	CFDANumbers       []string   `json:"cfda_numbers,omitempty"`
	OpportunityURL    *string    `json:"opportunity_url,omitempty"`
	Status            string     `json:"status"`
	HasEmbedding      bool       `json:"has_embedding"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type profileResponse struct {
	ProfileUUID      string    `json:"profile_uuid"`
	Email            string    `json:"email"`
	OrganizationName *string   `json:"organization_name,omitempty"`
	OrganizationType *string   `json:"organization_type,omitempty"`
	MissionStatement string    `json:"mission_statement"`
	FocusAreas       []string  `json:"focus_areas,omitempty"`
	HasEmbedding     bool      `json:"has_embedding"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type matchResponse struct {
	Opportunity opportunityResponse `json:"opportunity"`
	Score       float64             `json:"score"`
	Explanation string              `json:"explanation"`
}

type savedOpportunityResponse struct {
	SavedOpportunityUUID string              `json:"saved_opportunity_uuid"`
	Notes                *string             `json:"notes,omitempty"`
	SavedAt              string              `json:"saved_at"`
	Opportunity          opportunityResponse `json:"opportunity"`
}

type applicationResponse struct {
	ApplicationUUID string     `json:"application_uuid"`
	OpportunityID   int64      `json:"opportunity_id"`
	Status          string     `json:"status"`
	AmountRequested *float64   `json:"amount_requested,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ingestionRunResponse struct {
	IngestionRunUUID string     `json:"ingestion_run_uuid"`
	Source           string     `json:"source"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	RecordsFetched   int        `json:"records_fetched"`
	RecordsNew       int        `json:"records_new"`
	RecordsUpdated   int        `json:"records_updated"`
	RecordsMerged    int        `json:"records_merged"`
	RecordErrors     int        `json:"record_errors"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
}

func buildOpportunityResponse(o *db.Opportunity) opportunityResponse {
	if o == nil {
		return opportunityResponse{}
	}
	return opportunityResponse{
		OpportunityUUID:   o.OpportunityUUID,
		Source:            o.Source,
		SourceID:          o.SourceID,
		OpportunityNumber: o.OpportunityNumber,
		Title:             o.Title,
		Agency:            o.Agency,
		Description:       o.Description,
		Summary:           o.Summary,
		PostedDate:        o.PostedDate,
		CloseDate:         o.CloseDate,
		IsRolling:         o.IsRolling,
		AwardFloor:        o.AwardFloor,
		AwardCeiling:      o.AwardCeiling,
		TotalFunding:      o.TotalFunding,
		ApplicantTypes:    db.DecodeStringSlice(o.ApplicantTypes),
		FocusAreas:        db.DecodeStringSlice(o.FocusAreas),
		CFDANumbers:       db.DecodeStringSlice(o.CFDANumbers),
		OpportunityURL:    o.OpportunityURL,
		Status:            o.Status,
		HasEmbedding:      len(o.Embedding) > 0,
		UpdatedAt:         o.UpdatedAt.UTC(),
	}
}

func buildProfileResponse(u *db.UserProfile) profileResponse {
	if u == nil {
		return profileResponse{}
	}
	return profileResponse{
		ProfileUUID:      u.ProfileUUID,
		Email:            u.Email,
		OrganizationName: u.OrganizationName,
		OrganizationType: u.OrganizationType,
		MissionStatement: u.MissionStatement,
		FocusAreas:       db.DecodeStringSlice(u.FocusAreas),
		HasEmbedding:     len(u.Embedding) > 0,
		CreatedAt:        u.CreatedAt.UTC(),
		UpdatedAt:        u.UpdatedAt.UTC(),
	}
}

func buildMatchResponses(matches []match.Match) []matchResponse {
	items := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		items = append(items, matchResponse{
			Opportunity: buildOpportunityResponse(m.Opportunity),
			Score:       m.Score,
			Explanation: m.Explanation,
		})
	}
	return items
}

func buildApplicationResponse(a *db.Application) applicationResponse {
	if a == nil {
		return applicationResponse{}
	}
	return applicationResponse{
		ApplicationUUID: a.ApplicationUUID,
		OpportunityID:   a.OpportunityID,
		Status:          a.Status,
		AmountRequested: a.AmountRequested,
		SubmittedAt:     a.SubmittedAt,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt.UTC(),
		UpdatedAt:       a.UpdatedAt.UTC(),
	}
}

func buildIngestionRunResponse(r *db.IngestionRun) ingestionRunResponse {
	if r == nil {
		return ingestionRunResponse{}
	}
	return ingestionRunResponse{
		IngestionRunUUID: r.IngestionRunUUID,
		Source:           r.Source,
		Status:           r.Status,
		StartedAt:        r.StartedAt.UTC(),
		FinishedAt:       r.FinishedAt,
		RecordsFetched:   r.RecordsFetched,
		RecordsNew:       r.RecordsNew,
		RecordsUpdated:   r.RecordsUpdated,
		RecordsMerged:    r.RecordsMerged,
		RecordErrors:     r.RecordErrors,
		ErrorMessage:     r.ErrorMessage,
	}
}
