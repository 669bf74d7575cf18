package db

import (
	"context"
	"encoding/json"
	"fmt"
)

const profileColumns = `
	u.profile_id,
	u.profile_uuid::text,
	u.email,
	u.password_hash,
	u.organization_name,
	u.organization_type,
	u.mission_statement,
	u.focus_areas,
	u.embedding,
	u.embedding_model,
	u.created_at,
	u.updated_at`

func scanProfile(scan func(dest ...any) error) (*UserProfile, error) {
	var u UserProfile
	err := scan(
		&u.ProfileID,
		&u.ProfileUUID,
		&u.Email,
		&u.PasswordHash,
		&u.OrganizationName,
		&u.OrganizationType,
		&u.MissionStatement,
		&u.FocusAreas,
		&u.Embedding,
		&u.EmbeddingModel,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateProfile inserts a new user profile.
func (p *Pool) CreateProfile(ctx context.Context, u *UserProfile) error {
	if u == nil {
		return fmt.Errorf("profile is nil")
	}

	const q = `
INSERT INTO grants.user_profiles (
	email, password_hash, organization_name, organization_type,
	mission_statement, focus_areas
) VALUES ($1, $2, $3, $4, $5, $6)
RETURNING profile_id, profile_uuid::text, created_at, updated_at
`
	err := p.QueryRow(ctx, q,
		u.Email, u.PasswordHash, u.OrganizationName, u.OrganizationType,
		u.MissionStatement, nullableJSON(u.FocusAreas),
	).Scan(&u.ProfileID, &u.ProfileUUID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetProfileByEmail returns a profile by normalized email, or nil when absent.
func (p *Pool) GetProfileByEmail(ctx context.Context, email string) (*UserProfile, error) {
	const q = `
SELECT` + profileColumns + `
FROM grants.user_profiles u
WHERE u.email = $1
`
	u, err := scanProfile(p.QueryRow(ctx, q, email).Scan)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return u, nil
}

// GetProfileByUUID returns a profile, or nil when absent.
func (p *Pool) GetProfileByUUID(ctx context.Context, uuid string) (*UserProfile, error) {
	const q = `
SELECT` + profileColumns + `
FROM grants.user_profiles u
WHERE u.profile_uuid = $1::uuid
`
	u, err := scanProfile(p.QueryRow(ctx, q, uuid).Scan)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by uuid: %w", err)
	}
	return u, nil
}

// UpdateProfileDetails updates the descriptive fields and clears any stale
// embedding so the next backfill recomputes it.
func (p *Pool) UpdateProfileDetails(ctx context.Context, u *UserProfile) error {
	if u == nil {
		return fmt.Errorf("profile is nil")
	}

	const q = `
UPDATE grants.user_profiles
SET organization_name = $1,
	organization_type = $2,
	mission_statement = $3,
	focus_areas = $4,
	embedding = NULL,
	embedding_model = NULL,
	updated_at = now()
WHERE profile_id = $5
`
	tag, err := p.Exec(ctx, q,
		u.OrganizationName, u.OrganizationType, u.MissionStatement,
		nullableJSON(u.FocusAreas), u.ProfileID,
	)
	if err != nil {
		return fmt.Errorf("update profile details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %d not found", u.ProfileID)
	}
	return nil
}

// UpdateProfileEmbedding stores the mission embedding and its model.
func (p *Pool) UpdateProfileEmbedding(ctx context.Context, profileID int64, vector []float32, model string) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode profile embedding: %w", err)
	}

	const q = `
UPDATE grants.user_profiles
SET embedding = $1::jsonb,
	embedding_model = $2,
	updated_at = now()
WHERE profile_id = $3
`
	tag, err := p.Exec(ctx, q, string(encoded), model, profileID)
	if err != nil {
		return fmt.Errorf("update profile embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %d not found", profileID)
	}
	return nil
}

// ListProfilesNeedingEmbedding returns profiles with a mission but no vector.
func (p *Pool) ListProfilesNeedingEmbedding(ctx context.Context, limit int) ([]UserProfile, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT` + profileColumns + `
FROM grants.user_profiles u
WHERE u.embedding IS NULL
  AND u.mission_statement <> ''
ORDER BY u.profile_id ASC
LIMIT $1
`
	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query profiles needing embedding: %w", err)
	}
	defer rows.Close()

	items := make([]UserProfile, 0, limit)
	for rows.Next() {
		u, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}

	return items, nil
}

// SaveOpportunity bookmarks an opportunity for a profile. Saving twice is a no-op.
func (p *Pool) SaveOpportunity(ctx context.Context, profileID, opportunityID int64, notes *string) error {
	const q = `
INSERT INTO grants.saved_opportunities (profile_id, opportunity_id, notes)
VALUES ($1, $2, $3)
ON CONFLICT (profile_id, opportunity_id) DO UPDATE
SET notes = COALESCE(EXCLUDED.notes, grants.saved_opportunities.notes)
`
	if _, err := p.Exec(ctx, q, profileID, opportunityID, notes); err != nil {
		return fmt.Errorf("save opportunity: %w", err)
	}
	return nil
}

// UnsaveOpportunity removes a bookmark. It reports whether one existed.
func (p *Pool) UnsaveOpportunity(ctx context.Context, profileID, opportunityID int64) (bool, error) {
	const q = `
DELETE FROM grants.saved_opportunities
WHERE profile_id = $1
  AND opportunity_id = $2
`
	tag, err := p.Exec(ctx, q, profileID, opportunityID)
	if err != nil {
		return false, fmt.Errorf("unsave opportunity: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SavedOpportunityItem joins a bookmark with its opportunity for listing.
type SavedOpportunityItem struct {
	SavedOpportunityUUID string
	Notes                *string
	SavedAt              string
	Opportunity          Opportunity
}

// ListSavedOpportunities lists a profile's bookmarks, newest first.
func (p *Pool) ListSavedOpportunities(ctx context.Context, profileID int64, limit int) ([]SavedOpportunityItem, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	s.saved_opportunity_uuid::text,
	s.notes,
	s.created_at::text,` + opportunityColumns + `
FROM grants.saved_opportunities s
JOIN grants.opportunities o ON o.opportunity_id = s.opportunity_id
WHERE s.profile_id = $1
ORDER BY s.created_at DESC, s.saved_opportunity_id DESC
LIMIT $2
`
	rows, err := p.Query(ctx, q, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("query saved opportunities: %w", err)
	}
	defer rows.Close()

	items := make([]SavedOpportunityItem, 0, limit)
	for rows.Next() {
		var item SavedOpportunityItem
		o := &item.Opportunity
		if err := rows.Scan(
			&item.SavedOpportunityUUID,
			&item.Notes,
			&item.SavedAt,
			&o.OpportunityID,
			&o.OpportunityUUID,
			&o.Source,
			&o.SourceID,
			&o.OpportunityNumber,
			&o.Title,
			&o.Agency,
			&o.Description,
			&o.Summary,
			&o.PostedDate,
			&o.CloseDate,
			&o.IsRolling,
			&o.AwardFloor,
			&o.AwardCeiling,
			&o.TotalFunding,
			&o.ApplicantTypes,
			&o.FocusAreas,
			&o.CFDANumbers,
			&o.OpportunityURL,
			&o.Status,
			&o.Embedding,
			&o.EmbeddingModel,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan saved opportunity row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved opportunity rows: %w", err)
	}

	return items, nil
}

// CreateApplication opens a draft application.
func (p *Pool) CreateApplication(ctx context.Context, a *Application) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	const q = `
INSERT INTO grants.applications (profile_id, opportunity_id, status, amount_requested, notes)
VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'draft')::grants.application_status, $4, $5)
RETURNING application_id, application_uuid::text, created_at, updated_at
`
	err := p.QueryRow(ctx, q,
		a.ProfileID, a.OpportunityID, a.Status, a.AmountRequested, a.Notes,
	).Scan(&a.ApplicationID, &a.ApplicationUUID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateApplicationStatus transitions an application, stamping submitted_at on
// submit. Only the owning profile's applications are touched.
func (p *Pool) UpdateApplicationStatus(ctx context.Context, profileID int64, applicationUUID, status string, notes *string) (bool, error) {
	const q = `
UPDATE grants.applications
SET status = $1::grants.application_status,
	submitted_at = CASE WHEN $1 = 'submitted' AND submitted_at IS NULL THEN now() ELSE submitted_at END,
	notes = COALESCE($2, notes),
	updated_at = now()
WHERE application_uuid = $3::uuid
  AND profile_id = $4
`
	tag, err := p.Exec(ctx, q, status, notes, applicationUUID, profileID)
	if err != nil {
		return false, fmt.Errorf("update application status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListApplications lists a profile's applications, newest first.
func (p *Pool) ListApplications(ctx context.Context, profileID int64, limit int) ([]Application, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.application_id,
	a.application_uuid::text,
	a.profile_id,
	a.opportunity_id,
	a.status,
	a.amount_requested,
	a.submitted_at,
	a.notes,
	a.created_at,
	a.updated_at
FROM grants.applications a
WHERE a.profile_id = $1
ORDER BY a.created_at DESC, a.application_id DESC
LIMIT $2
`
	rows, err := p.Query(ctx, q, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	items := make([]Application, 0, limit)
	for rows.Next() {
		var row Application
		if err := rows.Scan(
			&row.ApplicationID,
			&row.ApplicationUUID,
			&row.ProfileID,
			&row.OpportunityID,
			&row.Status,
			&row.AmountRequested,
			&row.SubmittedAt,
			&row.Notes,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan application row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate application rows: %w", err)
	}

	return items, nil
}
