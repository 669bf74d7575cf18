package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const opportunityColumns = `
	o.opportunity_id,
	o.opportunity_uuid::text,
	o.source,
	o.source_id,
	o.opportunity_number,
	o.title,
	o.agency,
	o.description,
	o.summary,
	o.posted_date,
	o.close_date,
	o.is_rolling,
	o.award_floor,
	o.award_ceiling,
	o.total_funding,
	o.applicant_types,
	o.focus_areas,
	o.cfda_numbers,
	o.opportunity_url,
	o.status,
	o.embedding,
	o.embedding_model,
	o.created_at,
	o.updated_at`

func scanOpportunity(scan func(dest ...any) error) (*Opportunity, error) {
	var o Opportunity
	err := scan(
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
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindByOpportunityNumber returns the most recently updated record sharing the
// given opportunity number across all sources, or nil when none exists.
func (p *Pool) FindByOpportunityNumber(ctx context.Context, number string) (*Opportunity, error) {
	const q = `
SELECT` + opportunityColumns + `
FROM grants.opportunities o
WHERE o.opportunity_number = $1
ORDER BY o.updated_at DESC, o.opportunity_id ASC
LIMIT 1
`
	o, err := scanOpportunity(p.QueryRow(ctx, q, number).Scan)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find opportunity by number: %w", err)
	}
	return o, nil
}

// FindBySourceID returns the record with the given (source, source_id) identity,
// or nil when none exists.
func (p *Pool) FindBySourceID(ctx context.Context, source, sourceID string) (*Opportunity, error) {
	const q = `
SELECT` + opportunityColumns + `
FROM grants.opportunities o
WHERE o.source = $1
  AND o.source_id = $2
LIMIT 1
`
	o, err := scanOpportunity(p.QueryRow(ctx, q, source, sourceID).Scan)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find opportunity by source id: %w", err)
	}
	return o, nil
}

// GetOpportunityByUUID returns a single opportunity, or nil when none exists.
func (p *Pool) GetOpportunityByUUID(ctx context.Context, uuid string) (*Opportunity, error) {
	const q = `
SELECT` + opportunityColumns + `
FROM grants.opportunities o
WHERE o.opportunity_uuid = $1::uuid
`
	o, err := scanOpportunity(p.QueryRow(ctx, q, uuid).Scan)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity by uuid: %w", err)
	}
	return o, nil
}

// InsertOpportunity inserts a new record and fills in the generated identity
// fields on the passed struct.
func (p *Pool) InsertOpportunity(ctx context.Context, o *Opportunity) error {
	if o == nil {
		return fmt.Errorf("opportunity is nil")
	}

	const q = `
INSERT INTO grants.opportunities (
	source, source_id, opportunity_number, title, agency,
	description, summary, posted_date, close_date, is_rolling,
	award_floor, award_ceiling, total_funding,
	applicant_types, focus_areas, cfda_numbers,
	opportunity_url, status
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8, $9, $10,
	$11, $12, $13,
	$14, $15, $16,
	$17, $18
)
RETURNING opportunity_id, opportunity_uuid::text, created_at, updated_at
`
	err := p.QueryRow(ctx, q,
		o.Source, o.SourceID, o.OpportunityNumber, o.Title, o.Agency,
		o.Description, o.Summary, o.PostedDate, o.CloseDate, o.IsRolling,
		o.AwardFloor, o.AwardCeiling, o.TotalFunding,
		nullableJSON(o.ApplicantTypes), nullableJSON(o.FocusAreas), nullableJSON(o.CFDANumbers),
		o.OpportunityURL, defaultStatus(o.Status),
	).Scan(&o.OpportunityID, &o.OpportunityUUID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// UpdateOpportunity writes the mutable fields of the record, guarded by the
// updated_at value observed when the record was read. It reports false when
// a concurrent writer changed the row in between.
func (p *Pool) UpdateOpportunity(ctx context.Context, o *Opportunity, expectedUpdatedAt time.Time) (bool, error) {
	if o == nil {
		return false, fmt.Errorf("opportunity is nil")
	}

	const q = `
UPDATE grants.opportunities
SET source = $1,
	source_id = $2,
	opportunity_number = $3,
	title = $4,
	agency = $5,
	description = $6,
	summary = $7,
	posted_date = $8,
	close_date = $9,
	is_rolling = $10,
	award_floor = $11,
	award_ceiling = $12,
	total_funding = $13,
	applicant_types = $14,
	focus_areas = $15,
	cfda_numbers = $16,
	opportunity_url = $17,
	status = $18,
	updated_at = now()
WHERE opportunity_id = $19
  AND updated_at = $20
`
	tag, err := p.Exec(ctx, q,
		o.Source, o.SourceID, o.OpportunityNumber, o.Title, o.Agency,
		o.Description, o.Summary, o.PostedDate, o.CloseDate, o.IsRolling,
		o.AwardFloor, o.AwardCeiling, o.TotalFunding,
		nullableJSON(o.ApplicantTypes), nullableJSON(o.FocusAreas), nullableJSON(o.CFDANumbers),
		o.OpportunityURL, defaultStatus(o.Status),
		o.OpportunityID, expectedUpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update opportunity: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// OpportunityListOptions controls opportunity listing queries.
type OpportunityListOptions struct {
	Source string
	Status string
	Limit  int
}

// ListOpportunities lists opportunities newest first.
func (p *Pool) ListOpportunities(ctx context.Context, opts OpportunityListOptions) ([]Opportunity, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT` + opportunityColumns + `
FROM grants.opportunities o
WHERE ($1 = '' OR o.source = $1)
  AND ($2 = '' OR o.status = $2)
ORDER BY o.updated_at DESC, o.opportunity_id ASC
LIMIT $3
`
	rows, err := p.Query(ctx, q, opts.Source, opts.Status, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	items := make([]Opportunity, 0, opts.Limit)
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity row: %w", err)
		}
		items = append(items, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunity rows: %w", err)
	}

	return items, nil
}

// GetOpportunitiesByIDs returns the full records for the given ids, keyed by id.
func (p *Pool) GetOpportunitiesByIDs(ctx context.Context, ids []int64) (map[int64]*Opportunity, error) {
	result := make(map[int64]*Opportunity, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode opportunity ids: %w", err)
	}

	const q = `
SELECT` + opportunityColumns + `
FROM grants.opportunities o
WHERE o.opportunity_id IN (
	SELECT value::bigint FROM jsonb_array_elements_text($1::jsonb)
)
`
	rows, err := p.Query(ctx, q, string(encoded))
	if err != nil {
		return nil, fmt.Errorf("query opportunities by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity row: %w", err)
		}
		result[o.OpportunityID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunity rows: %w", err)
	}

	return result, nil
}

// EmbeddableOpportunity is the minimal payload handed to the embedding backfill.
type EmbeddableOpportunity struct {
	OpportunityID int64
	Title         string
	Summary       string
	Description   string
}

// ListEmbeddableOpportunities returns active opportunities without an embedding.
func (p *Pool) ListEmbeddableOpportunities(ctx context.Context, limit int) ([]EmbeddableOpportunity, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	o.opportunity_id,
	o.title,
	o.summary,
	o.description
FROM grants.opportunities o
WHERE o.status = 'active'
  AND o.embedding IS NULL
ORDER BY o.opportunity_id ASC
LIMIT $1
`
	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query embeddable opportunities: %w", err)
	}
	defer rows.Close()

	items := make([]EmbeddableOpportunity, 0, limit)
	for rows.Next() {
		var row EmbeddableOpportunity
		if err := rows.Scan(&row.OpportunityID, &row.Title, &row.Summary, &row.Description); err != nil {
			return nil, fmt.Errorf("scan embeddable opportunity row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddable opportunity rows: %w", err)
	}

	return items, nil
}

// UpdateOpportunityEmbedding stores the vector and the model that produced it.
func (p *Pool) UpdateOpportunityEmbedding(ctx context.Context, opportunityID int64, vector []float32, model string) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding vector: %w", err)
	}

	const q = `
UPDATE grants.opportunities
SET embedding = $1::jsonb,
	embedding_model = $2,
	updated_at = now()
WHERE opportunity_id = $3
`
	tag, err := p.Exec(ctx, q, string(encoded), model, opportunityID)
	if err != nil {
		return fmt.Errorf("update opportunity embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opportunity %d not found", opportunityID)
	}
	return nil
}

// ScoringProjection is the lightweight record loaded for ranking. Full rows
// are materialized only for the winners.
type ScoringProjection struct {
	OpportunityID   int64
	OpportunityUUID string
	Title           string
	Agency          *string
	ApplicantTypes  []string
	FocusAreas      []string
	Embedding       []float32
	EmbeddingModel  string
}

// ListScoringProjections returns projections of all active, embedded opportunities.
func (p *Pool) ListScoringProjections(ctx context.Context) ([]ScoringProjection, error) {
	const q = `
SELECT
	o.opportunity_id,
	o.opportunity_uuid::text,
	o.title,
	o.agency,
	o.applicant_types,
	o.focus_areas,
	o.embedding,
	o.embedding_model
FROM grants.opportunities o
WHERE o.status = 'active'
  AND o.embedding IS NOT NULL
  AND o.embedding_model IS NOT NULL
ORDER BY o.opportunity_id ASC
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query scoring projections: %w", err)
	}
	defer rows.Close()

	items := make([]ScoringProjection, 0, 256)
	for rows.Next() {
		var (
			row            ScoringProjection
			applicantTypes json.RawMessage
			focusAreas     json.RawMessage
			embedding      json.RawMessage
		)
		if err := rows.Scan(
			&row.OpportunityID,
			&row.OpportunityUUID,
			&row.Title,
			&row.Agency,
			&applicantTypes,
			&focusAreas,
			&embedding,
			&row.EmbeddingModel,
		); err != nil {
			return nil, fmt.Errorf("scan scoring projection row: %w", err)
		}
		row.ApplicantTypes = DecodeStringSlice(applicantTypes)
		row.FocusAreas = DecodeStringSlice(focusAreas)
		if len(embedding) > 0 {
			if err := json.Unmarshal(embedding, &row.Embedding); err != nil {
				return nil, fmt.Errorf("decode embedding for opportunity %d: %w", row.OpportunityID, err)
			}
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scoring projection rows: %w", err)
	}

	return items, nil
}

// CloseExpiredOpportunities flips past-deadline, non-rolling records to closed.
func (p *Pool) CloseExpiredOpportunities(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE grants.opportunities
SET status = 'closed',
	updated_at = now()
WHERE status = 'active'
  AND is_rolling = false
  AND close_date IS NOT NULL
  AND close_date < $1
`
	tag, err := p.Exec(ctx, q, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark expired opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DecodeStringSlice decodes a jsonb string array, tolerating NULL and garbage.
func DecodeStringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// EncodeStringSlice encodes a string slice as jsonb, nil stays NULL.
func EncodeStringSlice(values []string) json.RawMessage {
	if values == nil {
		return nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return encoded
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func defaultStatus(status string) string {
	if status == "" {
		return "active"
	}
	return status
}
