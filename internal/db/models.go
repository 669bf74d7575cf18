package db

import (
	"encoding/json"
	"time"
)

// Opportunity maps grants.opportunities.
type Opportunity struct {
	OpportunityID     int64           `gorm:"column:opportunity_id;primaryKey;autoIncrement"`
	OpportunityUUID   string          `gorm:"column:opportunity_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Source            string          `gorm:"column:source;type:text;not null"`
	SourceID          string          `gorm:"column:source_id;type:text;not null"`
	OpportunityNumber *string         `gorm:"column:opportunity_number;type:text"`
	Title             string          `gorm:"column:title;type:text;not null"`
	Agency            *string         `gorm:"column:agency;type:text"`
	Description       string          `gorm:"column:description;type:text;not null;default:''"`
	Summary           string          `gorm:"column:summary;type:text;not null;default:''"`
	PostedDate        *time.Time      `gorm:"column:posted_date;type:timestamptz"`
	CloseDate         *time.Time      `gorm:"column:close_date;type:timestamptz"`
	IsRolling         bool            `gorm:"column:is_rolling;type:boolean;not null;default:false"`
	AwardFloor        *int64          `gorm:"column:award_floor;type:bigint"`
	AwardCeiling      *int64          `gorm:"column:award_ceiling;type:bigint"`
	TotalFunding      *int64          `gorm:"column:total_funding;type:bigint"`
	ApplicantTypes    json.RawMessage `gorm:"column:applicant_types;type:jsonb"`
	FocusAreas        json.RawMessage `gorm:"column:focus_areas;type:jsonb"`
	CFDANumbers       json.RawMessage `gorm:"column:cfda_numbers;type:jsonb"`
	OpportunityURL    *string         `gorm:"column:opportunity_url;type:text"`
	Status            string          `gorm:"column:status;type:text;not null;default:active"`
	Embedding         json.RawMessage `gorm:"column:embedding;type:jsonb"`
	EmbeddingModel    *string         `gorm:"column:embedding_model;type:text"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Opportunity) TableName() string { return "grants.opportunities" }

// IngestionRun maps grants.ingestion_runs.
type IngestionRun struct {
	RunID            int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	IngestionRunUUID string     `gorm:"column:ingestion_run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Source           string     `gorm:"column:source;type:text;not null"`
	StartedAt        time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt       *time.Time `gorm:"column:finished_at;type:timestamptz"`
	Status           string     `gorm:"column:status;type:grants.ingestion_run_status;not null;default:running"`
	RecordsFetched   int        `gorm:"column:records_fetched;type:integer;not null;default:0"`
	RecordsNew       int        `gorm:"column:records_new;type:integer;not null;default:0"`
	RecordsUpdated   int        `gorm:"column:records_updated;type:integer;not null;default:0"`
	RecordsMerged    int        `gorm:"column:records_merged;type:integer;not null;default:0"`
	RecordErrors     int        `gorm:"column:record_errors;type:integer;not null;default:0"`
	ErrorMessage     *string    `gorm:"column:error_message;type:text"`
	CreatedAt        time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (IngestionRun) TableName() string { return "grants.ingestion_runs" }

// UserProfile maps grants.user_profiles.
type UserProfile struct {
	ProfileID        int64           `gorm:"column:profile_id;primaryKey;autoIncrement"`
	ProfileUUID      string          `gorm:"column:profile_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Email            string          `gorm:"column:email;type:text;not null;unique"`
	PasswordHash     string          `gorm:"column:password_hash;type:text;not null"`
	OrganizationName *string         `gorm:"column:organization_name;type:text"`
	OrganizationType *string         `gorm:"column:organization_type;type:text"`
	MissionStatement string          `gorm:"column:mission_statement;type:text;not null;default:''"`
	FocusAreas       json.RawMessage `gorm:"column:focus_areas;type:jsonb"`
	Embedding        json.RawMessage `gorm:"column:embedding;type:jsonb"`
	EmbeddingModel   *string         `gorm:"column:embedding_model;type:text"`
	CreatedAt        time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (UserProfile) TableName() string { return "grants.user_profiles" }

// SavedOpportunity maps grants.saved_opportunities.
type SavedOpportunity struct {
	SavedOpportunityID   int64     `gorm:"column:saved_opportunity_id;primaryKey;autoIncrement"`
	SavedOpportunityUUID string    `gorm:"column:saved_opportunity_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProfileID            int64     `gorm:"column:profile_id;type:bigint;not null"`
	OpportunityID        int64     `gorm:"column:opportunity_id;type:bigint;not null"`
	Notes                *string   `gorm:"column:notes;type:text"`
	CreatedAt            time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (SavedOpportunity) TableName() string { return "grants.saved_opportunities" }

// Application maps grants.applications.
type Application struct {
	ApplicationID   int64      `gorm:"column:application_id;primaryKey;autoIncrement"`
	ApplicationUUID string     `gorm:"column:application_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProfileID       int64      `gorm:"column:profile_id;type:bigint;not null"`
	OpportunityID   int64      `gorm:"column:opportunity_id;type:bigint;not null"`
	Status          string     `gorm:"column:status;type:grants.application_status;not null;default:draft"`
	AmountRequested *float64   `gorm:"column:amount_requested;type:double precision"`
	SubmittedAt     *time.Time `gorm:"column:submitted_at;type:timestamptz"`
	Notes           *string    `gorm:"column:notes;type:text"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Application) TableName() string { return "grants.applications" }

// Session maps grants.sessions. Sessions are identified to clients by UUID only.
type Session struct {
	SessionID   int64     `gorm:"column:session_id;primaryKey;autoIncrement"`
	SessionUUID string    `gorm:"column:session_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProfileID   int64     `gorm:"column:profile_id;type:bigint;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;type:timestamptz;not null;default:now()"`
	ExpiresAt   time.Time `gorm:"column:expires_at;type:timestamptz;not null"`
}

func (Session) TableName() string { return "grants.sessions" }

// MatchFeedback maps grants.match_feedback. One row per (profile, opportunity,
// feedback type); duplicates are rejected at write time.
type MatchFeedback struct {
	FeedbackID    int64     `gorm:"column:feedback_id;primaryKey;autoIncrement"`
	FeedbackUUID  string    `gorm:"column:feedback_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProfileID     int64     `gorm:"column:profile_id;type:bigint;not null"`
	OpportunityID int64     `gorm:"column:opportunity_id;type:bigint;not null"`
	FeedbackType  string    `gorm:"column:feedback_type;type:grants.match_feedback_type;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (MatchFeedback) TableName() string { return "grants.match_feedback" }

func autoMigrateModels() []any {
	return []any{
		&Opportunity{},
		&IngestionRun{},
		&UserProfile{},
		&SavedOpportunity{},
		&Application{},
		&Session{},
		&MatchFeedback{},
	}
}
