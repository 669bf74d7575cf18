package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"GM_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"GM_DB_MAX_CONNS" default:"8"`

	EmbeddingHost  string `envconfig:"EMBEDDING_HOST" default:"http://127.0.0.1:8811/v1"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"all-MiniLM-L6-v2"`

	GrantsGovBaseURL string `envconfig:"GRANTS_GOV_BASE_URL" default:"https://api.grants.gov/v1/api"`
	SAMGovBaseURL    string `envconfig:"SAM_GOV_BASE_URL" default:"https://api.sam.gov/opportunities/v2"`
	SAMGovAPIKey     string `envconfig:"SAM_GOV_API_KEY" default:"DEMO_KEY"`

	IngestPageSize   int `envconfig:"INGEST_PAGE_SIZE" default:"100"`
	IngestMaxRecords int `envconfig:"INGEST_MAX_RECORDS" default:"500"`

	HTTPHost        string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort        int    `envconfig:"HTTP_PORT" default:"8090"`
	SessionTTLHours int    `envconfig:"SESSION_TTL_HOURS" default:"168"`
	SessionSecure   bool   `envconfig:"SESSION_SECURE" default:"false"`

	IngestIntervalHours int `envconfig:"INGEST_INTERVAL_HOURS" default:"6"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("GM_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("GM_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("GM_DB_MIN_CONNS (%d) cannot exceed GM_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.EmbeddingHost) == "" {
		return fmt.Errorf("EMBEDDING_HOST is required")
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return fmt.Errorf("EMBEDDING_MODEL is required")
	}
	if c.IngestPageSize < 1 {
		return fmt.Errorf("INGEST_PAGE_SIZE must be >= 1")
	}
	if c.IngestMaxRecords < 0 {
		return fmt.Errorf("INGEST_MAX_RECORDS must be >= 0")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be a valid port")
	}
	if c.SessionTTLHours < 1 {
		return fmt.Errorf("SESSION_TTL_HOURS must be >= 1")
	}
	if c.IngestIntervalHours < 1 {
		return fmt.Errorf("INGEST_INTERVAL_HOURS must be >= 1")
	}
	return nil
}
