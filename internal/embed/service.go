package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
)

const embedBatchSize = 32

// OpportunityStore is the persistence surface for the opportunity backfill.
type OpportunityStore interface {
	ListEmbeddableOpportunities(ctx context.Context, limit int) ([]db.EmbeddableOpportunity, error)
	UpdateOpportunityEmbedding(ctx context.Context, opportunityID int64, vector []float32, model string) error
}

// ProfileStore is the persistence surface for the profile backfill.
type ProfileStore interface {
	ListProfilesNeedingEmbedding(ctx context.Context, limit int) ([]db.UserProfile, error)
	UpdateProfileEmbedding(ctx context.Context, profileID int64, vector []float32, model string) error
}

// Result counts what one backfill pass did.
type Result struct {
	Processed int `json:"processed"`
	Embedded  int `json:"embedded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Service backfills embeddings for opportunities and profiles that are
// missing one.
type Service struct {
	opportunities OpportunityStore
	profiles      ProfileStore
	embedder      Embedder
	logger        zerolog.Logger
}

func NewService(opportunities OpportunityStore, profiles ProfileStore, embedder Embedder, logger zerolog.Logger) *Service {
	return &Service{
		opportunities: opportunities,
		profiles:      profiles,
		embedder:      embedder,
		logger:        logger,
	}
}

// BackfillOpportunities embeds up to limit opportunities without a vector.
func (s *Service) BackfillOpportunities(ctx context.Context, limit int) (*Result, error) {
	pending, err := s.opportunities.ListEmbeddableOpportunities(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list embeddable opportunities: %w", err)
	}

	result := &Result{}
	for start := 0; start < len(pending); start += embedBatchSize {
		end := min(start+embedBatchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, 0, len(batch))
		for _, item := range batch {
			texts = append(texts, opportunityEmbeddingText(item))
		}

		vectors, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			result.Failed += len(batch)
			s.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("embedding batch failed")
			continue
		}

		for i, item := range batch {
			result.Processed++
			if len(vectors[i]) == 0 {
				result.Skipped++
				s.logger.Warn().Int64("opportunity_id", item.OpportunityID).Msg("embedder returned empty vector")
				continue
			}
			if err := s.opportunities.UpdateOpportunityEmbedding(ctx, item.OpportunityID, vectors[i], s.embedder.ModelName()); err != nil {
				result.Failed++
				s.logger.Error().Err(err).Int64("opportunity_id", item.OpportunityID).Msg("store embedding failed")
				continue
			}
			result.Embedded++
		}
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("embedded", result.Embedded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("opportunity embedding backfill done")

	return result, nil
}

// BackfillProfiles embeds mission statements for profiles without a vector.
func (s *Service) BackfillProfiles(ctx context.Context, limit int) (*Result, error) {
	pending, err := s.profiles.ListProfilesNeedingEmbedding(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list profiles needing embedding: %w", err)
	}

	result := &Result{}
	for _, profile := range pending {
		result.Processed++

		text := profileEmbeddingText(&profile)
		if text == "" {
			result.Skipped++
			continue
		}

		vectors, err := s.embedder.EmbedTexts(ctx, []string{text})
		if err != nil {
			result.Failed++
			s.logger.Error().Err(err).Int64("profile_id", profile.ProfileID).Msg("profile embedding failed")
			continue
		}
		if len(vectors[0]) == 0 {
			result.Skipped++
			continue
		}

		if err := s.profiles.UpdateProfileEmbedding(ctx, profile.ProfileID, vectors[0], s.embedder.ModelName()); err != nil {
			result.Failed++
			s.logger.Error().Err(err).Int64("profile_id", profile.ProfileID).Msg("store profile embedding failed")
			continue
		}
		result.Embedded++
	}

	return result, nil
}

func opportunityEmbeddingText(item db.EmbeddableOpportunity) string {
	parts := make([]string, 0, 3)
	if item.Title != "" {
		parts = append(parts, item.Title)
	}
	if item.Description != "" {
		parts = append(parts, item.Description)
	} else if item.Summary != "" {
		parts = append(parts, item.Summary)
	}
	return strings.Join(parts, "\n\n")
}

func profileEmbeddingText(profile *db.UserProfile) string {
	parts := make([]string, 0, 3)
	if mission := strings.TrimSpace(profile.MissionStatement); mission != "" {
		parts = append(parts, mission)
	}
	if focus := db.DecodeStringSlice(profile.FocusAreas); len(focus) > 0 {
		parts = append(parts, strings.Join(focus, " "))
	}
	if profile.OrganizationName != nil {
		if name := strings.TrimSpace(*profile.OrganizationName); name != "" {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "\n")
}
