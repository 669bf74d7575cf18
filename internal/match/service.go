package match

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/embed"
)

// Store is the persistence surface the matcher reads from.
type Store interface {
	ListScoringProjections(ctx context.Context) ([]db.ScoringProjection, error)
	GetOpportunitiesByIDs(ctx context.Context, ids []int64) (map[int64]*db.Opportunity, error)
}

// Match is one ranked result with its fully materialized record.
type Match struct {
	Opportunity *db.Opportunity `json:"opportunity"`
	Score       float64         `json:"score"`
	Explanation string          `json:"explanation"`
}

// Service answers match queries: embed the query, score lightweight
// projections, then materialize full records for just the winners.
type Service struct {
	store    Store
	embedder embed.Embedder
	ranker   *Ranker
	logger   zerolog.Logger
}

func NewService(store Store, embedder embed.Embedder, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		ranker:   NewRanker(logger),
		logger:   logger,
	}
}

// MatchProfile ranks opportunities for a profile, optionally overridden by
// an ad-hoc query string.
func (s *Service) MatchProfile(ctx context.Context, profile *db.UserProfile, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}

	queryVector, queryModel, err := s.queryVector(ctx, profile, query)
	if err != nil {
		return nil, err
	}
	if queryVector == nil {
		return nil, nil
	}

	pool, err := s.store.ListScoringProjections(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidate pool: %w", err)
	}

	var rankProfile *Profile
	if profile != nil {
		orgType := ""
		if profile.OrganizationType != nil {
			orgType = *profile.OrganizationType
		}
		rankProfile = &Profile{
			OrganizationType: orgType,
			FocusAreas:       db.DecodeStringSlice(profile.FocusAreas),
		}
	}

	scored, err := s.ranker.Rank(ctx, queryVector, queryModel, pool, rankProfile, topK)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(scored))
	for _, item := range scored {
		ids = append(ids, item.Projection.OpportunityID)
	}
	// The scoring deadline may have expired mid-pool; the truncated winners
	// still get materialized, so the lookup runs without that deadline.
	records, err := s.store.GetOpportunitiesByIDs(context.WithoutCancel(ctx), ids)
	if err != nil {
		return nil, fmt.Errorf("materialize ranked records: %w", err)
	}

	subject := "mission"
	if strings.TrimSpace(query) != "" {
		subject = "search"
	}

	matches := make([]Match, 0, len(scored))
	for _, item := range scored {
		record, ok := records[item.Projection.OpportunityID]
		if !ok {
			continue
		}
		// Boosts can push the score past 1.0; the displayed percentage caps
		// at 100 so it stays readable as relevance.
		relevance := item.Score * 100
		if relevance > 100 {
			relevance = 100
		}
		matches = append(matches, Match{
			Opportunity: record,
			Score:       item.Score,
			Explanation: fmt.Sprintf("Matches your %s with %.1f%% relevance", subject, relevance),
		})
	}
	return matches, nil
}

// queryVector picks the vector to rank against: a fresh embedding for
// ad-hoc queries, the stored profile embedding when present, otherwise an
// embedding of the profile text.
func (s *Service) queryVector(ctx context.Context, profile *db.UserProfile, query string) ([]float32, string, error) {
	if text := strings.TrimSpace(query); text != "" {
		return s.embedText(ctx, text)
	}

	if profile == nil {
		return nil, "", fmt.Errorf("either a profile or a query is required")
	}

	if len(profile.Embedding) > 0 && profile.EmbeddingModel != nil {
		var vector []float32
		if err := json.Unmarshal(profile.Embedding, &vector); err == nil && len(vector) > 0 {
			return vector, *profile.EmbeddingModel, nil
		}
		s.logger.Warn().Int64("profile_id", profile.ProfileID).Msg("stored profile embedding unreadable, re-embedding")
	}

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
	if len(parts) == 0 {
		return nil, "", nil
	}

	return s.embedText(ctx, strings.Join(parts, " "))
}

func (s *Service) embedText(ctx context.Context, text string) ([]float32, string, error) {
	vectors, err := s.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, "", fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, "", fmt.Errorf("embedder returned no vector for query")
	}
	return vectors[0], s.embedder.ModelName(), nil
}
