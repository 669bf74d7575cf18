package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
)

// ErrModelMismatch rejects scoring vectors produced by different models.
var ErrModelMismatch = errors.New("embedding model mismatch")

// Categorical boosts stacked on top of the cosine base. Final scores can
// modestly exceed 1.0; that is intentional.
const (
	applicantTypeExactBoost = 0.10
	applicantTypeLooseBoost = 0.05
	focusAreaBoost          = 0.05
	focusAreaBoostCap       = 0.15
)

// Profile carries the boost-relevant slice of a user profile.
type Profile struct {
	OrganizationType string
	FocusAreas       []string
}

// Scored pairs a candidate projection with its final score.
type Scored struct {
	Projection db.ScoringProjection
	Score      float64
}

// Ranker scores candidate projections against a query vector. It is
// stateless per call.
type Ranker struct {
	logger zerolog.Logger
}

func NewRanker(logger zerolog.Logger) *Ranker {
	return &Ranker{logger: logger}
}

// Score computes one candidate's final score. Candidates embedded by a
// different model than the query are rejected outright.
func (r *Ranker) Score(queryVector []float32, queryModel string, candidate db.ScoringProjection, profile *Profile) (float64, error) {
	if candidate.EmbeddingModel != queryModel {
		return 0, fmt.Errorf("candidate %d embedded with %q, query with %q: %w",
			candidate.OpportunityID, candidate.EmbeddingModel, queryModel, ErrModelMismatch)
	}

	score := CosineSimilarity(queryVector, candidate.Embedding)
	if profile != nil {
		score += applicantTypeBoost(profile.OrganizationType, candidate.ApplicantTypes)
		score += focusOverlapBoost(profile.FocusAreas, candidate.FocusAreas)
	}
	return score, nil
}

// Rank scores the pool and returns the topK candidates, highest first. Ties
// keep the scan order of the pool. A context deadline truncates the scored
// pool rather than failing the call.
func (r *Ranker) Rank(ctx context.Context, queryVector []float32, queryModel string, pool []db.ScoringProjection, profile *Profile, topK int) ([]Scored, error) {
	if strings.TrimSpace(queryModel) == "" {
		return nil, fmt.Errorf("query model is required: %w", ErrModelMismatch)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be > 0")
	}

	scored := make([]Scored, 0, len(pool))
	truncated := false
	for _, candidate := range pool {
		if err := ctx.Err(); err != nil {
			truncated = true
			break
		}

		// Vectors from other models are outside the candidate pool by
		// definition, never silently scored.
		if candidate.EmbeddingModel != queryModel {
			continue
		}
		if len(candidate.Embedding) == 0 {
			continue
		}

		score, err := r.Score(queryVector, queryModel, candidate, profile)
		if err != nil {
			return nil, err
		}
		scored = append(scored, Scored{Projection: candidate, Score: score})
	}

	if truncated {
		r.logger.Warn().
			Int("scored", len(scored)).
			Int("pool", len(pool)).
			Msg("deadline reached, ranking partial pool")
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func applicantTypeBoost(organizationType string, applicantTypes []string) float64 {
	orgType := strings.TrimSpace(organizationType)
	if orgType == "" || len(applicantTypes) == 0 {
		return 0
	}

	for _, at := range applicantTypes {
		if at == orgType {
			return applicantTypeExactBoost
		}
	}

	lowerOrg := strings.ToLower(orgType)
	for _, at := range applicantTypes {
		if strings.Contains(strings.ToLower(at), lowerOrg) {
			return applicantTypeLooseBoost
		}
	}
	return 0
}

func focusOverlapBoost(profileAreas, candidateAreas []string) float64 {
	if len(profileAreas) == 0 || len(candidateAreas) == 0 {
		return 0
	}

	candidateSet := make(map[string]bool, len(candidateAreas))
	for _, area := range candidateAreas {
		candidateSet[strings.ToLower(area)] = true
	}

	overlap := 0
	seen := make(map[string]bool, len(profileAreas))
	for _, area := range profileAreas {
		key := strings.ToLower(area)
		if seen[key] {
			continue
		}
		seen[key] = true
		if candidateSet[key] {
			overlap++
		}
	}

	boost := float64(overlap) * focusAreaBoost
	if boost > focusAreaBoostCap {
		boost = focusAreaBoostCap
	}
	return boost
}
