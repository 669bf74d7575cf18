package match

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"lantern.fyi/grantmatch/internal/db"
)

type fakeStore struct {
	projections    []db.ScoringProjection
	materializedID []int64
}

func (s *fakeStore) ListScoringProjections(_ context.Context) ([]db.ScoringProjection, error) {
	return s.projections, nil
}

func (s *fakeStore) GetOpportunitiesByIDs(ctx context.Context, ids []int64) (map[int64]*db.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.materializedID = ids
	out := make(map[int64]*db.Opportunity, len(ids))
	for _, id := range ids {
		out[id] = &db.Opportunity{OpportunityID: id, Title: "materialized"}
	}
	return out, nil
}

type fakeEmbedder struct {
	model  string
	vector []float32
}

func (e *fakeEmbedder) ModelName() string { return e.model }

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}

func TestMatchProfileMaterializesOnlyWinners(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	for i := int64(1); i <= 8; i++ {
		store.projections = append(store.projections, projection(i, []float32{1, float32(i)}, nil, nil))
	}
	embedder := &fakeEmbedder{model: testModel, vector: []float32{1, 0}}
	svc := NewService(store, embedder, zerolog.Nop())

	profile := &db.UserProfile{ProfileID: 1, MissionStatement: "rural healthcare"}
	matches, err := svc.MatchProfile(context.Background(), profile, "", 3)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("match count = %d, want 3", len(matches))
	}
	if len(store.materializedID) != 3 {
		t.Fatalf("materialized %d records, want exactly the top 3", len(store.materializedID))
	}
}

func TestMatchProfileUsesStoredEmbedding(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		projections: []db.ScoringProjection{projection(1, []float32{1, 0}, nil, nil)},
	}
	// The embedder would produce an orthogonal vector; the stored profile
	// embedding must win instead.
	embedder := &fakeEmbedder{model: testModel, vector: []float32{0, 1}}
	svc := NewService(store, embedder, zerolog.Nop())

	model := testModel
	profile := &db.UserProfile{
		ProfileID:      1,
		Embedding:      []byte(`[1,0]`),
		EmbeddingModel: &model,
	}

	matches, err := svc.MatchProfile(context.Background(), profile, "", 5)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("match count = %d, want 1", len(matches))
	}
	if matches[0].Score < 0.999 {
		t.Fatalf("score = %v, stored embedding should give cosine 1.0", matches[0].Score)
	}
}

func TestMatchProfileAdHocQueryOverridesProfile(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		projections: []db.ScoringProjection{projection(1, []float32{0, 1}, nil, nil)},
	}
	embedder := &fakeEmbedder{model: testModel, vector: []float32{0, 1}}
	svc := NewService(store, embedder, zerolog.Nop())

	model := testModel
	profile := &db.UserProfile{
		ProfileID:      1,
		Embedding:      []byte(`[1,0]`),
		EmbeddingModel: &model,
	}

	matches, err := svc.MatchProfile(context.Background(), profile, "coastal wetlands restoration", 5)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Score < 0.999 {
		t.Fatalf("ad-hoc query must be embedded fresh, got %+v", matches)
	}
	if matches[0].Explanation == "" {
		t.Fatalf("matches must carry an explanation")
	}
}

func TestMatchProfileDeliversTruncatedResultsAfterDeadline(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		projections: []db.ScoringProjection{
			projection(1, []float32{1, 0}, nil, nil),
			projection(2, []float32{0, 1}, nil, nil),
		},
	}
	embedder := &fakeEmbedder{model: testModel, vector: []float32{1, 0}}
	svc := NewService(store, embedder, zerolog.Nop())

	ctx := &expiringContext{Context: context.Background(), remaining: 1}
	profile := &db.UserProfile{ProfileID: 1, MissionStatement: "rural healthcare"}

	matches, err := svc.MatchProfile(ctx, profile, "", 5)
	if err != nil {
		t.Fatalf("a deadline mid-scoring must still deliver the scored prefix: %v", err)
	}
	if len(matches) != 1 || matches[0].Opportunity.OpportunityID != 1 {
		t.Fatalf("want the one candidate scored before the deadline, got %+v", matches)
	}
}

func TestMatchProfileExplanationCapsRelevance(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		projections: []db.ScoringProjection{
			projection(1, []float32{1, 0}, []string{"Nonprofits"}, nil),
		},
	}
	embedder := &fakeEmbedder{model: testModel, vector: []float32{1, 0}}
	svc := NewService(store, embedder, zerolog.Nop())

	orgType := "Nonprofits"
	profile := &db.UserProfile{
		ProfileID:        1,
		MissionStatement: "food security",
		OrganizationType: &orgType,
	}

	matches, err := svc.MatchProfile(context.Background(), profile, "", 5)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("match count = %d, want 1", len(matches))
	}
	if matches[0].Score <= 1.0 {
		t.Fatalf("boosted score should exceed 1.0, got %v", matches[0].Score)
	}
	if !strings.Contains(matches[0].Explanation, "100.0%") {
		t.Fatalf("displayed relevance must cap at 100%%, got %q", matches[0].Explanation)
	}
}

func TestMatchProfileEmptyProfileReturnsNothing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	embedder := &fakeEmbedder{model: testModel, vector: []float32{1, 0}}
	svc := NewService(store, embedder, zerolog.Nop())

	matches, err := svc.MatchProfile(context.Background(), &db.UserProfile{ProfileID: 1}, "", 5)
	if err != nil {
		t.Fatalf("empty profile must not error: %v", err)
	}
	if matches != nil {
		t.Fatalf("empty profile must yield no matches, got %d", len(matches))
	}
}
