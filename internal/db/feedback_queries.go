package db

import (
	"context"
	"fmt"
)

// CreateMatchFeedback records one feedback signal for a ranked match. It
// returns nil with no error when the same (profile, opportunity, type)
// feedback already exists.
func (p *Pool) CreateMatchFeedback(ctx context.Context, profileID, opportunityID int64, feedbackType string) (*MatchFeedback, error) {
	const q = `
INSERT INTO grants.match_feedback (profile_id, opportunity_id, feedback_type)
VALUES ($1, $2, $3::grants.match_feedback_type)
ON CONFLICT (profile_id, opportunity_id, feedback_type) DO NOTHING
RETURNING feedback_id, feedback_uuid::text, created_at
`
	feedback := &MatchFeedback{
		ProfileID:     profileID,
		OpportunityID: opportunityID,
		FeedbackType:  feedbackType,
	}
	err := p.QueryRow(ctx, q, profileID, opportunityID, feedbackType).
		Scan(&feedback.FeedbackID, &feedback.FeedbackUUID, &feedback.CreatedAt)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create match feedback: %w", err)
	}
	return feedback, nil
}
