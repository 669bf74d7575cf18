package db

import (
	"context"
	"fmt"
	"time"
)

// AuthSession is a session row joined with the profile it belongs to.
type AuthSession struct {
	SessionUUID string
	ProfileID   int64
	ProfileUUID string
	Email       string
	LastSeenAt  time.Time
	ExpiresAt   time.Time
}

// CreateSession opens a session for a profile and returns its UUID.
func (p *Pool) CreateSession(ctx context.Context, profileID int64, expiresAt, now time.Time) (string, error) {
	const q = `
INSERT INTO grants.sessions (profile_id, created_at, last_seen_at, expires_at)
VALUES ($1, $2, $2, $3)
RETURNING session_uuid::text
`
	var sessionUUID string
	if err := p.QueryRow(ctx, q, profileID, now, expiresAt).Scan(&sessionUUID); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionUUID, nil
}

// GetSession loads a session with its profile. Returns ErrNoRows when absent.
func (p *Pool) GetSession(ctx context.Context, sessionUUID string) (*AuthSession, error) {
	const q = `
SELECT
	s.session_uuid::text,
	s.profile_id,
	u.profile_uuid::text,
	u.email,
	s.last_seen_at,
	s.expires_at
FROM grants.sessions s
JOIN grants.user_profiles u ON u.profile_id = s.profile_id
WHERE s.session_uuid = $1::uuid
`
	var session AuthSession
	err := p.QueryRow(ctx, q, sessionUUID).Scan(
		&session.SessionUUID,
		&session.ProfileID,
		&session.ProfileUUID,
		&session.Email,
		&session.LastSeenAt,
		&session.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// TouchSession records session activity.
func (p *Pool) TouchSession(ctx context.Context, sessionUUID string, seenAt time.Time) error {
	const q = `
UPDATE grants.sessions
SET last_seen_at = $1
WHERE session_uuid = $2::uuid
`
	if _, err := p.Exec(ctx, q, seenAt, sessionUUID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// DeleteSession removes a session.
func (p *Pool) DeleteSession(ctx context.Context, sessionUUID string) error {
	const q = `DELETE FROM grants.sessions WHERE session_uuid = $1::uuid`
	if _, err := p.Exec(ctx, q, sessionUUID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions sweeps sessions past their expiry.
func (p *Pool) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM grants.sessions WHERE expires_at <= $1`
	tag, err := p.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
