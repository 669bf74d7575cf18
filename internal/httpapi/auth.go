package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"lantern.fyi/grantmatch/internal/auth"
	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/globaltime"
)

const defaultSessionTouchInterval = time.Minute

const minPasswordLength = 8

type authPrincipal struct {
	SessionUUID string
	ProfileID   int64
	ProfileUUID string
	Email       string
	ExpiresAt   time.Time
}

type registerRequest struct {
	Email            string   `json:"email"`
	Password         string   `json:"password"`
	OrganizationName string   `json:"organization_name"`
	OrganizationType string   `json:"organization_type"`
	MissionStatement string   `json:"mission_statement"`
	FocusAreas       []string `json:"focus_areas"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) requireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionUUID, found := s.sessionIDFromCookie(c)
			if !found {
				return unauthorizedResponse(c)
			}

			session, err := s.pool.GetSession(c.Request().Context(), sessionUUID)
			if err != nil {
				if errors.Is(err, db.ErrNoRows) {
					s.clearSessionCookie(c)
					return unauthorizedResponse(c)
				}
				s.logger.Error().Err(err).Msg("session lookup failed")
				return internalError(c, "Failed to authorize request")
			}

			now := globaltime.UTC()
			if !session.ExpiresAt.After(now) {
				_ = s.pool.DeleteSession(c.Request().Context(), session.SessionUUID)
				s.clearSessionCookie(c)
				return unauthorizedResponse(c)
			}

			if now.Sub(session.LastSeenAt) >= defaultSessionTouchInterval {
				_ = s.pool.TouchSession(c.Request().Context(), session.SessionUUID, now)
			}

			c.Set("auth.principal", authPrincipal{
				SessionUUID: session.SessionUUID,
				ProfileID:   session.ProfileID,
				ProfileUUID: session.ProfileUUID,
				Email:       session.Email,
				ExpiresAt:   session.ExpiresAt.UTC(),
			})

			return next(c)
		}
	}
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	email := auth.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return failValidation(c, map[string]string{"email": "must be a valid email address"})
	}
	if len(req.Password) < minPasswordLength {
		return failValidation(c, map[string]string{"password": fmt.Sprintf("must be at least %d characters", minPasswordLength)})
	}

	existing, err := s.pool.GetProfileByEmail(c.Request().Context(), email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("register lookup failed")
		return internalError(c, "Failed to register")
	}
	if existing != nil {
		return fail(c, http.StatusConflict, "An account with this email already exists", nil)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("password hash failed")
		return internalError(c, "Failed to register")
	}

	profile := &db.UserProfile{
		Email:            email,
		PasswordHash:     hash,
		OrganizationName: optionalTrimmed(req.OrganizationName),
		OrganizationType: optionalTrimmed(req.OrganizationType),
		MissionStatement: strings.TrimSpace(req.MissionStatement),
		FocusAreas:       db.EncodeStringSlice(req.FocusAreas),
	}
	if err := s.pool.CreateProfile(c.Request().Context(), profile); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("create profile failed")
		return internalError(c, "Failed to register")
	}

	sessionUUID, expiresAt, err := s.openSession(c, profile.ProfileID)
	if err != nil {
		s.logger.Error().Err(err).Int64("profile_id", profile.ProfileID).Msg("create session failed")
		return internalError(c, "Failed to register")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"profile": buildProfileResponse(profile),
		"session": map[string]any{
			"session_id": sessionUUID,
			"expires_at": expiresAt.UTC(),
		},
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	email := auth.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return failValidation(c, map[string]string{
			"email":    "is required",
			"password": "is required",
		})
	}

	profile, err := s.pool.GetProfileByEmail(c.Request().Context(), email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("login lookup failed")
		return internalError(c, "Failed to process login")
	}
	if profile == nil || !auth.VerifyPassword(req.Password, profile.PasswordHash) {
		return fail(c, http.StatusUnauthorized, "Invalid email or password", nil)
	}

	now := globaltime.UTC()
	if _, cleanupErr := s.pool.DeleteExpiredSessions(c.Request().Context(), now); cleanupErr != nil {
		s.logger.Warn().Err(cleanupErr).Msg("delete expired sessions failed")
	}

	sessionUUID, expiresAt, err := s.openSession(c, profile.ProfileID)
	if err != nil {
		s.logger.Error().Err(err).Int64("profile_id", profile.ProfileID).Msg("create session failed")
		return internalError(c, "Failed to process login")
	}

	return success(c, map[string]any{
		"profile": buildProfileResponse(profile),
		"session": map[string]any{
			"session_id": sessionUUID,
			"expires_at": expiresAt.UTC(),
		},
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	if sessionUUID, found := s.sessionIDFromCookie(c); found {
		_ = s.pool.DeleteSession(c.Request().Context(), sessionUUID)
	}
	s.clearSessionCookie(c)
	return success(c, map[string]any{"logged_out": true})
}

func (s *Server) handleMe(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	profile, err := s.pool.GetProfileByUUID(c.Request().Context(), principal.ProfileUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("profile_uuid", principal.ProfileUUID).Msg("load me failed")
		return internalError(c, "Failed to load profile")
	}
	if profile == nil {
		return unauthorizedResponse(c)
	}

	return success(c, map[string]any{
		"profile": buildProfileResponse(profile),
	})
}

func (s *Server) openSession(c echo.Context, profileID int64) (string, time.Time, error) {
	now := globaltime.UTC()
	expiresAt := now.Add(s.opts.SessionTTL)
	sessionUUID, err := s.pool.CreateSession(c.Request().Context(), profileID, expiresAt, now)
	if err != nil {
		return "", time.Time{}, err
	}
	s.setSessionCookie(c, sessionUUID, expiresAt)
	return sessionUUID, expiresAt, nil
}

func unauthorizedResponse(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, "Authentication required", nil)
}

func principalFromContext(c echo.Context) (authPrincipal, bool) {
	value := c.Get("auth.principal")
	principal, ok := value.(authPrincipal)
	if !ok {
		return authPrincipal{}, false
	}
	return principal, true
}

func (s *Server) sessionIDFromCookie(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(s.opts.SessionCookie)
	if err != nil || cookie == nil {
		return "", false
	}

	sessionUUID := strings.TrimSpace(cookie.Value)
	if sessionUUID == "" {
		return "", false
	}
	if !isUUID(sessionUUID) {
		s.clearSessionCookie(c)
		return "", false
	}
	return sessionUUID, true
}

func (s *Server) setSessionCookie(c echo.Context, sessionUUID string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	c.SetCookie(&http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    sessionUUID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SessionSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
	})
}

func (s *Server) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SessionSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  globaltime.UTC().Add(-1 * time.Hour),
	})
}

func optionalTrimmed(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUUID(value string) bool {
	if len(value) != 36 {
		return false
	}

	for idx, ch := range value {
		switch idx {
		case 8, 13, 18, 23:
			if ch != '-' {
				return false
			}
			continue
		}

		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}
