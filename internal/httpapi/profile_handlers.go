package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"lantern.fyi/grantmatch/internal/db"
)

type updateProfileRequest struct {
	OrganizationName string   `json:"organization_name"`
	OrganizationType string   `json:"organization_type"`
	MissionStatement string   `json:"mission_statement"`
	FocusAreas       []string `json:"focus_areas"`
}

type saveOpportunityRequest struct {
	Notes string `json:"notes"`
}

type createApplicationRequest struct {
	OpportunityUUID string   `json:"opportunity_uuid"`
	Status          string   `json:"status"`
	AmountRequested *float64 `json:"amount_requested"`
	Notes           string   `json:"notes"`
}

type updateApplicationRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type matchFeedbackRequest struct {
	OpportunityUUID string `json:"opportunity_uuid"`
	FeedbackType    string `json:"feedback_type"`
}

var applicationStatuses = map[string]bool{
	"draft":     true,
	"submitted": true,
	"awarded":   true,
	"rejected":  true,
	"withdrawn": true,
}

var feedbackTypes = map[string]bool{
	"dismissed": true,
	"saved":     true,
	"applied":   true,
}

func (s *Server) handleGetProfile(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	profile, err := s.pool.GetProfileByUUID(c.Request().Context(), principal.ProfileUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("profile_uuid", principal.ProfileUUID).Msg("load profile failed")
		return internalError(c, "Failed to load profile")
	}
	if profile == nil {
		return unauthorizedResponse(c)
	}

	return success(c, buildProfileResponse(profile))
}

func (s *Server) handlePutProfile(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	var req updateProfileRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	profile := &db.UserProfile{
		ProfileID:        principal.ProfileID,
		OrganizationName: optionalTrimmed(req.OrganizationName),
		OrganizationType: optionalTrimmed(req.OrganizationType),
		MissionStatement: strings.TrimSpace(req.MissionStatement),
		FocusAreas:       db.EncodeStringSlice(req.FocusAreas),
	}
	if err := s.pool.UpdateProfileDetails(c.Request().Context(), profile); err != nil {
		s.logger.Error().Err(err).Int64("profile_id", principal.ProfileID).Msg("update profile failed")
		return internalError(c, "Failed to update profile")
	}

	updated, err := s.pool.GetProfileByUUID(c.Request().Context(), principal.ProfileUUID)
	if err != nil || updated == nil {
		s.logger.Error().Err(err).Str("profile_uuid", principal.ProfileUUID).Msg("reload profile failed")
		return internalError(c, "Failed to update profile")
	}

	return success(c, buildProfileResponse(updated))
}

func (s *Server) handleSavedList(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultListLimit, 1, maxListLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	saved, err := s.pool.ListSavedOpportunities(c.Request().Context(), principal.ProfileID, limit)
	if err != nil {
		s.logger.Error().Err(err).Int64("profile_id", principal.ProfileID).Msg("query saved opportunities failed")
		return internalError(c, "Failed to load saved opportunities")
	}

	items := make([]savedOpportunityResponse, 0, len(saved))
	for i := range saved {
		items = append(items, savedOpportunityResponse{
			SavedOpportunityUUID: saved[i].SavedOpportunityUUID,
			Notes:                saved[i].Notes,
			SavedAt:              saved[i].SavedAt,
			Opportunity:          buildOpportunityResponse(&saved[i].Opportunity),
		})
	}

	return success(c, map[string]any{"items": items})
}

func (s *Server) handleSave(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	record, err := s.opportunityFromPath(c)
	if err != nil {
		return err
	}

	var req saveOpportunityRequest
	if c.Request().ContentLength > 0 {
		if err := decodeJSONBody(c, &req); err != nil {
			return failValidation(c, map[string]string{"body": err.Error()})
		}
	}

	if err := s.pool.SaveOpportunity(c.Request().Context(), principal.ProfileID, record.OpportunityID, optionalTrimmed(req.Notes)); err != nil {
		s.logger.Error().Err(err).Int64("profile_id", principal.ProfileID).Msg("save opportunity failed")
		return internalError(c, "Failed to save opportunity")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"opportunity_uuid": record.OpportunityUUID,
		"saved":            true,
	})
}

func (s *Server) handleUnsave(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	record, err := s.opportunityFromPath(c)
	if err != nil {
		return err
	}

	removed, err := s.pool.UnsaveOpportunity(c.Request().Context(), principal.ProfileID, record.OpportunityID)
	if err != nil {
		s.logger.Error().Err(err).Int64("profile_id", principal.ProfileID).Msg("unsave opportunity failed")
		return internalError(c, "Failed to remove saved opportunity")
	}
	if !removed {
		return failNotFound(c, "Opportunity is not saved")
	}

	return success(c, map[string]any{
		"opportunity_uuid": record.OpportunityUUID,
		"saved":            false,
	})
}

func (s *Server) handleApplicationList(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultListLimit, 1, maxListLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	applications, err := s.pool.ListApplications(c.Request().Context(), principal.ProfileID, limit)
	if err != nil {
		s.logger.Error().Err(err).Int64("profile_id", principal.ProfileID).Msg("query applications failed")
		return internalError(c, "Failed to load applications")
	}

	items := make([]applicationResponse, 0, len(applications))
	for i := range applications {
		items = append(items, buildApplicationResponse(&applications[i]))
	}

	return success(c, map[string]any{"items": items})
}

func (s *Server) handleApplicationCreate(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	var req createApplicationRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	opportunityUUID := strings.TrimSpace(req.OpportunityUUID)
	if !isUUID(opportunityUUID) {
		return failValidation(c, map[string]string{"opportunity_uuid": "must be a UUID"})
	}
	status := strings.TrimSpace(strings.ToLower(req.Status))
	if status != "" && !applicationStatuses[status] {
		return failValidation(c, map[string]string{"status": "is not a valid application status"})
	}
	if req.AmountRequested != nil && *req.AmountRequested < 0 {
		return failValidation(c, map[string]string{"amount_requested": "must not be negative"})
	}

	record, err := s.pool.GetOpportunityByUUID(c.Request().Context(), opportunityUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("opportunity_uuid", opportunityUUID).Msg("query opportunity failed")
		return internalError(c, "Failed to create application")
	}
	if record == nil {
		return failNotFound(c, "Opportunity not found")
	}

	application := &db.Application{
		ProfileID:       principal.ProfileID,
		OpportunityID:   record.OpportunityID,
		Status:          status,
		AmountRequested: req.AmountRequested,
		Notes:           optionalTrimmed(req.Notes),
	}
	if err := s.pool.CreateApplication(c.Request().Context(), application); err != nil {
		s.logger.Error().Err(err).Int64("profile_id", principal.ProfileID).Msg("create application failed")
		return internalError(c, "Failed to create application")
	}

	return successWithStatus(c, http.StatusCreated, buildApplicationResponse(application))
}

func (s *Server) handleApplicationUpdate(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	applicationUUID := strings.TrimSpace(c.Param("application_uuid"))
	if !isUUID(applicationUUID) {
		return failValidation(c, map[string]string{"application_uuid": "must be a UUID"})
	}

	var req updateApplicationRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	status := strings.TrimSpace(strings.ToLower(req.Status))
	if !applicationStatuses[status] {
		return failValidation(c, map[string]string{"status": "is not a valid application status"})
	}

	updated, err := s.pool.UpdateApplicationStatus(c.Request().Context(), principal.ProfileID, applicationUUID, status, optionalTrimmed(req.Notes))
	if err != nil {
		s.logger.Error().Err(err).Str("application_uuid", applicationUUID).Msg("update application failed")
		return internalError(c, "Failed to update application")
	}
	if !updated {
		return failNotFound(c, "Application not found")
	}

	return success(c, map[string]any{
		"application_uuid": applicationUUID,
		"status":           status,
	})
}

func (s *Server) handleMatchFeedback(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	var req matchFeedbackRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	feedbackType := strings.TrimSpace(strings.ToLower(req.FeedbackType))
	if !feedbackTypes[feedbackType] {
		return failValidation(c, map[string]string{"feedback_type": "must be dismissed, saved or applied"})
	}
	opportunityUUID := strings.TrimSpace(req.OpportunityUUID)
	if !isUUID(opportunityUUID) {
		return failValidation(c, map[string]string{"opportunity_uuid": "must be a UUID"})
	}

	record, err := s.pool.GetOpportunityByUUID(c.Request().Context(), opportunityUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("opportunity_uuid", opportunityUUID).Msg("query opportunity failed")
		return internalError(c, "Failed to record feedback")
	}
	if record == nil {
		return failNotFound(c, "Opportunity not found")
	}

	feedback, err := s.pool.CreateMatchFeedback(c.Request().Context(), principal.ProfileID, record.OpportunityID, feedbackType)
	if err != nil {
		s.logger.Error().Err(err).Int64("profile_id", principal.ProfileID).Msg("create match feedback failed")
		return internalError(c, "Failed to record feedback")
	}
	if feedback == nil {
		return fail(c, http.StatusConflict, "Feedback already submitted", nil)
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"feedback_uuid":    feedback.FeedbackUUID,
		"opportunity_uuid": record.OpportunityUUID,
		"feedback_type":    feedbackType,
		"created_at":       feedback.CreatedAt,
	})
}

func (s *Server) opportunityFromPath(c echo.Context) (*db.Opportunity, error) {
	opportunityUUID := strings.TrimSpace(c.Param("opportunity_uuid"))
	if !isUUID(opportunityUUID) {
		return nil, failValidation(c, map[string]string{"opportunity_uuid": "must be a UUID"})
	}

	record, err := s.pool.GetOpportunityByUUID(c.Request().Context(), opportunityUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("opportunity_uuid", opportunityUUID).Msg("query opportunity failed")
		return nil, internalError(c, "Failed to load opportunity")
	}
	if record == nil {
		return nil, failNotFound(c, "Opportunity not found")
	}
	return record, nil
}
