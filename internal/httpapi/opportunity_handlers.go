package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"lantern.fyi/grantmatch/internal/db"
	"lantern.fyi/grantmatch/internal/globaltime"
)

func (s *Server) handleOpportunityList(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultListLimit, 1, maxListLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	opts := db.OpportunityListOptions{
		Source: strings.TrimSpace(strings.ToLower(c.QueryParam("source"))),
		Status: strings.TrimSpace(strings.ToLower(c.QueryParam("status"))),
		Limit:  limit,
	}

	records, err := s.pool.ListOpportunities(c.Request().Context(), opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("query opportunities failed")
		return internalError(c, "Failed to load opportunities")
	}

	items := make([]opportunityResponse, 0, len(records))
	for i := range records {
		items = append(items, buildOpportunityResponse(&records[i]))
	}

	return success(c, map[string]any{
		"items": items,
		"filters": map[string]any{
			"source": opts.Source,
			"status": opts.Status,
			"limit":  opts.Limit,
		},
	})
}

func (s *Server) handleOpportunityDetail(c echo.Context) error {
	opportunityUUID := strings.TrimSpace(c.Param("opportunity_uuid"))
	if !isUUID(opportunityUUID) {
		return failValidation(c, map[string]string{"opportunity_uuid": "must be a UUID"})
	}

	record, err := s.pool.GetOpportunityByUUID(c.Request().Context(), opportunityUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("opportunity_uuid", opportunityUUID).Msg("query opportunity failed")
		return internalError(c, "Failed to load opportunity")
	}
	if record == nil {
		return failNotFound(c, "Opportunity not found")
	}

	return success(c, buildOpportunityResponse(record))
}

func (s *Server) handleMatches(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}

	topK, err := parsePositiveInt(c.QueryParam("top_k"), defaultTopK, 1, maxTopK)
	if err != nil {
		return failValidation(c, map[string]string{"top_k": err.Error()})
	}
	query := strings.TrimSpace(c.QueryParam("q"))

	profile, err := s.pool.GetProfileByUUID(c.Request().Context(), principal.ProfileUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("profile_uuid", principal.ProfileUUID).Msg("load profile for matching failed")
		return internalError(c, "Failed to load matches")
	}
	if profile == nil {
		return unauthorizedResponse(c)
	}

	matches, err := s.matcher.MatchProfile(c.Request().Context(), profile, query, topK)
	if err != nil {
		s.logger.Error().Err(err).Int64("profile_id", profile.ProfileID).Msg("match query failed")
		return internalError(c, "Failed to load matches")
	}

	return success(c, map[string]any{
		"items": buildMatchResponses(matches),
		"query": query,
		"top_k": topK,
	})
}

func (s *Server) handleExportOpportunities(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), 1000, 1, 10000)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	opts := db.OpportunityListOptions{
		Source: strings.TrimSpace(strings.ToLower(c.QueryParam("source"))),
		Status: strings.TrimSpace(strings.ToLower(c.QueryParam("status"))),
		Limit:  limit,
	}

	data, err := s.exporter.OpportunitiesXLSX(c.Request().Context(), opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("export opportunities failed")
		return internalError(c, "Failed to export opportunities")
	}

	filename := fmt.Sprintf("opportunities-%s.xlsx", globaltime.UTC().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.pool.GetSystemStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleRuns(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), 25, 1, 200)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	source := strings.TrimSpace(strings.ToLower(c.QueryParam("source")))

	runs, err := s.pool.ListIngestionRuns(c.Request().Context(), source, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("source", source).Msg("query ingestion runs failed")
		return internalError(c, "Failed to load ingestion runs")
	}

	items := make([]ingestionRunResponse, 0, len(runs))
	for i := range runs {
		items = append(items, buildIngestionRunResponse(&runs[i]))
	}

	return success(c, map[string]any{
		"items":  items,
		"source": source,
		"limit":  limit,
	})
}
