package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/models"
)

func (s *Server) handleListOpportunities(c echo.Context) error {
	params := db.ListParams{
		SourceID: c.QueryParam("source_id"),
		Tier:     c.QueryParam("tier"),
		Limit:    50,
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			params.Limit = l
		}
	}
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	if minStr := c.QueryParam("min_score"); minStr != "" {
		if m, err := strconv.ParseFloat(minStr, 64); err == nil && m >= 0 && m <= 100 {
			params.MinScore = m
		}
	}

	res, err := s.store.ListOpportunities(c.Request().Context(), params)
	if err != nil {
		return s.respondError(c, err)
	}
	if res.Opportunities == nil {
		res.Opportunities = []models.Opportunity{}
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) loadOpportunity(c echo.Context) (*models.Opportunity, bool, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, false, c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}
	opp, err := s.store.GetOpportunity(c.Request().Context(), id)
	if err != nil {
		return nil, false, s.respondError(c, err)
	}
	return opp, true, nil
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, ok, err := s.loadOpportunity(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleGetScore(c echo.Context) error {
	opp, ok, err := s.loadOpportunity(c)
	if !ok {
		return err
	}
	contributions := opp.Contributions
	if contributions == nil {
		contributions = []models.Contribution{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":            opp.ID,
		"score":         opp.Score,
		"tier":          opp.Tier,
		"contributions": contributions,
		"scored_at":     opp.ScoredAt,
	})
}

func (s *Server) handleCreateOpportunity(c echo.Context) error {
	var in models.OpportunityInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
	}
	opp, err := in.Build()
	if err != nil {
		return s.respondError(c, err)
	}

	ctx := c.Request().Context()
	created, err := s.store.CreateOpportunity(ctx, opp)
	if err != nil {
		return s.respondError(c, err)
	}
	s.log.Info("opportunity created", zap.String("opportunity_id", created.ID.String()))

	if s.scoreCreated(ctx, created.ID) {
		if fresh, err := s.store.GetOpportunity(ctx, created.ID); err == nil {
			created = fresh
		}
	}
	return c.JSON(http.StatusCreated, created)
}
