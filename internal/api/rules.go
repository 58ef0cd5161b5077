package api

import (
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/models"
)

func parseRuleID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// cleanText strips markup from operator-entered copy. Rule labels are shown
// verbatim next to scores, so they are stored as plain text.
func (s *Server) cleanText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.text.Sanitize(in)))
}

func (s *Server) bindRule(c echo.Context) (models.ScoringRule, error) {
	var in models.RuleInput
	if err := c.Bind(&in); err != nil {
		return models.ScoringRule{}, &models.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	in.Label = s.cleanText(in.Label)
	in.Description = s.cleanText(in.Description)
	return in.Build()
}

// rulesChanged kicks off a rescoring pass after any rule write.
func (s *Server) rulesChanged(reason string, id int64) {
	if s.recalc == nil {
		return
	}
	s.recalc.RulesChanged(reason + " " + strconv.FormatInt(id, 10))
}

func (s *Server) handleListRules(c echo.Context) error {
	rules, err := s.store.ListRules(c.Request().Context())
	if err != nil {
		return s.respondError(c, err)
	}
	if rules == nil {
		rules = []models.ScoringRule{}
	}
	return c.JSON(http.StatusOK, map[string]any{"rules": rules, "count": len(rules)})
}

func (s *Server) handleGetRule(c echo.Context) error {
	id, ok := parseRuleID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}
	rule, err := s.store.GetRule(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, rule)
}

func (s *Server) handleCreateRule(c echo.Context) error {
	rule, err := s.bindRule(c)
	if err != nil {
		return s.respondError(c, err)
	}
	created, err := s.store.CreateRule(c.Request().Context(), rule)
	if err != nil {
		return s.respondError(c, err)
	}
	s.log.Info("rule created", zap.Int64("rule_id", created.ID), zap.String("name", created.Name))
	s.rulesChanged("created", created.ID)
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateRule(c echo.Context) error {
	id, ok := parseRuleID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}
	rule, err := s.bindRule(c)
	if err != nil {
		return s.respondError(c, err)
	}
	updated, err := s.store.UpdateRule(c.Request().Context(), id, rule)
	if err != nil {
		return s.respondError(c, err)
	}
	s.log.Info("rule updated", zap.Int64("rule_id", id), zap.String("name", updated.Name))
	s.rulesChanged("updated", id)
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleToggleRule(c echo.Context) error {
	id, ok := parseRuleID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}
	rule, err := s.store.ToggleRule(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	s.log.Info("rule toggled", zap.Int64("rule_id", id), zap.Bool("is_active", rule.IsActive))
	s.rulesChanged("toggled", id)
	return c.JSON(http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(c echo.Context) error {
	id, ok := parseRuleID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}
	if err := s.store.DeleteRule(c.Request().Context(), id); err != nil {
		return s.respondError(c, err)
	}
	s.log.Info("rule deleted", zap.Int64("rule_id", id))
	s.rulesChanged("deleted", id)
	return c.NoContent(http.StatusNoContent)
}
