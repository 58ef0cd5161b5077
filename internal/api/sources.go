package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/models"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
)

func (s *Server) handleHealthOverview(c echo.Context) error {
	overview, err := s.health.Overview(c.Request().Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, overview)
}

func (s *Server) handleSourceHealth(c echo.Context) error {
	summary, err := s.health.Summary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleSourceMetrics(c echo.Context) error {
	days := defaultHistoryDays
	if daysStr := c.QueryParam("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d < 1 || d > maxHistoryDays {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "days must be between 1 and 365"})
		}
		days = d
	}

	rows, err := s.health.History(c.Request().Context(), c.Param("id"), days)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"source_id": c.Param("id"),
		"days":      days,
		"metrics":   rows,
	})
}

func (s *Server) handleListSources(c echo.Context) error {
	activeOnly := strings.EqualFold(c.QueryParam("active"), "true")
	sources, err := s.store.ListSources(c.Request().Context(), activeOnly)
	if err != nil {
		return s.respondError(c, err)
	}
	if sources == nil {
		sources = []models.SourceConfig{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sources": sources, "count": len(sources)})
}

type metricsInput struct {
	Date               string  `json:"date"`
	OpportunitiesFound int     `json:"opportunities_found"`
	DuplicatesFound    int     `json:"duplicates_found"`
	AvgScore           float64 `json:"avg_score"`
	ErrorRate          float64 `json:"error_rate"`
	FreshnessHours     float64 `json:"freshness_hours"`
}

// parseMetricsDate accepts a bare calendar date or an RFC 3339 timestamp.
func parseMetricsDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// handleRecordMetrics appends one daily metrics row. A missing date means
// today in UTC.
func (s *Server) handleRecordMetrics(c echo.Context) error {
	var in metricsInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
	}

	m := models.SourceHealthMetrics{
		SourceID:           strings.TrimSpace(c.Param("id")),
		Date:               s.now(),
		OpportunitiesFound: in.OpportunitiesFound,
		DuplicatesFound:    in.DuplicatesFound,
		AvgScore:           in.AvgScore,
		ErrorRate:          in.ErrorRate,
		FreshnessHours:     in.FreshnessHours,
	}
	if strings.TrimSpace(in.Date) != "" {
		d, ok := parseMetricsDate(in.Date)
		if !ok {
			return s.respondError(c, &models.ValidationError{Field: "date", Message: "must be YYYY-MM-DD or RFC 3339"})
		}
		m.Date = d
	}
	m.Date = models.Day(m.Date)
	if err := m.Validate(); err != nil {
		return s.respondError(c, err)
	}

	ctx := c.Request().Context()
	if _, err := s.store.GetSource(ctx, m.SourceID); err != nil {
		return s.respondError(c, err)
	}
	stored, err := s.store.InsertHealthMetrics(ctx, m)
	if err != nil {
		return s.respondError(c, err)
	}
	s.log.Info("source metrics recorded",
		zap.String("source_id", stored.SourceID),
		zap.Time("date", stored.Date),
		zap.Int("opportunities_found", stored.OpportunitiesFound))
	return c.JSON(http.StatusCreated, stored)
}
