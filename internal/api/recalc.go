package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/recalc"
)

func (s *Server) handleRecalculateAll(c echo.Context) error {
	job, err := s.recalc.RecalculateAll(c.Request().Context(), "manual")
	if errors.Is(err, recalc.ErrRecalculationConflict) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A recalculation job is already running",
			"job_id": job.ID,
		})
	}
	if err != nil {
		return s.respondError(c, err)
	}

	s.log.Info("recalculation requested", zap.String("job_id", job.ID))
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Recalculation job started",
		"job_id":  job.ID,
		"poll":    fmt.Sprintf("/api/v1/recalculate/jobs/%s", job.ID),
	})
}

func (s *Server) handleListJobs(c echo.Context) error {
	jobs := s.recalc.Jobs()
	if jobs == nil {
		jobs = []recalc.Job{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	job, err := s.recalc.Job(c.Param("id"))
	if errors.Is(err, recalc.ErrJobNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Job not found"})
	}
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleCancelJob(c echo.Context) error {
	job, err := s.recalc.Cancel(c.Param("id"))
	switch {
	case errors.Is(err, recalc.ErrJobNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Job not found"})
	case errors.Is(err, recalc.ErrJobNotRunning):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "Job is not running",
			"job_id": job.ID,
			"status": job.State,
		})
	case err != nil:
		return s.respondError(c, err)
	}

	s.log.Info("recalculation cancel requested", zap.String("job_id", job.ID))
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Cancellation requested; the job stops after its current batch",
		"job_id":  job.ID,
	})
}

func (s *Server) handleRecalculateOne(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}
	res, err := s.recalc.RecalculateOne(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":            id,
		"score":         res.Score,
		"tier":          res.Tier,
		"contributions": res.Contributions,
		"skipped_rules": res.Skipped,
	})
}

// scoreCreated scores a freshly stored opportunity. A scoring failure is
// logged but does not fail the create; the next full job picks it up.
func (s *Server) scoreCreated(ctx context.Context, id uuid.UUID) bool {
	if s.recalc == nil {
		return false
	}
	if _, err := s.recalc.RecalculateOne(ctx, id); err != nil {
		s.log.Warn("initial scoring failed", zap.String("opportunity_id", id.String()), zap.Error(err))
		return false
	}
	return true
}
