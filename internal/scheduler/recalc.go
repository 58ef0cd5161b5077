package scheduler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/recalc"
)

// Recalculator is the part of the coordinator a scheduled run needs.
type Recalculator interface {
	RecalculateAll(ctx context.Context, trigger string) (recalc.Job, error)
}

// ScheduleRecalculation registers a periodic full recalculation. Deadline
// rules depend on the current date, so stored scores drift without one.
// A tick that lands while another job runs is logged and dropped.
func ScheduleRecalculation(r *Runner, spec string, c Recalculator) error {
	_, err := r.Add("recalculate", spec, func(ctx context.Context) {
		job, err := c.RecalculateAll(ctx, "schedule")
		switch {
		case errors.Is(err, recalc.ErrRecalculationConflict):
			r.logger.Info("cron: recalculation skipped, job already running", zap.String("job_id", job.ID))
		case errors.Is(err, recalc.ErrShutdown):
			r.logger.Info("cron: recalculation skipped, shutting down")
		case err != nil:
			r.logger.Error("cron: recalculation failed to start", zap.Error(err))
		default:
			r.logger.Info("cron: recalculation started", zap.String("job_id", job.ID))
		}
	})
	return err
}
