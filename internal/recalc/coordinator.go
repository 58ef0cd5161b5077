// Package recalc recomputes persisted opportunity scores when rules change.
package recalc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/scoring"
)

var (
	ErrRecalculationConflict = errors.New("a recalculation job is already running")
	ErrJobNotFound           = errors.New("job not found")
	ErrJobNotRunning         = errors.New("job is not running")
	ErrShutdown              = errors.New("recalculation coordinator is shut down")
)

var errStopped = errors.New("cancelled")

const (
	DefaultBatchSize = 500
	DefaultWorkers   = 4
	DefaultTimeout   = 30 * time.Minute
	DefaultHistory   = 20
)

// Store is what recalculation needs from persistence. Each score write must
// commit on its own; no transaction spans a batch.
type Store interface {
	ActiveRules(ctx context.Context) ([]models.ScoringRule, error)
	CountOpportunities(ctx context.Context) (int, error)
	// OpportunityIDs returns up to limit ids strictly greater than after,
	// ascending. uuid.Nil starts from the beginning.
	OpportunityIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	SaveOpportunityScore(ctx context.Context, id uuid.UUID, u models.ScoreUpdate) error
}

// Metrics receives recalculation events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	JobStarted(trigger string)
	JobFinished(state string, d time.Duration, succeeded, failed int)
	RuleSkipped(ruleID int64)
	OpportunityScored(tier string)
}

type nopMetrics struct{}

func (nopMetrics) JobStarted(string)                          {}
func (nopMetrics) JobFinished(string, time.Duration, int, int) {}
func (nopMetrics) RuleSkipped(int64)                           {}
func (nopMetrics) OpportunityScored(string)                    {}

type Options struct {
	BatchSize int
	Workers   int
	Timeout   time.Duration
	// History bounds how many finished jobs stay pollable.
	History int
	Metrics Metrics
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.History <= 0 {
		o.History = DefaultHistory
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	return o
}

// Coordinator runs at most one full recalculation at a time. A trigger that
// arrives while a job runs is rejected with ErrRecalculationConflict; a rule
// change that arrives while a job runs queues exactly one follow-up job.
type Coordinator struct {
	store Store
	agg   atomic.Pointer[scoring.Aggregator]
	opts  Options
	log   *zap.Logger
	now   func() time.Time

	mu      sync.Mutex
	current *run
	pending string
	closed  bool
	history []Job
	wg      sync.WaitGroup
}

func NewCoordinator(store Store, agg *scoring.Aggregator, log *zap.Logger, opts Options) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		store: store,
		opts:  opts.withDefaults(),
		log:   log,
		now:   time.Now,
	}
	c.agg.Store(agg)
	return c
}

// SetAggregator swaps the scoring policy used by jobs started afterwards.
func (c *Coordinator) SetAggregator(agg *scoring.Aggregator) {
	if agg != nil {
		c.agg.Store(agg)
	}
}

func (c *Coordinator) Aggregator() *scoring.Aggregator { return c.agg.Load() }

// RecalculateAll starts a full job in the background and returns its initial
// state. The job outlives ctx's cancellation but keeps its values.
func (c *Coordinator) RecalculateAll(ctx context.Context, trigger string) (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Job{}, ErrShutdown
	}
	if c.current != nil {
		return c.current.job, ErrRecalculationConflict
	}
	r := c.startLocked(ctx, trigger)
	return r.job, nil
}

// RulesChanged schedules an implicit full job. If one is in flight it keeps
// its rule snapshot and a single follow-up is queued behind it.
func (c *Coordinator) RulesChanged(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.log.Info("recalc: rule change ignored after shutdown", zap.String("reason", reason))
		return
	}
	if c.current != nil {
		c.pending = reason
		c.current.job.FollowUp = true
		c.log.Info("recalc: follow-up queued",
			zap.String("running_job", c.current.job.ID),
			zap.String("reason", reason))
		return
	}
	c.startLocked(context.Background(), "rules: "+reason)
}

// RecalculateOne scores a single opportunity synchronously with the current
// active rules and persists the result. It does not wait for or conflict
// with a running full job.
func (c *Coordinator) RecalculateOne(ctx context.Context, id uuid.UUID) (scoring.Result, error) {
	rules, err := c.store.ActiveRules(ctx)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("load rules: %w", err)
	}
	return c.scoreOne(ctx, c.Aggregator(), rules, id, c.now())
}

// Job returns the running or a recently finished job.
func (c *Coordinator) Job(id string) (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.job.ID == id {
		return c.current.job, nil
	}
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].ID == id {
			return c.history[i], nil
		}
	}
	return Job{}, ErrJobNotFound
}

// Jobs lists the running job (if any) followed by finished jobs, newest first.
func (c *Coordinator) Jobs() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Job, 0, len(c.history)+1)
	if c.current != nil {
		out = append(out, c.current.job)
	}
	for i := len(c.history) - 1; i >= 0; i-- {
		out = append(out, c.history[i])
	}
	return out
}

// Current returns the running job, if any.
func (c *Coordinator) Current() (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Job{}, false
	}
	return c.current.job, true
}

// Cancel asks the running job to stop before its next batch. The batch in
// flight finishes and its writes stand.
func (c *Coordinator) Cancel(id string) (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.job.ID == id {
		c.current.requestStop()
		return c.current.job, nil
	}
	for _, j := range c.history {
		if j.ID == id {
			return j, ErrJobNotRunning
		}
	}
	return Job{}, ErrJobNotFound
}

// Wait blocks until no job is running, including queued follow-ups.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown drops any queued follow-up, stops the running job and waits.
// Later triggers are refused.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.pending = ""
	if c.current != nil {
		c.current.requestStop()
	}
	c.mu.Unlock()
	return c.Wait(ctx)
}

// startLocked registers and launches a job. c.mu must be held.
func (c *Coordinator) startLocked(parent context.Context, trigger string) *run {
	r := newRun(uuid.New().String()[:8], trigger, c.now())
	c.current = r

	// context.WithoutCancel detaches from the caller's lifecycle (an HTTP
	// request, a cron tick) but preserves its values.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.opts.Timeout)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		err := c.execute(ctx, r)
		c.finish(r, err)
	}()

	c.opts.Metrics.JobStarted(trigger)
	c.log.Info("recalc: job started", zap.String("job_id", r.job.ID), zap.String("trigger", trigger))
	return r
}

func (c *Coordinator) execute(ctx context.Context, r *run) error {
	rules, err := c.store.ActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	total, err := c.store.CountOpportunities(ctx)
	if err != nil {
		return fmt.Errorf("count opportunities: %w", err)
	}

	skips := newSkipTracker(r.job.ID, c.log, c.opts.Metrics)
	base := c.Aggregator()
	agg := base.WithEvaluator(base.Evaluator().WithSkipFunc(skips.observe))
	rules = scoring.OrderRules(rules)
	now := c.now()

	c.mu.Lock()
	r.job.RuleCount = len(rules)
	r.job.Total = total
	c.mu.Unlock()

	after := uuid.Nil
	for {
		if r.stopped() {
			return errStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ids, err := c.store.OpportunityIDs(ctx, after, c.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("page opportunities after %s: %w", after, err)
		}
		if len(ids) == 0 {
			break
		}

		ok, failed := c.scoreBatch(ctx, agg, rules, ids, now)

		c.mu.Lock()
		r.job.Batches++
		r.job.Processed += len(ids)
		r.job.Succeeded += ok
		r.job.Failed += failed
		r.job.SkippedRules = skips.count()
		c.mu.Unlock()

		after = ids[len(ids)-1]
		if len(ids) < c.opts.BatchSize {
			break
		}
	}
	return nil
}

// scoreBatch scores ids on a bounded worker group. A failure on one
// opportunity is counted and never stops the others.
func (c *Coordinator) scoreBatch(ctx context.Context, agg *scoring.Aggregator, rules []models.ScoringRule, ids []uuid.UUID, now time.Time) (int, int) {
	var ok, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := c.scoreOne(ctx, agg, rules, id, now); err != nil {
				failed.Add(1)
				c.log.Debug("recalc: opportunity failed", zap.String("opportunity_id", id.String()), zap.Error(err))
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(failed.Load())
}

func (c *Coordinator) scoreOne(ctx context.Context, agg *scoring.Aggregator, rules []models.ScoringRule, id uuid.UUID, now time.Time) (scoring.Result, error) {
	opp, err := c.store.GetOpportunity(ctx, id)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("load opportunity %s: %w", id, err)
	}
	res := agg.Score(*opp, rules, now)
	err = c.store.SaveOpportunityScore(ctx, id, models.ScoreUpdate{
		Score:         res.Score,
		Tier:          res.Tier,
		Contributions: res.Contributions,
		ScoredAt:      now,
	})
	if err != nil {
		return scoring.Result{}, fmt.Errorf("save score %s: %w", id, err)
	}
	c.opts.Metrics.OpportunityScored(res.Tier)
	return res, nil
}

func (c *Coordinator) finish(r *run, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := c.now()
	r.job.EndedAt = &end
	r.job.Duration = end.Sub(r.job.StartedAt).Round(time.Millisecond).String()
	switch {
	case err == nil:
		r.job.State = StateCompleted
	case errors.Is(err, errStopped):
		r.job.State = StateCancelled
	default:
		r.job.State = StateFailed
		r.job.Error = err.Error()
	}

	c.history = append(c.history, r.job)
	if len(c.history) > c.opts.History {
		c.history = c.history[len(c.history)-c.opts.History:]
	}
	c.current = nil

	j := r.job
	c.opts.Metrics.JobFinished(string(j.State), end.Sub(j.StartedAt), j.Succeeded, j.Failed)
	fields := []zap.Field{
		zap.String("job_id", j.ID),
		zap.String("status", string(j.State)),
		zap.Int("processed", j.Processed),
		zap.Int("succeeded", j.Succeeded),
		zap.Int("failed", j.Failed),
		zap.Int("batches", j.Batches),
		zap.Int("skipped_rules", j.SkippedRules),
		zap.String("duration", j.Duration),
	}
	if j.State == StateFailed {
		c.log.Error("recalc: job failed", append(fields, zap.String("error", j.Error))...)
	} else {
		c.log.Info("recalc: job finished", fields...)
	}

	if c.pending != "" && !c.closed {
		reason := c.pending
		c.pending = ""
		c.startLocked(context.Background(), "follow-up: "+reason)
	}
}

// skipTracker logs each skipped rule once per job and counts every skip.
type skipTracker struct {
	jobID   string
	log     *zap.Logger
	metrics Metrics

	mu   sync.Mutex
	seen map[int64]struct{}
}

func newSkipTracker(jobID string, log *zap.Logger, m Metrics) *skipTracker {
	return &skipTracker{jobID: jobID, log: log, metrics: m, seen: map[int64]struct{}{}}
}

func (t *skipTracker) observe(rule models.ScoringRule, reason string) {
	t.metrics.RuleSkipped(rule.ID)
	t.mu.Lock()
	_, dup := t.seen[rule.ID]
	t.seen[rule.ID] = struct{}{}
	t.mu.Unlock()
	if dup {
		return
	}
	t.log.Warn("recalc: rule skipped",
		zap.String("job_id", t.jobID),
		zap.Int64("rule_id", rule.ID),
		zap.String("rule", rule.Name),
		zap.String("reason", reason))
}

func (t *skipTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
