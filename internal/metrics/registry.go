// Package metrics exports scoring and health instrumentation in the
// Prometheus exposition format.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david/opportunity-radar/internal/health"
)

const namespace = "radar"

var healthStatuses = []string{health.StatusHealthy, health.StatusWarning, health.StatusCritical}

// Registry implements recalc.Metrics and collects source health gauges on
// its own prometheus.Registry. The zero value is not usable; call New.
type Registry struct {
	reg     *prometheus.Registry
	handler http.Handler

	jobsStarted  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobDuration  prometheus.Histogram
	jobResults   *prometheus.CounterVec
	scored       *prometheus.CounterVec
	ruleSkips    *prometheus.CounterVec
	sourceHealth *prometheus.GaugeVec
	sourceStatus *prometheus.GaugeVec
	healthReads  prometheus.Counter
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "recalc", Name: "jobs_started_total",
			Help: "Recalculation jobs started, by trigger kind.",
		}, []string{"trigger"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "recalc", Name: "jobs_finished_total",
			Help: "Recalculation jobs finished, by final state.",
		}, []string{"state"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "recalc", Name: "job_duration_seconds",
			Help:    "Wall time of finished recalculation jobs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 4, 8),
		}),
		jobResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "recalc", Name: "opportunities_total",
			Help: "Opportunities processed by recalculation jobs, by result.",
		}, []string{"result"}),
		scored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "opportunities_scored_total",
			Help: "Opportunity scores written, by tier.",
		}, []string{"tier"}),
		ruleSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rule_evaluation_skips_total",
			Help: "Rules skipped during evaluation because their condition could not be used.",
		}, []string{"rule_id"}),
		sourceHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "source_health_score",
			Help: "Most recently computed health per source (0-100).",
		}, []string{"source_id"}),
		sourceStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "source_health_status",
			Help: "1 for the current health status of each source.",
		}, []string{"source_id", "status"}),
		healthReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "source_health_computations_total",
			Help: "Source health summaries computed.",
		}),
	}

	reg.MustRegister(
		r.jobsStarted, r.jobsFinished, r.jobDuration, r.jobResults,
		r.scored, r.ruleSkips, r.sourceHealth, r.sourceStatus, r.healthReads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// JobStarted counts a recalculation by the kind of trigger. Free-text
// reasons after a colon are dropped to keep label cardinality fixed.
func (r *Registry) JobStarted(trigger string) {
	kind := trigger
	if i := strings.Index(kind, ":"); i >= 0 {
		kind = kind[:i]
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "unknown"
	}
	r.jobsStarted.WithLabelValues(kind).Inc()
}

func (r *Registry) JobFinished(state string, d time.Duration, succeeded, failed int) {
	r.jobsFinished.WithLabelValues(state).Inc()
	r.jobDuration.Observe(d.Seconds())
	r.jobResults.WithLabelValues("succeeded").Add(float64(succeeded))
	r.jobResults.WithLabelValues("failed").Add(float64(failed))
}

func (r *Registry) RuleSkipped(ruleID int64) {
	r.ruleSkips.WithLabelValues(strconv.FormatInt(ruleID, 10)).Inc()
}

func (r *Registry) OpportunityScored(tier string) {
	r.scored.WithLabelValues(tier).Inc()
}

// SourceHealth records the latest computed health of a source. Only the
// current status series of a source is kept.
func (r *Registry) SourceHealth(sourceID string, value float64, status string) {
	r.sourceHealth.WithLabelValues(sourceID).Set(value)
	for _, s := range healthStatuses {
		if s != status {
			r.sourceStatus.DeleteLabelValues(sourceID, s)
		}
	}
	r.sourceStatus.WithLabelValues(sourceID, status).Set(1)
	r.healthReads.Inc()
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}
