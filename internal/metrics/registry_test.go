package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func scrape(t *testing.T, r *Registry) (string, map[string]*dto.MetricFamily) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := rec.Body.String()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return out, families
}

func TestRegistry_TextExposition(t *testing.T) {
	r := New()
	r.JobStarted("rules: rule 4 updated")
	r.JobStarted("manual")
	r.JobStarted("rules: rule 5 deleted")
	r.JobFinished("completed", 1500*time.Millisecond, 10, 2)
	r.OpportunityScored("good")
	r.OpportunityScored("good")
	r.RuleSkipped(7)
	r.SourceHealth("grants-gov", 82.5, "healthy")
	r.SourceHealth("eu-portal", 41, "critical")

	out, families := scrape(t, r)
	for _, want := range []string{
		`radar_recalc_jobs_started_total{trigger="rules"} 2`,
		`radar_recalc_jobs_started_total{trigger="manual"} 1`,
		`radar_recalc_jobs_finished_total{state="completed"} 1`,
		`radar_recalc_opportunities_total{result="failed"} 2`,
		`radar_recalc_opportunities_total{result="succeeded"} 10`,
		`radar_recalc_job_duration_seconds_count 1`,
		`radar_opportunities_scored_total{tier="good"} 2`,
		`radar_rule_evaluation_skips_total{rule_id="7"} 1`,
		`radar_source_health_score{source_id="grants-gov"} 82.5`,
		`radar_source_health_status{source_id="eu-portal",status="critical"} 1`,
		`# TYPE radar_source_health_score gauge`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if _, ok := families["go_goroutines"]; !ok {
		t.Fatalf("expected runtime collector metrics")
	}
}

func TestRegistry_StatusChangeReplacesSeries(t *testing.T) {
	r := New()
	r.SourceHealth("ukri", 85, "healthy")
	r.SourceHealth("ukri", 45, "critical")

	_, families := scrape(t, r)
	mf, ok := families["radar_source_health_status"]
	if !ok {
		t.Fatalf("expected status family")
	}
	if len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one status series, got %d", len(mf.GetMetric()))
	}
	for _, lp := range mf.GetMetric()[0].GetLabel() {
		if lp.GetName() == "status" && lp.GetValue() != "critical" {
			t.Fatalf("expected critical, got %s", lp.GetValue())
		}
	}
}

func TestRegistry_EmptyVecsOmitted(t *testing.T) {
	out, _ := scrape(t, New())
	if strings.Contains(out, "radar_rule_evaluation_skips_total") {
		t.Fatalf("expected empty labeled family to be omitted")
	}
	if !strings.Contains(out, "radar_source_health_computations_total 0") {
		t.Fatalf("expected unlabeled counters to be present at zero")
	}
}

func TestRegistry_Gatherer(t *testing.T) {
	r := New()
	r.OpportunityScored("low")
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "radar_opportunities_scored_total" {
			return
		}
	}
	t.Fatalf("expected scored family in gather output")
}
