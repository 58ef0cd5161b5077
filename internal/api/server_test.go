package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/health"
	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/recalc"
	"github.com/david/opportunity-radar/internal/scoring"
)

const testSecret = "s3cret"

// --- fakes ------------------------------------------------------------------

type fakeStore struct {
	mu      sync.Mutex
	rules   map[int64]models.ScoringRule
	nextID  int64
	opps    map[uuid.UUID]models.Opportunity
	sources map[string]models.SourceConfig
	metrics []models.SourceHealthMetrics
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rules: map[int64]models.ScoringRule{},
		opps:  map[uuid.UUID]models.Opportunity{},
		sources: map[string]models.SourceConfig{
			"grants-gov": {ID: "grants-gov", Name: "Grants.gov", SourceType: "api", IsActive: true, PollInterval: 24 * time.Hour},
		},
	}
}

func (f *fakeStore) ListRules(context.Context) ([]models.ScoringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScoringRule
	for _, r := range f.rules {
		out = append(out, r)
	}
	return scoring.OrderRules(out), nil
}

func (f *fakeStore) GetRule(_ context.Context, id int64) (*models.ScoringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &r, nil
}

func (f *fakeStore) CreateRule(_ context.Context, r models.ScoringRule) (*models.ScoringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rules {
		if existing.Name == r.Name {
			return nil, db.ErrDuplicateRuleName
		}
	}
	f.nextID++
	r.ID = f.nextID
	f.rules[r.ID] = r
	return &r, nil
}

func (f *fakeStore) UpdateRule(_ context.Context, id int64, r models.ScoringRule) (*models.ScoringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return nil, db.ErrNotFound
	}
	r.ID = id
	f.rules[id] = r
	return &r, nil
}

func (f *fakeStore) ToggleRule(_ context.Context, id int64) (*models.ScoringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	r.IsActive = !r.IsActive
	f.rules[id] = r
	return &r, nil
}

func (f *fakeStore) DeleteRule(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeStore) ListOpportunities(_ context.Context, params db.ListParams) (*db.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := &db.ListResult{Limit: params.Limit, Offset: params.Offset}
	for _, o := range f.opps {
		if params.Tier != "" && o.Tier != params.Tier {
			continue
		}
		res.Opportunities = append(res.Opportunities, o)
	}
	res.Total = len(res.Opportunities)
	return res, nil
}

func (f *fakeStore) GetOpportunity(_ context.Context, id uuid.UUID) (*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.opps[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) CreateOpportunity(_ context.Context, o models.Opportunity) (*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.SourceID != nil {
		if _, ok := f.sources[*o.SourceID]; !ok {
			return nil, db.ErrUnknownSource
		}
	}
	f.opps[o.ID] = o
	return &o, nil
}

func (f *fakeStore) ListSources(_ context.Context, activeOnly bool) ([]models.SourceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SourceConfig
	for _, s := range f.sources {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) GetSource(_ context.Context, id string) (*models.SourceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStore) InsertHealthMetrics(_ context.Context, m models.SourceHealthMetrics) (*models.SourceHealthMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.metrics {
		if existing.SourceID == m.SourceID && existing.Date.Equal(m.Date) {
			return nil, db.ErrDuplicateMetrics
		}
	}
	f.metrics = append(f.metrics, m)
	return &m, nil
}

type fakeRecalc struct {
	mu       sync.Mutex
	running  *recalc.Job
	jobs     map[string]recalc.Job
	changes  []string
	scored   []uuid.UUID
	store    *fakeStore
	scoreErr error
	closed   bool
}

func (f *fakeRecalc) RecalculateAll(_ context.Context, trigger string) (recalc.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return recalc.Job{}, recalc.ErrShutdown
	}
	if f.running != nil {
		return *f.running, recalc.ErrRecalculationConflict
	}
	j := recalc.Job{ID: "job00001", Trigger: trigger, State: recalc.StateRunning}
	f.running = &j
	return j, nil
}

func (f *fakeRecalc) RecalculateOne(ctx context.Context, id uuid.UUID) (scoring.Result, error) {
	f.mu.Lock()
	f.scored = append(f.scored, id)
	f.mu.Unlock()
	if f.scoreErr != nil {
		return scoring.Result{}, f.scoreErr
	}
	opp, err := f.store.GetOpportunity(ctx, id)
	if err != nil {
		return scoring.Result{}, err
	}
	res := scoring.Result{Score: 72, Tier: scoring.TierGood, Contributions: []models.Contribution{{RuleID: 1, Points: 22}}}
	opp.Score = float64(res.Score)
	opp.Tier = res.Tier
	opp.Contributions = res.Contributions
	f.store.mu.Lock()
	f.store.opps[id] = *opp
	f.store.mu.Unlock()
	return res, nil
}

func (f *fakeRecalc) RulesChanged(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, reason)
}

func (f *fakeRecalc) Job(id string) (recalc.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running != nil && f.running.ID == id {
		return *f.running, nil
	}
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return recalc.Job{}, recalc.ErrJobNotFound
}

func (f *fakeRecalc) Jobs() []recalc.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recalc.Job
	if f.running != nil {
		out = append(out, *f.running)
	}
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

func (f *fakeRecalc) Cancel(id string) (recalc.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running != nil && f.running.ID == id {
		return *f.running, nil
	}
	if j, ok := f.jobs[id]; ok {
		return j, recalc.ErrJobNotRunning
	}
	return recalc.Job{}, recalc.ErrJobNotFound
}

type fakeHealth struct {
	days []int
}

func (f *fakeHealth) Summary(_ context.Context, id string) (health.Summary, error) {
	if id != "grants-gov" {
		return health.Summary{}, db.ErrNotFound
	}
	return health.Summary{Source: models.SourceConfig{ID: id}, CurrentHealth: 85, Trend: health.TrendUp, Status: health.StatusHealthy}, nil
}

func (f *fakeHealth) Overview(context.Context) (health.Overview, error) {
	return health.BuildOverview(nil), nil
}

func (f *fakeHealth) History(_ context.Context, id string, days int) ([]models.SourceHealthMetrics, error) {
	f.days = append(f.days, days)
	if id != "grants-gov" {
		return nil, db.ErrNotFound
	}
	return []models.SourceHealthMetrics{}, nil
}

// --- helpers ----------------------------------------------------------------

type fixture struct {
	srv    *Server
	store  *fakeStore
	recalc *fakeRecalc
	health *fakeHealth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newFakeStore()
	rc := &fakeRecalc{store: st, jobs: map[string]recalc.Job{}}
	hr := &fakeHealth{}
	srv, err := NewServer(Deps{Store: st, Recalc: rc, Health: hr, AdminSecret: testSecret})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.now = func() time.Time { return time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC) }
	return &fixture{srv: srv, store: st, recalc: rc, health: hr}
}

func (f *fixture) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if admin {
		req.Header.Set("X-Admin-Secret", testSecret)
	}
	rr := httptest.NewRecorder()
	f.srv.Echo.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

const validRule = `{
	"name": "deadline-soon",
	"rule_type": "urgency",
	"condition_type": "deadline_days",
	"condition_value": {"max_days": 14},
	"points": 15,
	"label": "<b>Deadline</b> &amp; soon",
	"priority": 50
}`

// --- tests ------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/health", "", false)
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/rules", "", false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rr = httptest.NewRecorder()
	f.srv.Echo.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d", rr.Code)
	}
}

func TestGeneratedAdminSecretWhenUnset(t *testing.T) {
	secret, err := adminSecret("  ", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(secret) < 32 {
		t.Fatalf("expected a long random secret, got %q", secret)
	}
	other, _ := adminSecret("", zap.NewNop())
	if other == secret {
		t.Fatalf("expected fresh secret per call")
	}
}

func TestCreateRuleSanitizesAndTriggersRecalc(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/rules", validRule, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var got map[string]interface{}
	decode(t, rr, &got)
	if got["label"] != "Deadline & soon" {
		t.Fatalf("expected sanitized label, got %v", got["label"])
	}
	cond, ok := got["condition_value"].(map[string]interface{})
	if !ok || cond["max_days"] != float64(14) {
		t.Fatalf("expected condition_value echoed back, got %v", got["condition_value"])
	}
	if len(f.recalc.changes) != 1 {
		t.Fatalf("expected one rules-changed signal, got %v", f.recalc.changes)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/rules", validRule, true)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate name, got %d", rr.Code)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "bad name",
			body:  `{"name":"Has Spaces","rule_type":"urgency","condition_type":"has_field","condition_value":{"field":"budget"},"points":5}`,
			field: "name",
		},
		{
			name:  "unknown condition",
			body:  `{"name":"x","rule_type":"urgency","condition_type":"magic","condition_value":{},"points":5}`,
			field: "condition_type",
		},
		{
			name:  "priority out of range",
			body:  `{"name":"x","rule_type":"value","condition_type":"has_field","condition_value":{"field":"budget"},"points":5,"priority":101}`,
			field: "priority",
		},
		{
			name:  "points out of range",
			body:  `{"name":"x","rule_type":"value","condition_type":"has_field","condition_value":{"field":"budget"},"points":101}`,
			field: "points",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rr := f.do(t, http.MethodPost, "/api/v1/rules", tt.body, true)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
			}
			var got map[string]string
			decode(t, rr, &got)
			if got["field"] != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, got["field"])
			}
			if len(f.store.rules) != 0 {
				t.Fatalf("expected nothing persisted")
			}
			if len(f.recalc.changes) != 0 {
				t.Fatalf("expected no recalculation on rejected write")
			}
		})
	}
}

func TestRuleMutationsNotFound(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/rules/99", ""},
		{http.MethodPut, "/api/v1/rules/99", validRule},
		{http.MethodPost, "/api/v1/rules/99/toggle", ""},
		{http.MethodDelete, "/api/v1/rules/99", ""},
	} {
		rr := f.do(t, tc.method, tc.path, tc.body, true)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rr.Code)
		}
	}
	rr := f.do(t, http.MethodGet, "/api/v1/rules/abc", "", true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", rr.Code)
	}
	if len(f.recalc.changes) != 0 {
		t.Fatalf("expected no recalculation for failed mutations, got %v", f.recalc.changes)
	}
}

func TestToggleAndDeleteTriggerRecalc(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/rules", validRule, true)

	rr := f.do(t, http.MethodPost, "/api/v1/rules/1/toggle", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodDelete, "/api/v1/rules/1", "", true)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	want := []string{"created 1", "toggled 1", "deleted 1"}
	if strings.Join(f.recalc.changes, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, f.recalc.changes)
	}
}

func TestRecalculateAllConflict(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/recalculate", "", true)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	var started map[string]interface{}
	decode(t, rr, &started)
	if started["job_id"] != "job00001" || started["poll"] != "/api/v1/recalculate/jobs/job00001" {
		t.Fatalf("unexpected accept body: %v", started)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/recalculate", "", true)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var conflict map[string]interface{}
	decode(t, rr, &conflict)
	if conflict["job_id"] != "job00001" {
		t.Fatalf("expected running job id in conflict, got %v", conflict)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/recalculate/jobs/job00001", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 polling job, got %d", rr.Code)
	}
	var job recalc.Job
	decode(t, rr, &job)
	if job.State != recalc.StateRunning || job.Trigger != "manual" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestRecalculateAllAfterShutdown(t *testing.T) {
	f := newFixture(t)
	f.recalc.closed = true

	rr := f.do(t, http.MethodPost, "/api/v1/recalculate", "", true)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCancelJob(t *testing.T) {
	f := newFixture(t)
	f.recalc.jobs["old"] = recalc.Job{ID: "old", State: recalc.StateCompleted}
	f.do(t, http.MethodPost, "/api/v1/recalculate", "", true)

	tests := []struct {
		id   string
		want int
	}{
		{"job00001", http.StatusAccepted},
		{"old", http.StatusConflict},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		rr := f.do(t, http.MethodPost, "/api/v1/recalculate/jobs/"+tt.id+"/cancel", "", true)
		if rr.Code != tt.want {
			t.Fatalf("cancel %s: expected %d, got %d", tt.id, tt.want, rr.Code)
		}
	}
}

func TestCreateOpportunityScoresImmediately(t *testing.T) {
	f := newFixture(t)

	body := `{"source_id":"grants-gov","title":"Open call for festivals","organization":"City Council","fields":{"budget":"50000"}}`
	rr := f.do(t, http.MethodPost, "/api/v1/opportunities", body, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var got models.Opportunity
	decode(t, rr, &got)
	if got.Score != 72 || got.Tier != scoring.TierGood {
		t.Fatalf("expected scored opportunity, got score=%v tier=%q", got.Score, got.Tier)
	}
	if len(f.recalc.scored) != 1 || f.recalc.scored[0] != got.ID {
		t.Fatalf("expected RecalculateOne for new opportunity, got %v", f.recalc.scored)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/opportunities/"+got.ID.String()+"/score", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for score, got %d", rr.Code)
	}
	var score map[string]interface{}
	decode(t, rr, &score)
	if score["tier"] != scoring.TierGood {
		t.Fatalf("expected tier in score view, got %v", score)
	}
}

func TestCreateOpportunityErrors(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/opportunities", `{"title":"  "}`, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank title, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/api/v1/opportunities", `{"title":"x","source_id":"nope"}`, true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown source, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodGet, "/api/v1/opportunities/not-a-uuid", "", false)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodGet, "/api/v1/opportunities/"+uuid.New().String(), "", false)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}
}

func TestRecordMetrics(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/sources/grants-gov/metrics",
		`{"opportunities_found":12,"duplicates_found":1,"error_rate":0.05,"freshness_hours":3}`, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(f.store.metrics) != 1 {
		t.Fatalf("expected one stored row, got %d", len(f.store.metrics))
	}
	want := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	if !f.store.metrics[0].Date.Equal(want) {
		t.Fatalf("expected date defaulted to %v, got %v", want, f.store.metrics[0].Date)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/sources/grants-gov/metrics", `{"date":"2026-02-12","opportunities_found":3}`, true)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for same day, got %d", rr.Code)
	}

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"error rate above one", "/api/v1/sources/grants-gov/metrics", `{"date":"2026-02-11","error_rate":1.5}`, http.StatusUnprocessableEntity},
		{"negative count", "/api/v1/sources/grants-gov/metrics", `{"date":"2026-02-11","opportunities_found":-1}`, http.StatusUnprocessableEntity},
		{"bad date", "/api/v1/sources/grants-gov/metrics", `{"date":"12/02/2026"}`, http.StatusUnprocessableEntity},
		{"unknown source", "/api/v1/sources/nope/metrics", `{"date":"2026-02-11"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, tt.path, tt.body, true)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
	if len(f.store.metrics) != 1 {
		t.Fatalf("expected rejected rows not to be stored, got %d", len(f.store.metrics))
	}
}

func TestSourceHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/sources/health", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var overview health.Overview
	decode(t, rr, &overview)
	if overview.SourceCount != 0 || overview.OverallHealth != 0 || overview.Sources == nil {
		t.Fatalf("expected empty overview, got %+v", overview)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/sources/grants-gov/health", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodGet, "/api/v1/sources/nope/health", "", false)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	f.do(t, http.MethodGet, "/api/v1/sources/grants-gov/metrics", "", false)
	f.do(t, http.MethodGet, "/api/v1/sources/grants-gov/metrics?days=90", "", false)
	if len(f.health.days) != 2 || f.health.days[0] != 30 || f.health.days[1] != 90 {
		t.Fatalf("expected days [30 90], got %v", f.health.days)
	}
	for _, q := range []string{"0", "366", "abc"} {
		rr = f.do(t, http.MethodGet, "/api/v1/sources/grants-gov/metrics?days="+q, "", false)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("days=%s: expected 400, got %d", q, rr.Code)
		}
	}
}
