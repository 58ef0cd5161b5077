package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/health"
	"github.com/david/opportunity-radar/internal/scoring"
)

func TestLoad_Valid(t *testing.T) {
	t.Setenv("RADAR_DB_PASS", "s3cret")
	yaml := `
server:
  port: "9000"
  cors_origins: ["https://radar.example.org"]
database:
  url: "postgres://radar:${RADAR_DB_PASS}@db:5432/radar"
scoring:
  baseline: 40
  excellent_min: 85
  good_min: 65
  moderate_min: 45
health:
  yield: 0.4
  duplicates: 0.1
  errors: 0.4
  freshness: 0.1
recalculation:
  batch_size: 200
  workers: 8
  timeout: 10m
  schedule: "0 30 2 * * *"
organization_types:
  foundation: ["trust", "foundation"]
`
	cfg := loadFromString(t, yaml)

	if cfg.Server.Port != "9000" {
		t.Errorf("port: got %q", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://radar:s3cret@db:5432/radar" {
		t.Errorf("database url not expanded: got %q", cfg.Database.URL)
	}
	if cfg.Scoring.Baseline != 40 || cfg.Scoring.ExcellentMin != 85 {
		t.Errorf("scoring: got %+v", cfg.Scoring)
	}
	if cfg.Health.Yield != 0.4 {
		t.Errorf("health weights: got %+v", cfg.Health)
	}
	if cfg.Recalc.BatchSize != 200 || cfg.Recalc.Workers != 8 || cfg.Recalc.Timeout != 10*time.Minute {
		t.Errorf("recalculation: got %+v", cfg.Recalc)
	}
	if got := cfg.OrganizationTypes["foundation"]; len(got) != 2 {
		t.Errorf("organization_types: got %v", got)
	}
	opts := cfg.Recalc.Options()
	if opts.BatchSize != 200 || opts.Workers != 8 {
		t.Errorf("options: got %+v", opts)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "log:\n  level: debug\n")

	if cfg.Server.Port != DefaultPort {
		t.Errorf("default port: got %q", cfg.Server.Port)
	}
	if cfg.Scoring != scoring.DefaultPolicy() {
		t.Errorf("default policy: got %+v", cfg.Scoring)
	}
	if cfg.Health != health.DefaultWeights() {
		t.Errorf("default weights: got %+v", cfg.Health)
	}
	if cfg.Recalc.Schedule != DefaultSchedule || !cfg.Recalc.ScheduleEnabled() {
		t.Errorf("default schedule: got %q", cfg.Recalc.Schedule)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Encoding != "json" {
		t.Errorf("log: got %+v", cfg.Log)
	}
}

func TestLoad_NoFileUsesEnv(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example,"+DefaultCORSOrigin)
	t.Setenv("ADMIN_SECRET", "  topsecret ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.Port != "7070" || cfg.Database.URL != "postgres://env/db" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Server, cfg.Database)
	}
	if len(cfg.Server.CORSOrigins) != 3 {
		t.Errorf("cors origins: got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.AdminSecret != "topsecret" {
		t.Errorf("admin secret: got %q", cfg.Server.AdminSecret)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"tiers out of order", "scoring:\n  good_min: 90\n"},
		{"baseline above range", "scoring:\n  baseline: 120\n"},
		{"zero weights", "health:\n  yield: 0\n  duplicates: 0\n  errors: 0\n  freshness: 0\n"},
		{"negative weight", "health:\n  yield: -0.1\n"},
		{"huge batch", "recalculation:\n  batch_size: 100000\n"},
		{"bad schedule", "recalculation:\n  schedule: \"every day\"\n"},
		{"empty org type", "organization_types:\n  foundation: []\n"},
		{"not yaml", "server: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoad_ScheduleOff(t *testing.T) {
	cfg := loadFromString(t, "recalculation:\n  schedule: \"off\"\n")
	if cfg.Recalc.ScheduleEnabled() {
		t.Fatalf("expected schedule disabled")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scoring:\n  baseline: 50\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, zap.NewNop(), func(c *Config) { reloaded <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid write must not reach onChange.
	if err := os.WriteFile(path, []byte("scoring:\n  baseline: 500\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("scoring:\n  baseline: 45\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Scoring.Baseline == 500 {
				t.Fatalf("invalid config was applied")
			}
			if cfg.Scoring.Baseline == 45 {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for reload")
		}
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
