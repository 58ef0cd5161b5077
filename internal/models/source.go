package models

import (
	"encoding/json"
	"strings"
	"time"
)

// SourceConfig is an ingestion source as the health domain sees it.
type SourceConfig struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	SourceType   string        `json:"source_type"`
	PollInterval time.Duration `json:"-"`
	IsActive     bool          `json:"is_active"`
	LastPolledAt *time.Time    `json:"last_polled_at"`
}

func (s SourceConfig) MarshalJSON() ([]byte, error) {
	type alias SourceConfig
	return json.Marshal(struct {
		alias
		PollIntervalSeconds int64 `json:"poll_interval_seconds"`
	}{alias: alias(s), PollIntervalSeconds: int64(s.PollInterval / time.Second)})
}

// SourceHealthMetrics is one append-only row per source per calendar day.
type SourceHealthMetrics struct {
	SourceID           string    `json:"source_id"`
	Date               time.Time `json:"date"`
	OpportunitiesFound int       `json:"opportunities_found"`
	DuplicatesFound    int       `json:"duplicates_found"`
	AvgScore           float64   `json:"avg_score"`
	ErrorRate          float64   `json:"error_rate"`
	FreshnessHours     float64   `json:"freshness_hours"`
	CreatedAt          time.Time `json:"created_at"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Validate checks the ranges a metrics row must satisfy before it is stored.
func (m SourceHealthMetrics) Validate() error {
	if strings.TrimSpace(m.SourceID) == "" {
		return invalid("source_id", "is required")
	}
	if m.Date.IsZero() {
		return invalid("date", "is required")
	}
	if m.OpportunitiesFound < 0 {
		return invalid("opportunities_found", "must be >= 0")
	}
	if m.DuplicatesFound < 0 {
		return invalid("duplicates_found", "must be >= 0")
	}
	if m.ErrorRate < 0 || m.ErrorRate > 1 {
		return invalid("error_rate", "must be between 0 and 1")
	}
	if m.FreshnessHours < 0 {
		return invalid("freshness_hours", "must be >= 0")
	}
	return nil
}
