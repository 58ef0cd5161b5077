package db

import (
	"context"
	"fmt"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

const sourceCols = `id, name, source_type, poll_interval_seconds, is_active, last_polled_at`

func scanSource(scan func(dest ...any) error) (models.SourceConfig, error) {
	var src models.SourceConfig
	var pollSeconds int64
	err := scan(&src.ID, &src.Name, &src.SourceType, &pollSeconds, &src.IsActive, &src.LastPolledAt)
	if err != nil {
		return src, err
	}
	src.PollInterval = time.Duration(pollSeconds) * time.Second
	return src, nil
}

func (s *Store) ListSources(ctx context.Context, activeOnly bool) ([]models.SourceConfig, error) {
	sql := "SELECT " + sourceCols + " FROM source_configs"
	if activeOnly {
		sql += " WHERE is_active = true"
	}
	sql += " ORDER BY id"

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query sources failed: %w", err)
	}
	defer rows.Close()

	sources := []models.SourceConfig{}
	for rows.Next() {
		src, err := scanSource(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan source failed: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return sources, nil
}

func (s *Store) GetSource(ctx context.Context, id string) (*models.SourceConfig, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+sourceCols+" FROM source_configs WHERE id = $1", id)
	src, err := scanSource(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return &src, nil
}

// UpsertSource inserts a source or refreshes its descriptive columns.
// last_polled_at belongs to ingestion and is never overwritten here.
func (s *Store) UpsertSource(ctx context.Context, src models.SourceConfig) error {
	poll := int64(src.PollInterval / time.Second)
	if poll <= 0 {
		poll = int64((24 * time.Hour) / time.Second)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_configs (id, name, source_type, poll_interval_seconds, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    source_type = EXCLUDED.source_type,
		    poll_interval_seconds = EXCLUDED.poll_interval_seconds,
		    is_active = EXCLUDED.is_active,
		    updated_at = NOW()
	`, src.ID, src.Name, src.SourceType, poll, src.IsActive)
	if err != nil {
		return fmt.Errorf("upsert source %s failed: %w", src.ID, err)
	}
	return nil
}

// InsertHealthMetrics appends one day of metrics. A second row for the same
// source and day is rejected with ErrDuplicateMetrics; past days are never
// rewritten.
func (s *Store) InsertHealthMetrics(ctx context.Context, m models.SourceHealthMetrics) (*models.SourceHealthMetrics, error) {
	row := s.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO source_health_metrics
				(source_id, date, opportunities_found, duplicates_found, avg_score, error_rate, freshness_hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING source_id, created_at
		), touched AS (
			UPDATE source_configs s
			SET last_polled_at = GREATEST(COALESCE(s.last_polled_at, i.created_at), i.created_at)
			FROM inserted i
			WHERE s.id = i.source_id
		)
		SELECT created_at FROM inserted
	`, m.SourceID, models.Day(m.Date), m.OpportunitiesFound, m.DuplicatesFound, m.AvgScore, m.ErrorRate, m.FreshnessHours)

	if err := row.Scan(&m.CreatedAt); err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, ErrDuplicateMetrics
		case isForeignKeyViolation(err):
			return nil, ErrUnknownSource
		}
		return nil, fmt.Errorf("insert metrics failed: %w", err)
	}

	m.Date = models.Day(m.Date)
	return &m, nil
}

// ListHealthMetrics returns a source's rows on or after since, oldest first.
func (s *Store) ListHealthMetrics(ctx context.Context, sourceID string, since time.Time) ([]models.SourceHealthMetrics, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source_id, date, opportunities_found, duplicates_found, avg_score, error_rate, freshness_hours, created_at
		FROM source_health_metrics
		WHERE source_id = $1 AND date >= $2
		ORDER BY date ASC
	`, sourceID, models.Day(since))
	if err != nil {
		return nil, fmt.Errorf("query metrics failed: %w", err)
	}
	defer rows.Close()

	out := []models.SourceHealthMetrics{}
	for rows.Next() {
		var m models.SourceHealthMetrics
		if err := rows.Scan(&m.SourceID, &m.Date, &m.OpportunitiesFound, &m.DuplicatesFound,
			&m.AvgScore, &m.ErrorRate, &m.FreshnessHours, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan metrics failed: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}
