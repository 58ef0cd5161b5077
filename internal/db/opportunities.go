package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/david/opportunity-radar/internal/models"
)

const opportunityCols = `id, source_id, title, description, organization, fields, deadline_at,
	score, tier, score_contributions, scored_at, created_at, updated_at`

func scanOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var o models.Opportunity
	var fieldsRaw, contributionsRaw []byte
	err := scan(
		&o.ID, &o.SourceID, &o.Title, &o.Description, &o.Organization, &fieldsRaw, &o.DeadlineAt,
		&o.Score, &o.Tier, &contributionsRaw, &o.ScoredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Fields = map[string]string{}
	if len(fieldsRaw) > 0 {
		_ = json.Unmarshal(fieldsRaw, &o.Fields)
	}
	o.Contributions = decodeJSONList[models.Contribution](contributionsRaw)
	return o, nil
}

type ListParams struct {
	SourceID string
	Tier     string
	MinScore float64
	Limit    int
	Offset   int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

func buildListWhere(params ListParams) (string, []any) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if s := strings.TrimSpace(params.SourceID); s != "" {
		where += fmt.Sprintf(" AND source_id = $%d", argIdx)
		args = append(args, s)
		argIdx++
	}
	if t := strings.TrimSpace(params.Tier); t != "" {
		where += fmt.Sprintf(" AND tier = $%d", argIdx)
		args = append(args, t)
		argIdx++
	}
	if params.MinScore > 0 {
		where += fmt.Sprintf(" AND score >= $%d", argIdx)
		args = append(args, params.MinScore)
	}
	return where, args
}

// ListOpportunities returns opportunities ranked by stored score.
func (s *Store) ListOpportunities(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	where, args := buildListWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	sql := fmt.Sprintf("SELECT %s FROM opportunities %s ORDER BY score DESC, id ASC LIMIT $%d OFFSET $%d",
		opportunityCols, where, len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &ListResult{Opportunities: opps, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+opportunityCols+" FROM opportunities WHERE id = $1", id)
	o, err := scanOpportunity(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// CreateOpportunity inserts an unscored opportunity.
func (s *Store) CreateOpportunity(ctx context.Context, o models.Opportunity) (*models.Opportunity, error) {
	fields, err := json.Marshal(o.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO opportunities (id, source_id, title, description, organization, fields, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+opportunityCols,
		o.ID, o.SourceID, o.Title, o.Description, o.Organization, fields, o.DeadlineAt,
	)
	created, err := scanOpportunity(row.Scan)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUnknownSource
		}
		return nil, fmt.Errorf("insert opportunity failed: %w", err)
	}
	return &created, nil
}

func (s *Store) CountOpportunities(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities").Scan(&n); err != nil {
		return 0, fmt.Errorf("count opportunities failed: %w", err)
	}
	return n, nil
}

// OpportunityIDs pages ids in ascending order after the given key.
func (s *Store) OpportunityIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM opportunities
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("page opportunity ids failed: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan opportunity ids failed: %w", err)
	}
	return ids, nil
}

// SaveOpportunityScore writes one score as a single-row statement.
func (s *Store) SaveOpportunityScore(ctx context.Context, id uuid.UUID, u models.ScoreUpdate) error {
	contributions := u.Contributions
	if contributions == nil {
		contributions = []models.Contribution{}
	}
	raw, err := json.Marshal(contributions)
	if err != nil {
		return fmt.Errorf("encode contributions: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities
		SET score = $2, tier = $3, score_contributions = $4, scored_at = $5, updated_at = NOW()
		WHERE id = $1
	`, id, float64(u.Score), u.Tier, raw, u.ScoredAt)
	if err != nil {
		return fmt.Errorf("update score failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
