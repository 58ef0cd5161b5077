package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/david/opportunity-radar/internal/models"
)

const ruleCols = `id, name, rule_type, condition_type, condition_value, points, label,
	description, priority, is_active, created_at, updated_at`

func scanRule(scan func(dest ...any) error) (models.ScoringRule, error) {
	var r models.ScoringRule
	var ruleType, condType string
	var raw []byte
	err := scan(
		&r.ID, &r.Name, &ruleType, &condType, &raw, &r.Points, &r.Label,
		&r.Description, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}
	r.RuleType = models.RuleType(ruleType)
	r.ConditionType = models.ConditionType(condType)
	r.RawCondition = raw
	r.HydrateCondition()
	return r, nil
}

// listRulesSQL orders rules the way they are evaluated.
func listRulesSQL(activeOnly bool) string {
	sql := "SELECT " + ruleCols + " FROM scoring_rules"
	if activeOnly {
		sql += " WHERE is_active = true"
	}
	return sql + " ORDER BY priority DESC, id ASC"
}

func (s *Store) listRules(ctx context.Context, activeOnly bool) ([]models.ScoringRule, error) {
	rows, err := s.pool.Query(ctx, listRulesSQL(activeOnly))
	if err != nil {
		return nil, fmt.Errorf("query rules failed: %w", err)
	}
	defer rows.Close()

	rules := []models.ScoringRule{}
	for rows.Next() {
		r, err := scanRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan rule failed: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return rules, nil
}

// ListRules returns every rule, active or not, in evaluation order.
func (s *Store) ListRules(ctx context.Context) ([]models.ScoringRule, error) {
	return s.listRules(ctx, false)
}

// ActiveRules returns the rule set scoring runs against. Rules whose stored
// condition no longer decodes are included with ConditionError set.
func (s *Store) ActiveRules(ctx context.Context) ([]models.ScoringRule, error) {
	return s.listRules(ctx, true)
}

func (s *Store) GetRule(ctx context.Context, id int64) (*models.ScoringRule, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+ruleCols+" FROM scoring_rules WHERE id = $1", id)
	r, err := scanRule(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// CreateRule inserts a rule built by models.RuleInput.Build.
func (s *Store) CreateRule(ctx context.Context, r models.ScoringRule) (*models.ScoringRule, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO scoring_rules (name, rule_type, condition_type, condition_value, points, label, description, priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+ruleCols,
		r.Name, string(r.RuleType), string(r.ConditionType), []byte(r.RawCondition),
		r.Points, r.Label, r.Description, r.Priority, r.IsActive,
	)
	created, err := scanRule(row.Scan)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRuleName
		}
		return nil, fmt.Errorf("insert rule failed: %w", err)
	}
	return &created, nil
}

// UpdateRule replaces every editable column of rule id.
func (s *Store) UpdateRule(ctx context.Context, id int64, r models.ScoringRule) (*models.ScoringRule, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE scoring_rules
		SET name = $2, rule_type = $3, condition_type = $4, condition_value = $5, points = $6,
		    label = $7, description = $8, priority = $9, is_active = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING `+ruleCols,
		id, r.Name, string(r.RuleType), string(r.ConditionType), []byte(r.RawCondition),
		r.Points, r.Label, r.Description, r.Priority, r.IsActive,
	)
	updated, err := scanRule(row.Scan)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRuleName
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update rule %d failed: %w", id, err)
	}
	return &updated, nil
}

// ToggleRule flips is_active and returns the updated rule.
func (s *Store) ToggleRule(ctx context.Context, id int64) (*models.ScoringRule, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE scoring_rules SET is_active = NOT is_active, updated_at = NOW()
		WHERE id = $1
		RETURNING `+ruleCols, id)
	r, err := scanRule(row.Scan)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM scoring_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete rule %d failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
