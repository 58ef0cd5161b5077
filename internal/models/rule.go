package models

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

type RuleType string

const (
	RuleUrgency  RuleType = "urgency"
	RuleEventFit RuleType = "event_fit"
	RuleQuality  RuleType = "quality"
	RuleValue    RuleType = "value"
	RulePenalty  RuleType = "penalty"
)

const (
	MinRulePriority = 0
	MaxRulePriority = 100

	// A single rule can move a score across the whole 0-100 range but no
	// further.
	MinRulePoints = -100
	MaxRulePoints = 100
)

var ruleNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,99}$`)

// ScoringRule is an operator-authored condition plus a point weight.
//
// Condition is nil when the stored payload no longer decodes (for example
// after a manual database edit); ConditionError then carries the reason and
// the evaluator skips the rule.
type ScoringRule struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	RuleType       RuleType        `json:"rule_type"`
	ConditionType  ConditionType   `json:"condition_type"`
	Condition      Condition       `json:"-"`
	RawCondition   json.RawMessage `json:"-"`
	ConditionError string          `json:"condition_error,omitempty"`
	Points         int             `json:"points"`
	Label          string          `json:"label"`
	Description    string          `json:"description"`
	Priority       int             `json:"priority"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (r ScoringRule) MarshalJSON() ([]byte, error) {
	type alias ScoringRule
	var value any = r.RawCondition
	if r.Condition != nil {
		value = r.Condition
	}
	return json.Marshal(struct {
		alias
		ConditionValue any `json:"condition_value"`
	}{alias: alias(r), ConditionValue: value})
}

// RuleInput is the write-side shape of a rule as sent by the admin surface.
type RuleInput struct {
	Name           string          `json:"name"`
	RuleType       RuleType        `json:"rule_type"`
	ConditionType  ConditionType   `json:"condition_type"`
	ConditionValue json.RawMessage `json:"condition_value"`
	Points         int             `json:"points"`
	Label          string          `json:"label"`
	Description    string          `json:"description"`
	Priority       int             `json:"priority"`
	IsActive       *bool           `json:"is_active"`
}

// Build validates the input and returns the rule it describes. Nothing about
// an invalid input is ever persisted; the first problem found is returned.
func (in RuleInput) Build() (ScoringRule, error) {
	name := strings.TrimSpace(in.Name)
	if !ruleNamePattern.MatchString(name) {
		return ScoringRule{}, invalid("name", "must be 1-100 chars of lowercase letters, digits, '_', '.', '-'")
	}

	switch in.RuleType {
	case RuleUrgency, RuleEventFit, RuleQuality, RuleValue, RulePenalty:
	default:
		return ScoringRule{}, invalid("rule_type", "unknown rule type %q", in.RuleType)
	}

	if in.Priority < MinRulePriority || in.Priority > MaxRulePriority {
		return ScoringRule{}, invalid("priority", "must be between %d and %d", MinRulePriority, MaxRulePriority)
	}

	if in.Points < MinRulePoints || in.Points > MaxRulePoints {
		return ScoringRule{}, invalid("points", "must be between %d and %d", MinRulePoints, MaxRulePoints)
	}

	cond, err := DecodeCondition(in.ConditionType, in.ConditionValue)
	if err != nil {
		return ScoringRule{}, err
	}
	raw, err := json.Marshal(cond)
	if err != nil {
		return ScoringRule{}, invalid("condition_value", "%v", err)
	}

	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = name
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	return ScoringRule{
		Name:          name,
		RuleType:      in.RuleType,
		ConditionType: in.ConditionType,
		Condition:     cond,
		RawCondition:  raw,
		Points:        in.Points,
		Label:         label,
		Description:   strings.TrimSpace(in.Description),
		Priority:      in.Priority,
		IsActive:      active,
	}, nil
}

// HydrateCondition decodes RawCondition into Condition. Decoding failures are
// recorded on the rule rather than returned, so one bad row never prevents
// the rest of the rule set from loading.
func (r *ScoringRule) HydrateCondition() {
	cond, err := DecodeCondition(r.ConditionType, r.RawCondition)
	if err != nil {
		r.Condition = nil
		r.ConditionError = err.Error()
		return
	}
	r.Condition = cond
	r.ConditionError = ""
}
