package scoring

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/models"
)

// Match is the outcome of evaluating one rule against one opportunity.
type Match struct {
	Matched bool
	Points  int
	// Skipped is set when the rule could not be evaluated at all.
	Skipped bool
}

// SkipFunc observes rules that were skipped during evaluation.
type SkipFunc func(rule models.ScoringRule, reason string)

// Evaluator matches opportunities against single rules. It performs no I/O
// and keeps no state between calls.
type Evaluator struct {
	orgs   OrganizationLookup
	onSkip SkipFunc
}

// NewEvaluator returns an Evaluator that logs skipped rules to log. A nil
// orgs disables organization_type matching.
func NewEvaluator(orgs OrganizationLookup, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{
		orgs: orgs,
		onSkip: func(rule models.ScoringRule, reason string) {
			log.Warn("scoring: rule skipped",
				zap.Int64("rule_id", rule.ID),
				zap.String("rule", rule.Name),
				zap.String("reason", reason))
		},
	}
}

// WithSkipFunc returns a copy of e that reports skips to fn instead.
func (e *Evaluator) WithSkipFunc(fn SkipFunc) *Evaluator {
	cp := *e
	if fn == nil {
		fn = func(models.ScoringRule, string) {}
	}
	cp.onSkip = fn
	return &cp
}

// Evaluate matches opp against rule as of now.
func (e *Evaluator) Evaluate(opp models.Opportunity, rule models.ScoringRule, now time.Time) Match {
	s := newSubject(opp)
	return e.evaluate(&s, rule, now)
}

// subject caches the derived text of an opportunity so that one opportunity
// evaluated against many rules parses its description once.
type subject struct {
	opp  models.Opportunity
	text string
}

func newSubject(opp models.Opportunity) subject {
	return subject{
		opp:  opp,
		text: strings.ToLower(opp.Title + " \n " + htmlToText(opp.Description)),
	}
}

func (e *Evaluator) evaluate(s *subject, rule models.ScoringRule, now time.Time) Match {
	if rule.Condition == nil {
		reason := rule.ConditionError
		if reason == "" {
			reason = "condition payload missing"
		}
		return e.skip(rule, reason)
	}
	if rule.Condition.Type() != rule.ConditionType {
		return e.skip(rule, fmt.Sprintf("condition payload is %s, rule declares %s", rule.Condition.Type(), rule.ConditionType))
	}

	var matched bool
	switch c := rule.Condition.(type) {
	case models.KeywordsCondition:
		matched = matchKeywords(s.text, c.Keywords)
	case models.DeadlineDaysCondition:
		matched = matchDeadline(s.opp.DeadlineAt, c.MaxDays, now)
	case models.HasFieldCondition:
		matched = s.opp.HasField(c.Field)
	case models.MissingFieldsCondition:
		matched = matchMissing(s.opp, c.Fields)
	case models.OrganizationTypeCondition:
		matched = e.matchOrganization(s.opp.Organization, c.OrganizationType)
	default:
		return e.skip(rule, fmt.Sprintf("unsupported condition %T", c))
	}

	if !matched {
		return Match{}
	}
	return Match{Matched: true, Points: rule.Points}
}

func (e *Evaluator) skip(rule models.ScoringRule, reason string) Match {
	if e.onSkip != nil {
		e.onSkip(rule, reason)
	}
	return Match{Skipped: true}
}

func matchKeywords(text string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// matchDeadline compares calendar days in UTC: a deadline today is 0 days
// away and still open, a deadline yesterday has passed.
func matchDeadline(deadline *time.Time, maxDays int, now time.Time) bool {
	if deadline == nil {
		return false
	}
	today := models.Day(now)
	due := models.Day(*deadline)
	if due.Before(today) {
		return false
	}
	days := int(due.Sub(today).Hours() / 24)
	return days <= maxDays
}

func matchMissing(opp models.Opportunity, fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if opp.HasField(f) {
			return false
		}
	}
	return true
}

func (e *Evaluator) matchOrganization(org, want string) bool {
	if e.orgs == nil || strings.TrimSpace(org) == "" {
		return false
	}
	got, ok := e.orgs.TypeOf(org)
	return ok && strings.EqualFold(got, strings.TrimSpace(want))
}
