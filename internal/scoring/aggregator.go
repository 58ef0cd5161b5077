package scoring

import (
	"sort"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

// Result is the score of one opportunity plus the rules that produced it.
type Result struct {
	Score         int                   `json:"score"`
	Tier          string                `json:"tier"`
	Contributions []models.Contribution `json:"contributions"`
	Skipped       int                   `json:"skipped_rules,omitempty"`
}

// Aggregator turns a rule set into a final score for an opportunity.
type Aggregator struct {
	eval   *Evaluator
	policy Policy
}

func NewAggregator(eval *Evaluator, policy Policy) *Aggregator {
	return &Aggregator{eval: eval, policy: policy}
}

func (a *Aggregator) Policy() Policy { return a.policy }

// Evaluator returns the evaluator used for individual rules.
func (a *Aggregator) Evaluator() *Evaluator { return a.eval }

// WithEvaluator returns a copy of a using eval for rule matching.
func (a *Aggregator) WithEvaluator(eval *Evaluator) *Aggregator {
	return &Aggregator{eval: eval, policy: a.policy}
}

// Score evaluates every active rule against opp. Points are summed on top of
// the baseline without per-rule caps and the total is clamped once.
func (a *Aggregator) Score(opp models.Opportunity, rules []models.ScoringRule, now time.Time) Result {
	s := newSubject(opp)
	total := a.policy.Baseline
	res := Result{Contributions: []models.Contribution{}}

	for _, rule := range OrderRules(rules) {
		if !rule.IsActive {
			continue
		}
		m := a.eval.evaluate(&s, rule, now)
		if m.Skipped {
			res.Skipped++
			continue
		}
		if !m.Matched {
			continue
		}
		total = clampAdd(total, m.Points)
		res.Contributions = append(res.Contributions, models.Contribution{
			RuleID: rule.ID,
			Points: m.Points,
			Label:  rule.Label,
		})
	}

	res.Score = Clamp(total)
	res.Tier = a.policy.Tier(float64(res.Score))
	return res
}

// OrderRules returns a new slice sorted by priority descending, then id
// ascending. The input is never reordered, so a rule slice shared between
// concurrent scorers stays safe to read.
func OrderRules(rules []models.ScoringRule) []models.ScoringRule {
	out := make([]models.ScoringRule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
