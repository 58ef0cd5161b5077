package scoring

import (
	"fmt"
	"math"
)

// Score bounds and the neutral starting point of every opportunity.
const (
	MinScore        = 0
	MaxScore        = 100
	DefaultBaseline = 50
)

// Tier thresholds: a score at or above the bound earns the tier.
const (
	TierExcellentMin = 80
	TierGoodMin      = 60
	TierModerateMin  = 40
)

const (
	TierExcellent = "excellent"
	TierGood      = "good"
	TierModerate  = "moderate"
	TierLow       = "low"
)

// Policy holds the tunable numbers of the aggregator. The zero value is not
// usable; start from DefaultPolicy.
type Policy struct {
	Baseline     int `yaml:"baseline" json:"baseline"`
	ExcellentMin int `yaml:"excellent_min" json:"excellent_min"`
	GoodMin      int `yaml:"good_min" json:"good_min"`
	ModerateMin  int `yaml:"moderate_min" json:"moderate_min"`
}

func DefaultPolicy() Policy {
	return Policy{
		Baseline:     DefaultBaseline,
		ExcellentMin: TierExcellentMin,
		GoodMin:      TierGoodMin,
		ModerateMin:  TierModerateMin,
	}
}

func (p Policy) Validate() error {
	if p.Baseline < MinScore || p.Baseline > MaxScore {
		return fmt.Errorf("baseline %d outside [%d,%d]", p.Baseline, MinScore, MaxScore)
	}
	if !(MinScore <= p.ModerateMin && p.ModerateMin < p.GoodMin && p.GoodMin < p.ExcellentMin && p.ExcellentMin <= MaxScore) {
		return fmt.Errorf("tier thresholds must satisfy 0 <= moderate(%d) < good(%d) < excellent(%d) <= 100",
			p.ModerateMin, p.GoodMin, p.ExcellentMin)
	}
	return nil
}

// Tier buckets a score. It is the only place tiers are derived.
func (p Policy) Tier(score float64) string {
	switch {
	case score >= float64(p.ExcellentMin):
		return TierExcellent
	case score >= float64(p.GoodMin):
		return TierGood
	case score >= float64(p.ModerateMin):
		return TierModerate
	default:
		return TierLow
	}
}

// Clamp restricts a raw point total to [MinScore, MaxScore].
func Clamp(total int) int {
	if total < MinScore {
		return MinScore
	}
	if total > MaxScore {
		return MaxScore
	}
	return total
}

// clampAdd sums without int overflow; totals far outside the score range are
// clamped anyway, so saturating is harmless.
func clampAdd(a, b int) int {
	s := int64(a) + int64(b)
	if s > math.MaxInt32 {
		return math.MaxInt32
	}
	if s < math.MinInt32 {
		return math.MinInt32
	}
	return int(s)
}
