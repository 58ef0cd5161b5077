package health

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/david/opportunity-radar/internal/models"
)

// Default weights of the composite score. They sum to 1.0.
const (
	WeightYield      = 0.30
	WeightDuplicates = 0.20
	WeightErrors     = 0.30
	WeightFreshness  = 0.20
)

// NoDataScore is returned for a day with zero opportunities and zero errors.
const NoDataScore = 50.0

// DefaultPollInterval is assumed for sources without a configured interval.
const DefaultPollInterval = 24 * time.Hour

// MedianLookbackDays bounds how many preceding days feed a day's yield median.
const MedianLookbackDays = 14

// Weights are the relative importance of each sub-signal. They are
// normalized by their sum, so only their ratios matter.
type Weights struct {
	Yield      float64 `yaml:"yield" json:"yield"`
	Duplicates float64 `yaml:"duplicates" json:"duplicates"`
	Errors     float64 `yaml:"errors" json:"errors"`
	Freshness  float64 `yaml:"freshness" json:"freshness"`
}

func DefaultWeights() Weights {
	return Weights{
		Yield:      WeightYield,
		Duplicates: WeightDuplicates,
		Errors:     WeightErrors,
		Freshness:  WeightFreshness,
	}
}

func (w Weights) Validate() error {
	if w.Yield < 0 || w.Duplicates < 0 || w.Errors < 0 || w.Freshness < 0 {
		return fmt.Errorf("health weights must be >= 0: %+v", w)
	}
	if w.sum() <= 0 {
		return fmt.Errorf("health weights must not all be zero")
	}
	return nil
}

func (w Weights) sum() float64 {
	return w.Yield + w.Duplicates + w.Errors + w.Freshness
}

// Input is one day of metrics plus the context needed to normalize it.
type Input struct {
	Metrics models.SourceHealthMetrics

	// MedianYield is the median OpportunitiesFound of the source's recent
	// days with data. Zero means no history; yield then gets full credit
	// whenever anything was found.
	MedianYield float64

	// PollInterval is the source's configured polling cadence. Data no older
	// than one interval is fully fresh. Zero falls back to DefaultPollInterval.
	PollInterval time.Duration
}

// Breakdown is the composite score with its per-signal factors (each 0–1),
// useful for explaining a score to operators.
type Breakdown struct {
	Score           float64 `json:"score"`
	NoData          bool    `json:"no_data"`
	YieldFactor     float64 `json:"yield_factor"`
	DuplicateFactor float64 `json:"duplicate_factor"`
	ErrorFactor     float64 `json:"error_factor"`
	FreshnessFactor float64 `json:"freshness_factor"`
}

// Scorer computes daily health. It is immutable and safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer returns a Scorer using w, or the defaults if w is invalid.
func NewScorer(w Weights) *Scorer {
	if w.Validate() != nil {
		w = DefaultWeights()
	}
	return &Scorer{weights: w}
}

func (s *Scorer) Weights() Weights { return s.weights }

// Score returns the 0–100 health of one source-day.
func (s *Scorer) Score(in Input) float64 {
	return s.Breakdown(in).Score
}

// Breakdown is Score with the contributing factors exposed.
func (s *Scorer) Breakdown(in Input) Breakdown {
	m := in.Metrics
	if m.OpportunitiesFound == 0 && m.ErrorRate == 0 {
		return Breakdown{Score: NoDataScore, NoData: true}
	}

	b := Breakdown{
		YieldFactor:     yieldFactor(m.OpportunitiesFound, in.MedianYield),
		DuplicateFactor: duplicateFactor(m.OpportunitiesFound, m.DuplicatesFound),
		ErrorFactor:     1 - clamp01(m.ErrorRate),
		FreshnessFactor: freshnessFactor(m.FreshnessHours, in.PollInterval),
	}

	w := s.weights
	score := (b.YieldFactor*w.Yield +
		b.DuplicateFactor*w.Duplicates +
		b.ErrorFactor*w.Errors +
		b.FreshnessFactor*w.Freshness) / w.sum() * 100

	b.Score = round2(clamp(score, 0, 100))
	return b
}

func yieldFactor(found int, median float64) float64 {
	if found <= 0 {
		return 0
	}
	if median <= 0 {
		return 1
	}
	return clamp01(float64(found) / median)
}

func duplicateFactor(found, duplicates int) float64 {
	if found <= 0 {
		if duplicates > 0 {
			return 0
		}
		return 1
	}
	return 1 - clamp01(float64(duplicates)/float64(found))
}

// freshnessFactor is 1 while data is within one poll interval and decays as
// interval/age beyond it: twice as old as expected earns half credit.
func freshnessFactor(hours float64, poll time.Duration) float64 {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	expected := poll.Hours()
	if hours <= expected {
		return 1
	}
	return clamp01(expected / hours)
}

// ScoreHistory scores a source's metrics rows. Rows are sorted by date first;
// each day's median yield comes from up to MedianLookbackDays preceding rows
// that had data. Days without a row simply do not appear in the output.
func (s *Scorer) ScoreHistory(rows []models.SourceHealthMetrics, poll time.Duration) []DailyScore {
	sorted := make([]models.SourceHealthMetrics, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make([]DailyScore, 0, len(sorted))
	var history []float64
	for _, m := range sorted {
		b := s.Breakdown(Input{Metrics: m, MedianYield: median(history), PollInterval: poll})
		out = append(out, DailyScore{
			Date:               models.Day(m.Date),
			Score:              b.Score,
			OpportunitiesFound: m.OpportunitiesFound,
			NoData:             b.NoData,
		})
		if !b.NoData {
			history = append(history, float64(m.OpportunitiesFound))
			if len(history) > MedianLookbackDays {
				history = history[1:]
			}
		}
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
