package health

import (
	"sort"
	"time"

	"github.com/david/opportunity-radar/internal/models"
	"github.com/david/opportunity-radar/internal/scoring"
)

const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Status bounds share their values with opportunity scoring: "healthy" starts
// where the excellent tier starts and "critical" is anything below the
// neutral baseline.
const (
	HealthyMin     = float64(scoring.TierExcellentMin)
	WarningMin     = float64(scoring.DefaultBaseline)
	TrendThreshold = 5.0
	TrendWindow    = 3
	SummaryWindow  = 7
)

// DailyScore is the health of one source on one day with data.
type DailyScore struct {
	Date               time.Time `json:"date"`
	Score              float64   `json:"score"`
	OpportunitiesFound int       `json:"opportunities_found"`
	NoData             bool      `json:"no_data"`
}

// Summary is the derived health view of one source. It is never stored.
type Summary struct {
	Source               models.SourceConfig `json:"source"`
	CurrentHealth        float64             `json:"current_health"`
	Trend                string              `json:"trend"`
	Last7DaysAvg         float64             `json:"last_7_days_avg"`
	TotalOpportunities7d int                 `json:"total_opportunities_7d"`
	Status               string              `json:"status"`
	DaysWithData         int                 `json:"days_with_data"`
	LastMetricDate       *time.Time          `json:"last_metric_date"`
}

// Overview rolls all source summaries up into one product-wide view.
type Overview struct {
	OverallHealth float64   `json:"overall_health"`
	SourceCount   int       `json:"source_count"`
	Healthy       int       `json:"healthy"`
	Warning       int       `json:"warning"`
	Critical      int       `json:"critical"`
	Sources       []Summary `json:"sources"`
}

// Summarize derives a Summary from daily scores, with the 7-day window
// ending on the last day that has data. The input need not be sorted; the
// last day by date is "current". With no days at all the source is reported
// at NoDataScore.
func Summarize(source models.SourceConfig, daily []DailyScore) Summary {
	var asOf time.Time
	for _, d := range daily {
		if d.Date.After(asOf) {
			asOf = d.Date
		}
	}
	return SummarizeAsOf(source, daily, asOf)
}

// SummarizeAsOf is Summarize with the 7-day window ending on asOf's UTC day.
// Only days inside [asOf-6, asOf] count toward the average, the total and
// DaysWithData; older rows still feed the trend and current health.
func SummarizeAsOf(source models.SourceConfig, daily []DailyScore, asOf time.Time) Summary {
	days := make([]DailyScore, len(daily))
	copy(days, daily)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	s := Summary{Source: source, Trend: TrendStable, Last7DaysAvg: NoDataScore}
	if len(days) == 0 {
		s.CurrentHealth = NoDataScore
		s.Status = StatusOf(s.CurrentHealth)
		return s
	}

	last := days[len(days)-1]
	lastDate := last.Date
	s.CurrentHealth = last.Score
	s.LastMetricDate = &lastDate

	windowStart := models.Day(asOf).AddDate(0, 0, -(SummaryWindow - 1))
	windowEnd := models.Day(asOf).AddDate(0, 0, 1)
	var scores []float64
	for _, d := range days {
		if d.Date.Before(windowStart) || !d.Date.Before(windowEnd) {
			continue
		}
		scores = append(scores, d.Score)
		s.TotalOpportunities7d += d.OpportunitiesFound
	}
	if len(scores) > 0 {
		s.Last7DaysAvg = round2(mean(scores))
	}
	s.DaysWithData = len(scores)

	all := make([]float64, len(days))
	for i, d := range days {
		all[i] = d.Score
	}
	s.Trend = Trend(all)
	s.Status = StatusOf(s.CurrentHealth)
	return s
}

// Trend compares the mean of the most recent TrendWindow scores with the
// mean of the TrendWindow scores before them. Shorter histories compare two
// equal halves; fewer than two scores is always stable.
func Trend(scores []float64) string {
	n := len(scores)
	if n < 2 {
		return TrendStable
	}
	w := TrendWindow
	if n/2 < w {
		w = n / 2
	}
	recent := scores[n-w:]
	prior := scores[n-2*w : n-w]

	delta := mean(recent) - mean(prior)
	switch {
	case delta > TrendThreshold:
		return TrendUp
	case delta < -TrendThreshold:
		return TrendDown
	default:
		return TrendStable
	}
}

// StatusOf buckets a health value.
func StatusOf(health float64) string {
	switch {
	case health < WarningMin:
		return StatusCritical
	case health < HealthyMin:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// BuildOverview aggregates summaries. An empty input yields a zero overview.
func BuildOverview(summaries []Summary) Overview {
	o := Overview{Sources: summaries}
	if o.Sources == nil {
		o.Sources = []Summary{}
	}
	o.SourceCount = len(summaries)
	if len(summaries) == 0 {
		return o
	}

	values := make([]float64, len(summaries))
	for i, s := range summaries {
		values[i] = s.CurrentHealth
		switch s.Status {
		case StatusHealthy:
			o.Healthy++
		case StatusWarning:
			o.Warning++
		case StatusCritical:
			o.Critical++
		}
	}
	o.OverallHealth = round2(mean(values))
	return o
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
