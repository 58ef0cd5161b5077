package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/models"
)

// LookbackDays is how far back metrics are read when summarizing a source:
// the summary window plus enough preceding days to seed the yield median.
const LookbackDays = SummaryWindow + MedianLookbackDays

// Store is the read side of source and metrics persistence.
type Store interface {
	ListSources(ctx context.Context, activeOnly bool) ([]models.SourceConfig, error)
	GetSource(ctx context.Context, id string) (*models.SourceConfig, error)
	ListHealthMetrics(ctx context.Context, sourceID string, since time.Time) ([]models.SourceHealthMetrics, error)
}

// Observer receives every computed summary, e.g. to export gauges.
type Observer func(Summary)

// Service computes summaries on read. Nothing it derives is stored.
type Service struct {
	store    Store
	scorer   atomic.Pointer[Scorer]
	log      *zap.Logger
	now      func() time.Time
	observer Observer
}

func NewService(store Store, scorer *Scorer, log *zap.Logger) *Service {
	if scorer == nil {
		scorer = NewScorer(DefaultWeights())
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{store: store, log: log, now: time.Now}
	s.scorer.Store(scorer)
	return s
}

// SetScorer swaps the scorer used by subsequent reads.
func (s *Service) SetScorer(scorer *Scorer) {
	if scorer != nil {
		s.scorer.Store(scorer)
	}
}

func (s *Service) Scorer() *Scorer { return s.scorer.Load() }

// Observe registers fn to be called with every summary computed.
func (s *Service) Observe(fn Observer) { s.observer = fn }

// Summary computes the current health of one source.
func (s *Service) Summary(ctx context.Context, sourceID string) (Summary, error) {
	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return Summary{}, err
	}
	return s.summarize(ctx, *src)
}

// Overview summarizes every active source.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	sources, err := s.store.ListSources(ctx, true)
	if err != nil {
		return Overview{}, fmt.Errorf("list sources: %w", err)
	}
	summaries := make([]Summary, 0, len(sources))
	for _, src := range sources {
		sum, err := s.summarize(ctx, src)
		if err != nil {
			return Overview{}, err
		}
		summaries = append(summaries, sum)
	}
	return BuildOverview(summaries), nil
}

// History returns raw metrics rows for the trailing days, oldest first.
func (s *Service) History(ctx context.Context, sourceID string, days int) ([]models.SourceHealthMetrics, error) {
	if _, err := s.store.GetSource(ctx, sourceID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = SummaryWindow
	}
	since := models.Day(s.now()).AddDate(0, 0, -(days - 1))
	rows, err := s.store.ListHealthMetrics(ctx, sourceID, since)
	if err != nil {
		return nil, fmt.Errorf("list metrics for %s: %w", sourceID, err)
	}
	if rows == nil {
		rows = []models.SourceHealthMetrics{}
	}
	return rows, nil
}

// DailyScores scores the source's trailing metrics without summarizing.
func (s *Service) DailyScores(ctx context.Context, src models.SourceConfig) ([]DailyScore, error) {
	since := models.Day(s.now()).AddDate(0, 0, -(LookbackDays - 1))
	rows, err := s.store.ListHealthMetrics(ctx, src.ID, since)
	if err != nil {
		return nil, fmt.Errorf("list metrics for %s: %w", src.ID, err)
	}
	return s.Scorer().ScoreHistory(rows, src.PollInterval), nil
}

func (s *Service) summarize(ctx context.Context, src models.SourceConfig) (Summary, error) {
	daily, err := s.DailyScores(ctx, src)
	if err != nil {
		return Summary{}, err
	}
	sum := SummarizeAsOf(src, daily, s.now())
	if sum.DaysWithData == 0 {
		s.log.Debug("health: no metrics in lookback", zap.String("source_id", src.ID))
	}
	if s.observer != nil {
		s.observer(sum)
	}
	return sum, nil
}
