package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/health"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	sourceID := flag.String("source", "", "show daily scores for one source instead of the overview")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	svc := health.NewService(db.NewStore(pool), health.NewScorer(cfg.Health), zap.NewNop())

	if *sourceID != "" {
		if err := renderDaily(ctx, svc, *sourceID); err != nil {
			log.Fatal(err)
		}
		return
	}

	overview, err := svc.Overview(ctx)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Health", "Status", "Trend", "7d Avg", "7d Found", "Days", "Last Metric"})
	for _, s := range overview.Sources {
		last := "never"
		if s.LastMetricDate != nil {
			last = s.LastMetricDate.Format("2006-01-02")
		}
		t.AppendRow(table.Row{s.Source.ID, s.CurrentHealth, s.Status, s.Trend, s.Last7DaysAvg, s.TotalOpportunities7d, s.DaysWithData, last})
	}
	t.AppendFooter(table.Row{
		"Overall", overview.OverallHealth,
		fmt.Sprintf("%d/%d/%d", overview.Healthy, overview.Warning, overview.Critical),
		"", "", "", "", fmt.Sprintf("%d sources", overview.SourceCount),
	})
	t.Render()
}

func renderDaily(ctx context.Context, svc *health.Service, sourceID string) error {
	summary, err := svc.Summary(ctx, sourceID)
	if err != nil {
		return err
	}
	daily, err := svc.DailyScores(ctx, summary.Source)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("%s: %.2f (%s, %s)", sourceID, summary.CurrentHealth, summary.Status, summary.Trend))
	t.AppendHeader(table.Row{"Date", "Score", "Found", "No Data"})
	for _, d := range daily {
		t.AppendRow(table.Row{d.Date.Format("2006-01-02"), d.Score, d.OpportunitiesFound, d.NoData})
	}
	t.Render()
	return nil
}
