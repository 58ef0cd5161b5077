package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/david/opportunity-radar/internal/api"
	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/db"
	"github.com/david/opportunity-radar/internal/health"
	"github.com/david/opportunity-radar/internal/logger"
	"github.com/david/opportunity-radar/internal/metrics"
	"github.com/david/opportunity-radar/internal/recalc"
	"github.com/david/opportunity-radar/internal/scheduler"
	"github.com/david/opportunity-radar/internal/scoring"
	"github.com/david/opportunity-radar/internal/sources"
)

// healthSnapshotSpec refreshes the exported source health gauges.
const healthSnapshotSpec = "0 */5 * * * *"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, zl); err != nil {
		zl.Fatal("Migration failed", zap.Error(err))
	}

	store := db.NewStore(pool)

	if cfg.Database.SeedSources {
		reg, err := sources.LoadRegistry(os.Getenv("SOURCES_FILE"))
		if err != nil {
			zl.Fatal("Failed to load source registry", zap.Error(err))
		}
		if _, err := sources.Seed(ctx, store, reg, zl); err != nil {
			zl.Fatal("Failed to seed sources", zap.Error(err))
		}
	}

	reg := metrics.New()

	coord := recalc.NewCoordinator(store, buildAggregator(cfg, zl), zl, withMetrics(cfg.Recalc.Options(), reg))

	healthSvc := health.NewService(store, health.NewScorer(cfg.Health), zl)
	healthSvc.Observe(func(s health.Summary) {
		reg.SourceHealth(s.Source.ID, s.CurrentHealth, s.Status)
	})

	runner := scheduler.New(zl, ctx)
	if cfg.Recalc.ScheduleEnabled() {
		if err := scheduler.ScheduleRecalculation(runner, cfg.Recalc.Schedule, coord); err != nil {
			zl.Fatal("Failed to schedule recalculation", zap.Error(err))
		}
	}
	if _, err := runner.Add("health-snapshot", healthSnapshotSpec, func(ctx context.Context) {
		if _, err := healthSvc.Overview(ctx); err != nil {
			zl.Warn("health snapshot failed", zap.Error(err))
		}
	}); err != nil {
		zl.Fatal("Failed to schedule health snapshot", zap.Error(err))
	}
	runner.Start()

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, zl, func(next *config.Config) {
				coord.SetAggregator(buildAggregator(next, zl))
				healthSvc.SetScorer(health.NewScorer(next.Health))
				coord.RulesChanged("policy reloaded")
			})
			if err != nil {
				zl.Error("config watcher stopped", zap.Error(err))
			}
		}()
	}

	srv, err := api.NewServer(api.Deps{
		Store:       store,
		Recalc:      coord,
		Health:      healthSvc,
		Metrics:     reg,
		Log:         zl,
		AdminSecret: cfg.Server.AdminSecret,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		zl.Fatal("Failed to build server", zap.Error(err))
	}

	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP shutdown failed", zap.Error(err))
	}
	runner.Stop()
	if err := coord.Shutdown(shutdownCtx); err != nil {
		zl.Error("Recalculation did not stop in time", zap.Error(err))
	}
}

func buildAggregator(cfg *config.Config, zl *zap.Logger) *scoring.Aggregator {
	types := cfg.OrganizationTypes
	if len(types) == 0 {
		types = scoring.DefaultOrganizationTypes
	}
	eval := scoring.NewEvaluator(scoring.NewOrganizationDirectory(types), zl)
	return scoring.NewAggregator(eval, cfg.Scoring)
}

func withMetrics(opts recalc.Options, m recalc.Metrics) recalc.Options {
	opts.Metrics = m
	return opts
}
