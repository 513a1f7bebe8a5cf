package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ea7klk/bm-lh-react-sub000/internal/aggregation"
	corecfg "github.com/ea7klk/bm-lh-react-sub000/internal/core/config"
	"github.com/ea7klk/bm-lh-react-sub000/internal/core/storage/postgres"
	"github.com/ea7klk/bm-lh-react-sub000/internal/ingestion"
	"github.com/ea7klk/bm-lh-react-sub000/internal/migrations"
	"github.com/ea7klk/bm-lh-react-sub000/internal/reporting"
	"github.com/ea7klk/bm-lh-react-sub000/internal/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "bmlh.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Aggregation (cron-based incremental rollups)
	summaryStore := postgres.NewSummaryAdapter(dbAdapter.DB())
	processingLog := postgres.NewProcessingLogAdapter(dbAdapter.DB())

	scheduler := aggregation.NewScheduler(
		cfg.Aggregation.CronIntervalDuration(),
		dbAdapter, // EventStore
		summaryStore,
		processingLog,
		aggregation.RunnerOptions{
			BatchSize:     cfg.Aggregation.BatchSize,
			StaleRunAfter: cfg.Aggregation.StaleRunAfterDuration(),
		},
	)

	slog.Info("Aggregation scheduler initialized",
		"interval", cfg.Aggregation.CronInterval,
		"enabled", cfg.Aggregation.Enabled,
		"batch_size", cfg.Aggregation.BatchSize,
		"stale_run_after", cfg.Aggregation.StaleRunAfter,
	)

	// 4. Initialize Ingestion (live-feed events written straight to DB)
	ingestionSvc := ingestion.NewService(dbAdapter, cfg.Server.MaxBodySizeMB)

	// 5. Initialize Reporting (query API over the rollups)
	reportingSvc := reporting.NewService(postgres.NewReportAdapter(dbAdapter.DB()))

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	reportingSvc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Aggregation.Enabled {
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	} else {
		slog.Info("Aggregation scheduler disabled by config")
	}

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
