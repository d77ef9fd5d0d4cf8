package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muhammadchandra19/tickbar/internal/bootstrap"
	qdbmigrations "github.com/muhammadchandra19/tickbar/internal/infrastructure/questdb"
	"github.com/muhammadchandra19/tickbar/internal/pipeline"
	"github.com/muhammadchandra19/tickbar/pkg/config"
	"github.com/muhammadchandra19/tickbar/pkg/httplib/healthcheck"
	"github.com/muhammadchandra19/tickbar/pkg/logger"
	"github.com/muhammadchandra19/tickbar/pkg/migration"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		pipelineFile = flag.String("pipeline", "", "Pipeline definition file (overrides PIPELINE_FILE)")
		migrate      = flag.String("migrate", "", "Apply QuestDB migrations and exit: up or down")
		steps        = flag.Int("steps", 0, "Number of migrations to apply, all pending ones for up when 0")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *pipelineFile != "" {
		cfg.Pipeline.File = *pipelineFile
	}

	// Initialize logger
	lg, err := logger.NewLogger(
		logger.WithLoggingLevel(logger.ParseLevel(cfg.App.LogLevel)),
		logger.WithName(cfg.App.Name),
	)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrate != "" {
		err = runMigrations(ctx, cfg, lg, *migrate, *steps)
	} else {
		err = runPipeline(ctx, cfg, lg)
	}
	if err != nil {
		lg.Error(err)
		stop()
		_ = lg.Sync()
		os.Exit(1)
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, lg logger.Interface, direction string, steps int) error {
	b, err := bootstrap.Init(ctx, bootstrap.BootstrapConfig{Config: cfg, Logger: lg}, bootstrap.Needs{QuestDB: true})
	if err != nil {
		return err
	}
	defer b.Close()

	runner := migration.NewRunner(b.QuestDB, qdbmigrations.Migrations(), lg)
	switch direction {
	case "up":
		return runner.MigrateUp(ctx, steps)
	case "down":
		return runner.MigrateDown(ctx, steps)
	default:
		return fmt.Errorf("unknown migration direction %q, want up or down", direction)
	}
}

func runPipeline(ctx context.Context, cfg *config.Config, lg logger.Interface) error {
	def, err := pipeline.LoadDefinition(cfg.Pipeline.File)
	if err != nil {
		return err
	}
	if err := bootstrap.CheckStandalone(def); err != nil {
		return err
	}

	b, err := bootstrap.Init(ctx, bootstrap.BootstrapConfig{Config: cfg, Logger: lg}, bootstrap.NeedsOf(def))
	if err != nil {
		return err
	}
	defer b.Close()

	health := healthcheck.New()
	if cfg.Metrics.Addr != "" {
		srv := metricsServer(cfg.Metrics, b, health)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error(err, logger.NewField("addr", cfg.Metrics.Addr))
			}
		}()
		defer func() {
			// Graceful shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		lg.InfoContext(ctx, "metrics server listening", logger.NewField("addr", cfg.Metrics.Addr))
	}

	p, err := pipeline.Build(def, b.Deps())
	if err != nil {
		return err
	}
	health.SetReady(true)

	lg.InfoContext(ctx, "tickbar started",
		logger.NewField("app", cfg.App.Name),
		logger.NewField("environment", cfg.App.Environment),
		logger.NewField("pipeline", cfg.Pipeline.File),
	)
	return p.Run(ctx)
}

func metricsServer(cfg config.MetricsConfig, b *bootstrap.Bootstrap, health *healthcheck.HealthCheck) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           health.Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
