package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"controlhub/internal/pkg/logger"
	"controlhub/internal/platform/config"
	"controlhub/internal/platform/database"
	"controlhub/internal/platform/metrics"
	"controlhub/internal/platform/repositories"
	"controlhub/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// The API caches lists for cache.automations_ttl, so a stalled flip shows
	// up there within one TTL.
	m := metrics.New()
	jobs := workers.NewJobs(
		repositories.NewAutomationRepository(db),
		repositories.NewRunRepository(db),
		cfg.Workers,
		m,
	)

	if cfg.Workers.MetricsAddr != "" {
		metricsSrv := &http.Server{Addr: cfg.Workers.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("worker metrics listener failed")
			}
		}()
		defer metricsSrv.Close()
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if err := jobs.Schedule(ctx, c); err != nil {
		log.Fatal().Err(err).Msg("invalid worker schedule")
	}

	log.Info().
		Str("stalled_schedule", cfg.Workers.StalledSchedule).
		Str("retention_schedule", cfg.Workers.RetentionSchedule).
		Msg("workers starting")
	c.Start()

	<-ctx.Done()
	log.Info().Msg("stopping workers")
	<-c.Stop().Done()
}
