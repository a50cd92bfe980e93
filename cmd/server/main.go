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

	"github.com/rs/zerolog/log"

	"controlhub/internal/api"
	"controlhub/internal/api/handlers"
	"controlhub/internal/api/middleware"
	"controlhub/internal/engine/actions"
	"controlhub/internal/engine/automations"
	"controlhub/internal/engine/ingest"
	"controlhub/internal/engine/stats"
	"controlhub/internal/pkg/logger"
	"controlhub/internal/platform/audit"
	"controlhub/internal/platform/auth"
	"controlhub/internal/platform/config"
	"controlhub/internal/platform/database"
	"controlhub/internal/platform/metrics"
	"controlhub/internal/platform/repositories"
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

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if _, err := database.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Repositories
	automationRepo := repositories.NewAutomationRepository(db)
	runRepo := repositories.NewRunRepository(db)
	userRepo := repositories.NewUserRepository(db)
	clientRepo := repositories.NewClientRepository(db)

	// Services
	m := metrics.New()
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLogger := audit.NewLogger(db)
	defer auditLogger.Wait()

	automationSvc := automations.NewService(automationRepo, runRepo,
		automations.NewListCache(cfg.Cache.MaxEntries, cfg.Cache.AutomationsTTL))
	ingestSvc := ingest.NewService(automationRepo, runRepo, automationSvc, m)
	actionSvc := actions.NewService(automationRepo, actions.NewTrigger(cfg.Triggers), auditLogger, automationSvc, m)
	statsSvc := stats.NewService(automationRepo, runRepo)

	limiter := middleware.NewRateLimiter()
	defer limiter.Stop()

	router := api.NewRouter(&api.Dependencies{
		AuthHandler:       handlers.NewAuthHandler(userRepo, tokenSvc, cfg.JWT.CookieSecure),
		UserHandler:       handlers.NewUserHandler(userRepo),
		AutomationHandler: handlers.NewAutomationHandler(automationSvc, actionSvc),
		ClientHandler:     handlers.NewClientHandler(clientRepo),
		StatsHandler:      handlers.NewStatsHandler(statsSvc),
		WebhookHandler:    handlers.NewWebhookHandler(ingestSvc),
		AuditHandler:      handlers.NewAuditHandler(auditLogger),
		HealthHandler:     handlers.NewHealthHandler(db),
		MetricsHandler:    handlers.NewMetricsHandler(m),
		AuthMiddleware:    middleware.NewAuthMiddleware(tokenSvc),
		RateLimiter:       limiter,
		Metrics:           m,
		Logger:            log.Logger,
		WebhookSecret:     cfg.Webhook.Secret,
		RateLimits:        cfg.RateLimit,
		CORS:              cfg.CORS,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Str("dialect", db.Dialect).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
