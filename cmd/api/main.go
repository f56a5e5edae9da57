package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"

	_ "github.com/logs2metrics/l2m/docs"
	"github.com/logs2metrics/l2m/internal/api/handlers"
	"github.com/logs2metrics/l2m/internal/api/middleware"
	"github.com/logs2metrics/l2m/internal/api/router"
	"github.com/logs2metrics/l2m/internal/config"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/events"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/metrics"
	"github.com/logs2metrics/l2m/internal/pkg/validator"
	"github.com/logs2metrics/l2m/internal/providers"
	"github.com/logs2metrics/l2m/internal/repository/postgres"
	"github.com/logs2metrics/l2m/internal/services"
	"github.com/logs2metrics/l2m/internal/worker"
	"github.com/logs2metrics/l2m/migrations"
)

// @title Logs-to-Metrics API
// @version 1.0
// @description Manage log aggregation rules backed by Elasticsearch transforms.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	if err := run(cfg, log); err != nil {
		log.ErrorWithErr(err, "Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	migFS, err := migrations.GetFS(cfg.Database.Driver)
	if err != nil {
		return err
	}
	applied, err := postgres.RunMigrations(db, cfg.Database.Driver, migFS)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"driver":  cfg.Database.Driver,
		"applied": applied,
	}).Info("Database ready")

	es := providers.NewElasticClient(providers.ElasticConfig{
		URL:            cfg.Engine.URL,
		Username:       cfg.Engine.Username,
		Password:       cfg.Engine.Password,
		APIKey:         cfg.Engine.APIKey,
		RequestTimeout: cfg.Engine.RequestTimeout,
		AdminTimeout:   cfg.Engine.AdminTimeout,
	})

	publisher, err := newPublisher(cfg.Events, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	ruleRepo := postgres.NewRuleRepository(db, cfg.Database.Driver)
	estimator := services.NewCostEstimator(es, cfg.Guardrails.CardinalityConcurrent, log)
	guardrails := services.NewGuardrailService(estimator, cfg.Guardrails.LogRetentionDays, log)
	backend := services.NewElasticBackend(es, cfg.Engine.CleanupTimeout, log)
	ruleService := services.NewRuleService(ruleRepo, backend, guardrails, publisher, log)
	engineService := services.NewEngineService(es, log)
	analysisService := services.NewAnalysisService(services.NewSuitabilityScorer(), es, log)

	metrics.MustRegister(services.NewMetricsExporter(ruleRepo, backend, es, cfg.Engine.RequestTimeout, log))

	var monitor handlers.MonitorSource
	if cfg.Reconciler.Enabled {
		reconciler := worker.NewHealthReconciler(ruleRepo, ruleService, backend, cfg.Reconciler.Interval, cfg.Reconciler.StatusTimeout, log)
		if err := reconciler.Start(ctx); err != nil {
			return err
		}
		defer reconciler.Stop()
		monitor = reconciler
	} else {
		log.Info("Health reconciler disabled")
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.RunCleanup(ctx, 5*time.Minute)

	val := validator.New()
	handler := router.New(cfg, log, limiter, &router.Handlers{
		Health:   handlers.NewHealthHandler(db, engineService, monitor, log),
		Rule:     handlers.NewRuleHandler(ruleService, backend, guardrails, log, val),
		Analysis: handlers.NewAnalysisHandler(analysisService, log, val),
		Engine:   handlers.NewEngineHandler(engineService, log),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":        srv.Addr,
			"environment": cfg.Server.Environment,
			"engine":      cfg.Engine.URL,
		}).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// newPublisher connects to NATS when a URL is configured
func newPublisher(cfg config.EventsConfig, log *logger.Logger) (rule.EventPublisher, error) {
	if cfg.NATSURL == "" {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return p, nil
}
