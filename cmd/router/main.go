package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/docuflow/llm-router/config"
	"github.com/docuflow/llm-router/handlers"
	"github.com/docuflow/llm-router/internal/observability"
	"github.com/docuflow/llm-router/middleware"
	"github.com/docuflow/llm-router/repositories"
	"github.com/docuflow/llm-router/repositories/postgres"
	"github.com/docuflow/llm-router/routes"
	"github.com/docuflow/llm-router/services/audit"
	"github.com/docuflow/llm-router/services/health"
	"github.com/docuflow/llm-router/services/inference"
	"github.com/docuflow/llm-router/services/policy"
)

const version = "0.1.0"

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	policyDoc, err := loadPolicy(&cfg.Policy)
	if err != nil {
		logger.Fatal("failed to load policy document", zap.Error(err))
	}

	// Decision store is optional; without it decisions are only logged.
	var db *sql.DB
	var decisionRepo repositories.DecisionRepository
	var recorder *audit.Service
	if cfg.Database.Enabled() {
		db, err = postgres.NewConnection(&cfg.Database)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		repo := postgres.NewDecisionRepository(db)
		decisionRepo = repo
		recorder = audit.NewService(repo, logger, audit.DefaultConfig())
		if err := recorder.Start(); err != nil {
			logger.Fatal("failed to start decision recorder", zap.Error(err))
		}
	} else {
		logger.Info("no decision store configured, decisions will not be persisted")
	}

	cache := health.NewCache(cfg.Routing.HealthTTL)

	var decisionRecorder inference.DecisionRecorder
	if recorder != nil {
		decisionRecorder = recorder
	}
	svc := inference.NewService(
		&cfg.Providers,
		&cfg.Routing,
		policyDoc,
		cache,
		decisionRecorder,
		logger,
	)

	handler := routes.SetupRoutes(routes.Handlers{
		Chat:     handlers.NewChatHandler(svc, logger),
		Provider: handlers.NewProviderHandler(svc, logger),
		Decision: handlers.NewDecisionHandler(decisionRepo, logger),
		Health:   handlers.NewHealthHandler(db, version),
		Identity: middleware.NewIdentityMiddleware(cfg.Auth.JWTSecret, logger),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("llm-router listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	if recorder != nil {
		if err := recorder.Stop(cfg.Server.ShutdownTimeout); err != nil {
			logger.Warn("decision recorder shutdown", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
}

// loadPolicy reads the policy document from inline JSON, a file, or
// falls back to the allow-all default document.
func loadPolicy(cfg *config.PolicyConfig) (*policy.Document, error) {
	if cfg.DocumentJSON != "" {
		return policy.ParseDocument([]byte(cfg.DocumentJSON))
	}
	if cfg.DocumentPath != "" {
		return policy.LoadDocument(cfg.DocumentPath)
	}
	return policy.DefaultDocument(), nil
}
