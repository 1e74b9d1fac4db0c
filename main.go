package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/Sumhack/community-search-api/pkg/config"
	"github.com/Sumhack/community-search-api/pkg/database"
	"github.com/Sumhack/community-search-api/pkg/handlers"
	"github.com/Sumhack/community-search-api/pkg/llm"
	"github.com/Sumhack/community-search-api/pkg/logging"
	"github.com/Sumhack/community-search-api/pkg/middleware"
	"github.com/Sumhack/community-search-api/pkg/pipeline"
	"github.com/Sumhack/community-search-api/pkg/repositories"
	"github.com/Sumhack/community-search-api/pkg/schema"
	"github.com/Sumhack/community-search-api/pkg/services"
	"github.com/Sumhack/community-search-api/pkg/sqlguard"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	tables, err := config.LoadSynonyms(cfg.SynonymsPath)
	if err != nil {
		logger.Fatal("failed to load synonym tables", zap.Error(err))
	}

	llmClient, err := llm.New(&llm.Config{
		Provider: cfg.LLM.Provider,
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create translation client", zap.Error(err))
	}

	descriptor := schema.Directory()
	valuesRepo := repositories.NewValuesRepository(db)
	historyRepo := repositories.NewQueryHistoryRepository(db)
	executor := repositories.NewQueryExecutor(db)

	cache := pipeline.NewValuesCache(valuesRepo, descriptor, logger)
	if err := cache.Refresh(ctx); err != nil {
		// The service still starts: matching degrades to pass-through
		// until the store is reachable.
		logger.Warn("initial cache refresh failed", zap.Error(err))
	}

	p := pipeline.New(
		pipeline.NewNormalizer(cfg.Pipeline.MaxQuestionLength, tables.Synonyms),
		pipeline.NewExtractor(),
		pipeline.NewMatcher(descriptor, cfg.Pipeline.MatchThreshold, tables.Abbreviations),
		cache,
		pipeline.NewSynthesizer(llmClient, descriptor, cfg.LLM.Timeout(), logger),
		sqlguard.NewValidator(descriptor),
		pipeline.NewShaper(executor, cfg.Pipeline.RowLimit, cfg.Pipeline.ExecutionTimeout()),
		historyRepo,
		logger,
	)

	refresher := services.NewCacheRefresher(cache, cfg.Pipeline.CacheRefreshInterval(), logger)
	refresher.Start(ctx)

	ingestion := services.NewIngestionService(db, descriptor, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(p, logger).RegisterRoutes(mux)
	handlers.NewAdminHandler(ingestion, refresher, historyRepo, cfg.AdminKey, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting community-search-api",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	refresher.Wait()
}

// runMigrations applies pending schema migrations through database/sql; the
// pgx stdlib driver shares the pool configuration semantics with the service
// pool.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	return database.RunMigrations(sqlDB, cfg.MigrationsPath, logger)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
