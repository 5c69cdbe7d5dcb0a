package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/ainews/backend/internal/api/handlers"
	"github.com/ainews/backend/internal/cache/redis"
	"github.com/ainews/backend/internal/classifier"
	"github.com/ainews/backend/internal/dedup"
	"github.com/ainews/backend/internal/ingestion"
	"github.com/ainews/backend/internal/lexicon"
	"github.com/ainews/backend/internal/metrics"
	"github.com/ainews/backend/internal/middleware/ratelimit"
	"github.com/ainews/backend/internal/middleware/security"
	"github.com/ainews/backend/internal/middleware/validation"
	"github.com/ainews/backend/internal/ranking"
	"github.com/ainews/backend/internal/search"
	"github.com/ainews/backend/internal/storage/sqlite"
	"github.com/ainews/backend/pkg/config"
	appLogger "github.com/ainews/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting AI news API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		appLogger.Fatal("Failed to create data directory", zap.Error(err))
	}
	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(ctx); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	lex, err := lexicon.LoadFile(cfg.Classifier.LexiconPath)
	if err != nil {
		appLogger.Fatal("Failed to load lexicon", zap.Error(err))
	}
	appLogger.Info("Lexicon loaded",
		zap.String("version", lex.Version()),
		zap.Int("categories", len(lex.Categories())),
	)

	metrics.Init()

	cls := classifier.New(lex, classifier.WithWorkers(cfg.Classifier.Workers))
	deduper := dedup.New(cfg.Dedup.Threshold)
	ranker := ranking.New(
		ranking.WithTrustedSources(cfg.Ranking.TrustedSources),
		ranking.WithTrustBonus(cfg.Ranking.TrustBonus),
	)

	var (
		engineOpts    []search.Option
		ingestionOpts []ingestion.Option
	)
	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(ctx, redis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Redis.TTLSec) * time.Second,
		})
		if err != nil {
			appLogger.Warn("Search cache disabled", zap.Error(err))
		} else {
			defer cache.Close()
			engineOpts = append(engineOpts, search.WithCache(cache))
			ingestionOpts = append(ingestionOpts, ingestion.WithCache(cache))
		}
	}

	engine := search.NewEngine(sqliteClient, lex, ranker, search.Config{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxLimit:      cfg.Search.MaxLimit,
		SimilarTerms:  cfg.Search.SimilarTerms,
		TrendingLimit: cfg.Search.TrendingLimit,
	}, engineOpts...)

	service := ingestion.NewService(cls, deduper, ranker, sqliteClient, ingestion.Config{
		MaxPerCycle:   cfg.Ingestion.MaxPerCycle,
		SkipKnown:     cfg.Ingestion.SkipKnown,
		InDomainOnly:  cfg.Classifier.InDomainOnly,
		RetryAttempts: cfg.Ingestion.RetryAttempts,
	}, ingestionOpts...)

	if cfg.Search.RetentionDays > 0 {
		go runRetention(ctx, sqliteClient, cfg.Search.RetentionDays)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	headers := security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(security.CORS(headers))
	app.Use(security.HeadersMiddleware(headers))

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1", limiter.Middleware(), validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))
	handlers.Register(api,
		handlers.NewDocumentHandler(cls, service),
		handlers.NewSearchHandler(engine),
		handlers.NewHealthHandler(sqliteClient),
	)

	addr := cfg.ListenAddr()
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// runRetention drops records older than the retention window once at startup
// and then daily until ctx is done.
func runRetention(ctx context.Context, db *sqlite.Client, days int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		cutoff := time.Now().AddDate(0, 0, -days)
		if _, err := db.Cleanup(ctx, cutoff); err != nil && ctx.Err() == nil {
			appLogger.Error("Retention cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
