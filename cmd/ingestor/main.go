package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/adapter/cache"
	"github.com/seu-repo/plugwatch/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/plugwatch/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/plugwatch/internal/adapter/mqtt"
	"github.com/seu-repo/plugwatch/internal/adapter/queue"
	"github.com/seu-repo/plugwatch/internal/adapter/storage"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
	"github.com/seu-repo/plugwatch/internal/service/aggregation"
	"github.com/seu-repo/plugwatch/internal/service/health"
	"github.com/seu-repo/plugwatch/internal/service/ingest"
	"github.com/seu-repo/plugwatch/pkg/config"
)

const serviceName = "plugwatch-ingestor"

var (
	configPath = flag.String("config", "", "Path to config file (default: search ./configs, ., /app/configs)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadFrom(nil, *configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 2. Initialize Logger
	logger, err := telemetry.NewLogger(cfg.Logging, *verbose)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting plugwatch ingestor",
		zap.String("service", serviceName),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// 3. Initialize Tracing
	shutdownTracer, err := telemetry.InitTracer(cfg.OpenTelemetry.Enabled, cfg.OpenTelemetry.Endpoint, serviceName, cfg.App.Version)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// 4. Time-series store
	stores, err := storage.Open(cfg.Storage, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open time-series store", zap.Error(err))
	}
	defer stores.Close()

	// 5. Latest-reading cache and sample fan-out
	latest := cache.New(cfg.Redis, cfg.Cache, logger)
	defer latest.Close()

	fanout, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	if fanout != nil {
		defer fanout.Close()
	}

	// 6. Aggregation
	policy, err := aggregation.ParseBoundaryPolicy(cfg.Aggregation.BoundaryPolicy)
	if err != nil {
		logger.Fatal("Invalid aggregation config", zap.Error(err))
	}
	engine := aggregation.NewEngine(stores.Samples, stores.Rollups, aggregation.Options{
		Policy:      policy,
		Concurrency: cfg.Aggregation.Concurrency,
	}, logger)

	// 7. Ingestion pipeline
	writer := ingest.NewWriter(stores.Samples, ingest.WriterOptions{
		Cache:         latest,
		CacheTTL:      cfg.Cache.LatestReadingTTL,
		Queue:         fanout,
		SubjectPrefix: cfg.Queue.SubjectPrefix,
	}, logger)
	consumer := ingest.NewConsumer(ingest.NewClassifier(logger), writer, logger)
	bus := mqtt.NewConnection(cfg.MQTT, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bus.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		stats := consumer.Run(ctx, bus.Messages())
		logger.Info("Ingestion finished",
			zap.Int("received", stats.Received),
			zap.Int("written", stats.Written),
			zap.Int("write_errors", stats.WriteErrors),
			zap.Int("dropped", stats.Dropped),
		)
	}()

	if cfg.Aggregation.Enabled {
		scheduler := aggregation.NewScheduler(engine, stores.Samples, cfg.Aggregation.Interval, cfg.Aggregation.HourlyLookback, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Start(ctx)
		}()
	}

	// 8. Health and metrics
	healthService := health.NewService(&health.Config{
		Version:  cfg.App.Version,
		Database: stores.Samples.Ping,
		Cache:    latest.Ping,
		Bus:      bus.Ping,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})
	app.Use(recover.New())
	health.NewHandler(healthService, logger).RegisterRoutes(app)
	app.Get("/metrics", handlers.Metrics())

	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 9. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down ingestor...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Ingestor exited gracefully")
}
