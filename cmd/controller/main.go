package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/plugwatch/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/plugwatch/internal/adapter/mqtt"
	"github.com/seu-repo/plugwatch/internal/adapter/storage"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
	"github.com/seu-repo/plugwatch/internal/service/aggregation"
	"github.com/seu-repo/plugwatch/internal/service/command"
	"github.com/seu-repo/plugwatch/internal/service/health"
	"github.com/seu-repo/plugwatch/pkg/config"
)

const serviceName = "plugwatch-controller"

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

	logger.Info("Starting plugwatch controller",
		zap.String("service", serviceName),
		zap.String("version", cfg.App.Version),
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

	// 4. Time-series store for on-demand aggregation
	stores, err := storage.Open(cfg.Storage, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open time-series store", zap.Error(err))
	}
	defer stores.Close()

	policy, err := aggregation.ParseBoundaryPolicy(cfg.Aggregation.BoundaryPolicy)
	if err != nil {
		logger.Fatal("Invalid aggregation config", zap.Error(err))
	}
	engine := aggregation.NewEngine(stores.Samples, stores.Rollups, aggregation.Options{
		Policy:      policy,
		Concurrency: cfg.Aggregation.Concurrency,
	}, logger)

	// 5. Command bus. The controller only publishes, so it subscribes to nothing.
	busCfg := cfg.MQTT
	busCfg.Topics = nil
	bus := mqtt.NewConnection(busCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	forwarder := command.NewForwarder(bus, cfg.MQTT.PublishTimeout, logger)

	// 6. HTTP Server
	healthService := health.NewService(&health.Config{
		Version:  cfg.App.Version,
		Database: stores.Samples.Ping,
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
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}

	health.NewHandler(healthService, logger).RegisterRoutes(app)
	app.Get("/metrics", handlers.Metrics())

	commandHandler := handlers.NewCommandHandler(forwarder, logger)
	app.Put("/action", middleware.CircuitBreaker("plug-commands", cfg.CircuitBreaker, logger), commandHandler.Action)

	aggregateHandler := handlers.NewAggregateHandler(engine, stores.Samples, logger)
	app.Post("/aggregate", aggregateHandler.Aggregate)

	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down controller...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	cancel()
	<-bus.Done()

	logger.Info("Controller exited gracefully")
}
