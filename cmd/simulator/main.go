package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/adapter/mqtt"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
	"github.com/seu-repo/plugwatch/internal/service/backfill"
	"github.com/seu-repo/plugwatch/pkg/config"
)

var (
	configPath   = flag.String("config", "", "Path to config file (default: search ./configs, ., /app/configs)")
	profilesFile = flag.String("profiles", "", "Fleet definition YAML (overrides backfill.profiles_file)")
	interval     = flag.Duration("interval", 5*time.Second, "Publish interval")
	seed         = flag.Uint64("seed", 0, "Random seed, 0 picks a time-based seed")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadFrom(nil, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewLogger(cfg.Logging, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *profilesFile != "" {
		cfg.Backfill.ProfilesFile = *profilesFile
	}
	fleet, err := backfill.LoadFleetConfig(cfg.Backfill.ProfilesFile)
	if err != nil {
		logger.Fatal("Failed to load fleet", zap.String("file", cfg.Backfill.ProfilesFile), zap.Error(err))
	}

	busCfg := cfg.MQTT
	busCfg.Topics = nil
	bus := mqtt.NewConnection(busCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go bus.Run(ctx)

	simulator, err := NewSimulator(fleet, bus, *interval, cfg.MQTT.PublishTimeout, *seed, logger)
	if err != nil {
		logger.Fatal("Invalid fleet definition", zap.Error(err))
	}

	logger.Info("Mock plug simulator started",
		zap.String("broker", cfg.MQTT.Broker),
		zap.Int("plugs", len(fleet.Plugs)),
		zap.Duration("interval", *interval),
	)

	if err := simulator.Run(ctx); err != nil {
		logger.Fatal("Simulator stopped", zap.Error(err))
	}
	<-bus.Done()
	logger.Info("Simulator exited")
}
