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

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/adapter/storage"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
	"github.com/seu-repo/plugwatch/internal/service/aggregation"
	"github.com/seu-repo/plugwatch/internal/service/backfill"
	"github.com/seu-repo/plugwatch/internal/service/ingest"
	"github.com/seu-repo/plugwatch/pkg/config"
)

var (
	configPath   = flag.String("config", "", "Path to config file (default: search ./configs, ., /app/configs)")
	profilesFile = flag.String("profiles", "", "Fleet definition YAML (overrides backfill.profiles_file)")
	startFlag    = flag.String("start", "", "Range start, RFC 3339 or YYYY-MM-DD (overrides backfill.start)")
	endFlag      = flag.String("end", "", "Range end, RFC 3339 or YYYY-MM-DD (overrides backfill.end)")
	seed         = flag.Uint64("seed", 0, "Random seed, 0 picks a time-based seed (overrides backfill.seed)")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadFrom(nil, *configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := telemetry.NewLogger(cfg.Logging, *verbose)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if *profilesFile != "" {
		cfg.Backfill.ProfilesFile = *profilesFile
	}
	if *startFlag != "" {
		cfg.Backfill.Start = *startFlag
	}
	if *endFlag != "" {
		cfg.Backfill.End = *endFlag
	}
	if *seed != 0 {
		cfg.Backfill.Seed = *seed
	}

	start, err := parseTime(cfg.Backfill.Start)
	if err != nil {
		logger.Fatal("Invalid backfill start", zap.Error(err))
	}
	end, err := parseTime(cfg.Backfill.End)
	if err != nil {
		logger.Fatal("Invalid backfill end", zap.Error(err))
	}

	fleet, err := backfill.LoadFleetConfig(cfg.Backfill.ProfilesFile)
	if err != nil {
		logger.Fatal("Failed to load fleet", zap.String("file", cfg.Backfill.ProfilesFile), zap.Error(err))
	}

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

	// Backfilled history is not "latest", so neither cache nor fan-out is wired.
	writer := ingest.NewWriter(stores.Samples, ingest.WriterOptions{}, logger)

	simulator, err := backfill.NewSimulator(fleet, writer, engine, backfill.Options{
		Tick:      cfg.Backfill.Tick,
		BatchSize: cfg.Backfill.BatchSize,
		Seed:      cfg.Backfill.Seed,
	}, logger)
	if err != nil {
		logger.Fatal("Invalid fleet definition", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := simulator.Run(ctx, start, end)
	if err != nil {
		logger.Fatal("Backfill failed", zap.Error(err))
	}

	fields := []zap.Field{
		zap.Int("ticks", report.Ticks),
		zap.Int("samples_written", report.SamplesWritten),
		zap.Int("write_failures", report.WriteFailures),
	}
	if agg := report.Aggregation; agg != nil {
		fields = append(fields,
			zap.Int("hourly_windows", agg.HourlyWindows),
			zap.Int("daily_windows", agg.DailyWindows),
			zap.Int("aggregation_failures", agg.Failed()),
		)
		for _, f := range agg.Failures {
			logger.Warn("Window failed",
				zap.String("hardware_name", f.HardwareName),
				zap.String("window", f.Window.String()),
				zap.String("error", f.Error),
			)
		}
	}
	logger.Info("Backfill complete", fields...)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("time is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: expected RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
