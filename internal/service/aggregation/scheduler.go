package aggregation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/ports"
)

// Scheduler re-runs the engine over a trailing range on a fixed interval, so
// the latest completed hours and day are rolled up as live data arrives.
type Scheduler struct {
	engine   *Engine
	samples  ports.SampleRepository
	interval time.Duration
	lookback time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewScheduler(engine *Engine, samples ports.SampleRepository, interval, lookback time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lookback < time.Hour {
		lookback = time.Hour
	}
	return &Scheduler{
		engine:   engine,
		samples:  samples,
		interval: interval,
		lookback: lookback,
		now:      time.Now,
		log:      log,
	}
}

// Start blocks, running one pass per interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Starting aggregation scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("lookback", s.lookback),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Aggregation scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("Scheduled aggregation failed", zap.Error(err))
			}
		}
	}
}

// RunOnce aggregates [now-lookback, now] for every device seen since the
// start of the first affected day.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunReport, error) {
	end := s.now().UTC()
	start := end.Add(-s.lookback)

	devices, err := s.samples.Devices(ctx, Align(domain.GranularityDay, start), end)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		s.log.Debug("No devices reported in aggregation range")
		return &RunReport{}, nil
	}

	return s.engine.Run(ctx, devices, start, end)
}
