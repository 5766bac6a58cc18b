package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/service/aggregation"
	"github.com/seu-repo/plugwatch/internal/service/ingest"
)

var ErrInvalidRange = errors.New("invalid backfill range")

// SampleWriter is the batch side of the ingest writer.
type SampleWriter interface {
	WriteBatch(ctx context.Context, samples []*domain.RawSample) ingest.BatchResult
}

// Aggregator runs the rollup engine over a range.
type Aggregator interface {
	Run(ctx context.Context, devices []string, start, end time.Time) (*aggregation.RunReport, error)
}

type Options struct {
	Tick      time.Duration
	BatchSize int
	Seed      uint64
}

// Report summarises a backfill run.
type Report struct {
	Ticks          int
	SamplesWritten int
	WriteFailures  int
	Aggregation    *aggregation.RunReport
}

// Simulator generates historical telemetry for a fleet and rolls it up.
type Simulator struct {
	profiles   []domain.DeviceProfile
	generator  *Generator
	writer     SampleWriter
	aggregator Aggregator
	opts       Options
	log        *zap.Logger
}

func NewSimulator(fleet *FleetConfig, writer SampleWriter, aggregator Aggregator, opts Options, log *zap.Logger) (*Simulator, error) {
	if opts.Tick <= 0 {
		opts.Tick = 10 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	generator, err := NewGenerator(fleet.Plugs, fleet.Usage, opts.Seed)
	if err != nil {
		return nil, err
	}

	return &Simulator{
		profiles:   fleet.Plugs,
		generator:  generator,
		writer:     writer,
		aggregator: aggregator,
		opts:       opts,
		log:        log,
	}, nil
}

// Run simulates every tick in [start, end], writes the samples, then
// aggregates every whole UTC day the range touches.
func (s *Simulator) Run(ctx context.Context, start, end time.Time) (*Report, error) {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange, end, start)
	}

	s.log.Info("Starting backfill",
		zap.Int("plugs", len(s.profiles)),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Duration("tick", s.opts.Tick),
	)

	report := &Report{}
	batch := make([]*domain.RawSample, 0, s.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		result := s.writer.WriteBatch(ctx, batch)
		report.SamplesWritten += result.Written
		report.WriteFailures += len(result.Failures)
		batch = batch[:0]
	}

	for ts := start; !ts.After(end); ts = ts.Add(s.opts.Tick) {
		if err := ctx.Err(); err != nil {
			flush()
			return report, err
		}

		for _, p := range s.profiles {
			if !s.generator.Reports(p) {
				continue
			}
			samples, err := s.samplesFor(p, ts, start)
			if err != nil {
				return report, err
			}
			batch = append(batch, samples...)
			if len(batch) >= s.opts.BatchSize {
				flush()
			}
		}

		report.Ticks++
		if report.Ticks%100 == 0 {
			s.log.Info("Backfill progress",
				zap.Int("ticks", report.Ticks),
				zap.Time("at", ts),
				zap.Int("written", report.SamplesWritten+len(batch)),
			)
		}
	}
	flush()

	s.log.Info("Backfill generation complete",
		zap.Int("ticks", report.Ticks),
		zap.Int("written", report.SamplesWritten),
		zap.Int("failed", report.WriteFailures),
	)

	devices := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		devices = append(devices, p.Name)
	}

	aggStart, aggEnd := coveringDays(start, end)
	agg, err := s.aggregator.Run(ctx, devices, aggStart, aggEnd)
	report.Aggregation = agg
	if err != nil {
		return report, fmt.Errorf("aggregate backfill range: %w", err)
	}
	return report, nil
}

func (s *Simulator) samplesFor(p domain.DeviceProfile, ts, start time.Time) ([]*domain.RawSample, error) {
	reading, err := s.generator.Usage(p)
	if err != nil {
		return nil, fmt.Errorf("plug %q: %w", p.Name, err)
	}
	status := s.generator.Status(p, int64(ts.Sub(start).Seconds()))

	return []*domain.RawSample{
		{
			HardwareName: p.Name,
			Measurement:  domain.MeasurementPower,
			Fields: map[string]interface{}{
				domain.FieldPower:   reading.Power,
				domain.FieldVoltage: reading.Voltage,
				domain.FieldCurrent: reading.Current,
			},
			SourceTopic: domain.TelemetryTopic(p.Name, domain.MeasurementPower),
			Timestamp:   ts,
		},
		{
			HardwareName: p.Name,
			Measurement:  domain.MeasurementStatus,
			Fields: map[string]interface{}{
				domain.FieldPower:      status.PowerOn,
				domain.FieldUptime:     status.Uptime,
				domain.FieldWifiRSSI:   status.WifiRSSI,
				domain.FieldWifiSignal: status.WifiSignal,
			},
			SourceTopic: domain.TelemetryTopic(p.Name, domain.MeasurementStatus),
			WifiName:    status.WifiName,
			Timestamp:   ts,
		},
	}, nil
}

// coveringDays widens [start, end] to whole UTC days so the last partial day
// still gets its hourly and daily rollups.
func coveringDays(start, end time.Time) (time.Time, time.Time) {
	first := aggregation.Align(domain.GranularityDay, start)
	last := aggregation.Align(domain.GranularityDay, end)
	if last.Before(end) {
		last = last.Add(24 * time.Hour)
	}
	return first, last
}
