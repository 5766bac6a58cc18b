package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
	"github.com/seu-repo/plugwatch/internal/ports"
)

var (
	ErrInvalidWindow = errors.New("invalid aggregation window")
	ErrInvalidRange  = errors.New("invalid aggregation range")
)

type Options struct {
	Policy BoundaryPolicy
	// Concurrency bounds how many devices are aggregated at once.
	Concurrency int
}

// WindowFailure is one window/device pair that could not be aggregated.
type WindowFailure struct {
	HardwareName string             `json:"hardware_name"`
	Granularity  domain.Granularity `json:"granularity"`
	Window       domain.Window      `json:"window"`
	Error        string             `json:"error"`
	Err          error              `json:"-"`
}

// RunReport summarises an aggregation run.
type RunReport struct {
	Devices       int             `json:"devices"`
	HourlyWindows int             `json:"hourly_windows"`
	DailyWindows  int             `json:"daily_windows"`
	Failures      []WindowFailure `json:"failures"`
	Duration      time.Duration   `json:"duration"`

	mu sync.Mutex
}

// Failed returns how many window/device pairs failed.
func (r *RunReport) Failed() int {
	return len(r.Failures)
}

func (r *RunReport) record(g domain.Granularity, f *WindowFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f != nil {
		r.Failures = append(r.Failures, *f)
		return
	}
	if g == domain.GranularityHour {
		r.HourlyWindows++
	} else {
		r.DailyWindows++
	}
}

// Engine computes hourly rollups from raw samples and daily rollups from hourly ones.
type Engine struct {
	samples ports.SampleRepository
	rollups ports.RollupRepository
	opts    Options
	log     *zap.Logger
	tracer  trace.Tracer
}

func NewEngine(samples ports.SampleRepository, rollups ports.RollupRepository, opts Options, log *zap.Logger) *Engine {
	if opts.Policy == "" {
		opts.Policy = BoundaryClosedEnd
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Engine{
		samples: samples,
		rollups: rollups,
		opts:    opts,
		log:     log,
		tracer:  otel.Tracer("github.com/seu-repo/plugwatch/internal/service/aggregation"),
	}
}

// AggregateHour integrates the device's power readings over w and overwrites
// the hourly rollup. An empty window produces a zero rollup.
func (e *Engine) AggregateHour(ctx context.Context, device string, w domain.Window) (*domain.Rollup, error) {
	if w.Duration() != time.Hour {
		return nil, fmt.Errorf("%w: hourly window %s", ErrInvalidWindow, w)
	}

	ctx, span := e.startSpan(ctx, "aggregation.hour", device, w)
	defer span.End()

	readings, err := e.samples.FindPower(ctx, device, w.Start, w.End)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("read power samples: %w", err))
	}

	selected := e.opts.Policy.Select(w, readings)
	rollup := &domain.Rollup{
		Granularity:  domain.GranularityHour,
		HardwareName: device,
		WindowStart:  w.Start,
		WindowEnd:    w.End,
		Value:        Integrate(selected),
	}
	span.SetAttributes(attribute.Int("samples", len(selected)), attribute.Float64("value", rollup.Value))

	if err := e.rollups.Upsert(ctx, rollup); err != nil {
		return nil, spanError(span, fmt.Errorf("write hourly rollup: %w", err))
	}
	return rollup, nil
}

// AggregateDay sums the device's hourly rollups inside w and overwrites the
// daily rollup. A day without hourly data produces a zero rollup.
func (e *Engine) AggregateDay(ctx context.Context, device string, w domain.Window) (*domain.Rollup, error) {
	if w.Duration() != 24*time.Hour {
		return nil, fmt.Errorf("%w: daily window %s", ErrInvalidWindow, w)
	}

	ctx, span := e.startSpan(ctx, "aggregation.day", device, w)
	defer span.End()

	hourly, err := e.rollups.FindRange(ctx, domain.GranularityHour, device, w.Start, w.End)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("read hourly rollups: %w", err))
	}

	var total float64
	for _, h := range hourly {
		total += h.Value
	}

	rollup := &domain.Rollup{
		Granularity:  domain.GranularityDay,
		HardwareName: device,
		WindowStart:  w.Start,
		WindowEnd:    w.End,
		Value:        total,
	}
	span.SetAttributes(attribute.Int("hours", len(hourly)), attribute.Float64("value", total))

	if err := e.rollups.Upsert(ctx, rollup); err != nil {
		return nil, spanError(span, fmt.Errorf("write daily rollup: %w", err))
	}
	return rollup, nil
}

// Run aggregates every device over [start, end): all hourly windows first,
// then, once every device has finished its hourly pass, all daily windows.
// Window failures are reported, not returned. The error is non-nil only for
// an invalid range or a cancelled context.
func (e *Engine) Run(ctx context.Context, devices []string, start, end time.Time) (*RunReport, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange, end, start)
	}

	began := time.Now()
	report := &RunReport{Devices: len(devices)}
	defer func() {
		report.Duration = time.Since(began)
		telemetry.AggregationRunDuration.Observe(report.Duration.Seconds())
	}()

	e.log.Info("Starting aggregation run",
		zap.Int("devices", len(devices)),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	for _, g := range []domain.Granularity{domain.GranularityHour, domain.GranularityDay} {
		if err := e.runPhase(ctx, g, devices, start, end, report); err != nil {
			e.log.Warn("Aggregation run cancelled",
				zap.String("granularity", string(g)),
				zap.Int("failed", report.Failed()),
			)
			return report, err
		}
		e.log.Info("Aggregation phase complete",
			zap.String("granularity", string(g)),
			zap.Int("hourly_windows", report.HourlyWindows),
			zap.Int("daily_windows", report.DailyWindows),
		)
	}

	if report.Failed() > 0 {
		e.log.Warn("Aggregation run finished with failures", zap.Int("failed", report.Failed()))
	}
	return report, nil
}

func (e *Engine) runPhase(ctx context.Context, g domain.Granularity, devices []string, start, end time.Time, report *RunReport) error {
	windows, err := Ascending(g, start, end)
	if err != nil {
		return err
	}

	aggregate := e.AggregateHour
	if g == domain.GranularityDay {
		aggregate = e.AggregateDay
	}

	var group errgroup.Group
	group.SetLimit(e.opts.Concurrency)

	for _, device := range devices {
		group.Go(func() error {
			for w := range windows {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := aggregate(ctx, device, w); err != nil {
					telemetry.RollupsWrittenTotal.WithLabelValues(string(g), "error").Inc()
					e.log.Error("Failed to aggregate window",
						zap.String("hardware_name", device),
						zap.String("granularity", string(g)),
						zap.Stringer("window", w),
						zap.Error(err),
					)
					report.record(g, &WindowFailure{
						HardwareName: device,
						Granularity:  g,
						Window:       w,
						Error:        err.Error(),
						Err:          err,
					})
					continue
				}
				telemetry.RollupsWrittenTotal.WithLabelValues(string(g), "ok").Inc()
				report.record(g, nil)
			}
			return nil
		})
	}

	return group.Wait()
}

func (e *Engine) startSpan(ctx context.Context, name, device string, w domain.Window) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("hardware_name", device),
		attribute.String("window_start", w.Start.Format(time.RFC3339)),
		attribute.String("window_end", w.End.Format(time.RFC3339)),
	))
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
