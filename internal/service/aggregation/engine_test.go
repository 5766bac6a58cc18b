package aggregation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/adapter/storage/memory"
	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/mocks"
)

func appendPower(t *testing.T, store *memory.SampleStore, hw string, ts time.Time, watts float64) {
	t.Helper()
	err := store.Append(context.Background(), &domain.RawSample{
		HardwareName: hw,
		Measurement:  domain.MeasurementPower,
		Timestamp:    ts,
		Fields:       map[string]interface{}{domain.FieldPower: watts},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func newTestEngine(policy BoundaryPolicy) (*Engine, *memory.SampleStore, *memory.RollupStore) {
	samples := memory.NewSampleStore()
	rollups := memory.NewRollupStore()
	return NewEngine(samples, rollups, Options{Policy: policy, Concurrency: 4}, zap.NewNop()), samples, rollups
}

func hour(offset int) domain.Window {
	start := t0.Add(time.Duration(offset) * time.Hour)
	return domain.Window{Start: start, End: start.Add(time.Hour)}
}

func TestAggregateHour_ConstantPower(t *testing.T) {
	engine, samples, rollups := newTestEngine(BoundaryClosedEnd)
	appendPower(t, samples, "plug", t0, 100)
	appendPower(t, samples, "plug", t0.Add(time.Hour), 100)

	rollup, err := engine.AggregateHour(context.Background(), "plug", hour(0))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if math.Abs(rollup.Value-100) > 1e-6 {
		t.Errorf("expected 100 Wh, got %v", rollup.Value)
	}

	stored, _ := rollups.FindRange(context.Background(), domain.GranularityHour, "plug", t0, t0.Add(time.Hour))
	if len(stored) != 1 || stored[0].Value != rollup.Value {
		t.Errorf("expected stored rollup, got %+v", stored)
	}
}

func TestAggregateHour_HalfOpenDropsEndSample(t *testing.T) {
	engine, samples, _ := newTestEngine(BoundaryHalfOpen)
	appendPower(t, samples, "plug", t0, 100)
	appendPower(t, samples, "plug", t0.Add(time.Hour), 100)

	rollup, err := engine.AggregateHour(context.Background(), "plug", hour(0))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rollup.Value != 0 {
		t.Errorf("expected 0 Wh with only the anchor inside [start, end), got %v", rollup.Value)
	}
}

func TestAggregateHour_EmptyWindowWritesZero(t *testing.T) {
	engine, _, rollups := newTestEngine(BoundaryClosedEnd)

	rollup, err := engine.AggregateHour(context.Background(), "quiet", hour(0))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rollup.Value != 0 {
		t.Errorf("expected 0, got %v", rollup.Value)
	}
	if rollups.Len() != 1 {
		t.Errorf("expected an explicit zero rollup, got %d rollups", rollups.Len())
	}
}

func TestAggregateHour_InvalidWindow(t *testing.T) {
	engine, _, _ := newTestEngine(BoundaryClosedEnd)

	_, err := engine.AggregateHour(context.Background(), "plug", domain.Window{Start: t0, End: t0.Add(2 * time.Hour)})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestAggregateHour_Idempotent(t *testing.T) {
	engine, samples, rollups := newTestEngine(BoundaryClosedEnd)
	for i := 0; i <= 6; i++ {
		appendPower(t, samples, "plug", t0.Add(time.Duration(i)*10*time.Minute), float64(10*i))
	}

	first, _ := engine.AggregateHour(context.Background(), "plug", hour(0))
	second, _ := engine.AggregateHour(context.Background(), "plug", hour(0))

	if first.Value != second.Value {
		t.Errorf("expected identical values, got %v and %v", first.Value, second.Value)
	}
	if rollups.Len() != 1 {
		t.Errorf("expected overwrite, got %d rollups", rollups.Len())
	}
}

func TestAggregateDay_SumsHourly(t *testing.T) {
	engine, _, rollups := newTestEngine(BoundaryClosedEnd)
	ctx := context.Background()
	day := Align(domain.GranularityDay, t0)

	for h := 0; h < 24; h++ {
		value := 0.0
		if h == 0 {
			value = 10
		}
		start := day.Add(time.Duration(h) * time.Hour)
		_ = rollups.Upsert(ctx, &domain.Rollup{
			Granularity:  domain.GranularityHour,
			HardwareName: "plug",
			WindowStart:  start,
			WindowEnd:    start.Add(time.Hour),
			Value:        value,
		})
	}

	rollup, err := engine.AggregateDay(ctx, "plug", domain.Window{Start: day, End: day.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rollup.Value != 10 {
		t.Errorf("expected 10, got %v", rollup.Value)
	}
}

func TestAggregateDay_NoHourlyDataWritesZero(t *testing.T) {
	engine, _, _ := newTestEngine(BoundaryClosedEnd)
	day := Align(domain.GranularityDay, t0)

	rollup, err := engine.AggregateDay(context.Background(), "plug", domain.Window{Start: day, End: day.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rollup.Value != 0 {
		t.Errorf("expected 0, got %v", rollup.Value)
	}
}

func TestRun_DailyEqualsSumOfHourly(t *testing.T) {
	engine, samples, rollups := newTestEngine(BoundaryClosedEnd)
	ctx := context.Background()
	day := Align(domain.GranularityDay, t0)

	for ts := day; ts.Before(day.Add(24 * time.Hour)); ts = ts.Add(7 * time.Minute) {
		appendPower(t, samples, "plug-a", ts, 60)
		appendPower(t, samples, "plug-b", ts, 15)
	}

	report, err := engine.Run(ctx, []string{"plug-a", "plug-b"}, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.HourlyWindows != 48 || report.DailyWindows != 2 || report.Failed() != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	for _, hw := range []string{"plug-a", "plug-b"} {
		hourly, _ := rollups.FindRange(ctx, domain.GranularityHour, hw, day, day.Add(24*time.Hour))
		if len(hourly) != 24 {
			t.Fatalf("%s: expected 24 hourly rollups, got %d", hw, len(hourly))
		}
		var sum float64
		for _, h := range hourly {
			sum += h.Value
		}
		daily, _ := rollups.FindRange(ctx, domain.GranularityDay, hw, day, day.Add(24*time.Hour))
		if len(daily) != 1 || math.Abs(daily[0].Value-sum) > 1e-9 {
			t.Errorf("%s: expected daily %v, got %+v", hw, sum, daily)
		}
	}
}

func TestRun_IdempotentRerun(t *testing.T) {
	engine, samples, rollups := newTestEngine(BoundaryClosedEnd)
	ctx := context.Background()
	for i := 0; i < 40; i++ {
		appendPower(t, samples, "plug", t0.Add(time.Duration(i)*5*time.Minute), float64(i))
	}

	if _, err := engine.Run(ctx, []string{"plug"}, t0, t0.Add(3*time.Hour)); err != nil {
		t.Fatal(err)
	}
	before, _ := rollups.FindRange(ctx, domain.GranularityHour, "plug", t0, t0.Add(3*time.Hour))
	count := rollups.Len()

	if _, err := engine.Run(ctx, []string{"plug"}, t0, t0.Add(3*time.Hour)); err != nil {
		t.Fatal(err)
	}
	after, _ := rollups.FindRange(ctx, domain.GranularityHour, "plug", t0, t0.Add(3*time.Hour))

	if rollups.Len() != count {
		t.Errorf("expected %d rollups after rerun, got %d", count, rollups.Len())
	}
	for i := range before {
		if before[i].Value != after[i].Value {
			t.Errorf("window %s changed from %v to %v", before[i].Window(), before[i].Value, after[i].Value)
		}
	}
}

// failingRollups wraps a store and fails every write for one device.
type failingRollups struct {
	*memory.RollupStore
	device string

	mu    sync.Mutex
	order []domain.Granularity
}

func (f *failingRollups) Upsert(ctx context.Context, r *domain.Rollup) error {
	f.mu.Lock()
	f.order = append(f.order, r.Granularity)
	f.mu.Unlock()
	if r.HardwareName == f.device {
		return errors.New("disk full")
	}
	return f.RollupStore.Upsert(ctx, r)
}

func TestRun_FailureIsolation(t *testing.T) {
	samples := memory.NewSampleStore()
	rollups := &failingRollups{RollupStore: memory.NewRollupStore(), device: "bad"}
	engine := NewEngine(samples, rollups, Options{Concurrency: 2}, zap.NewNop())

	day := Align(domain.GranularityDay, t0)
	report, err := engine.Run(context.Background(), []string{"good", "bad"}, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("window failures must not fail the run, got %v", err)
	}

	if report.Failed() != 25 {
		t.Errorf("expected 24 hourly + 1 daily failures, got %d", report.Failed())
	}
	for _, f := range report.Failures {
		if f.HardwareName != "bad" {
			t.Errorf("unexpected failure for %s", f.HardwareName)
		}
	}
	if report.HourlyWindows != 24 || report.DailyWindows != 1 {
		t.Errorf("expected the good device to complete, got %+v", report)
	}
}

func TestRun_HourlyPhaseCompletesBeforeDaily(t *testing.T) {
	samples := memory.NewSampleStore()
	rollups := &failingRollups{RollupStore: memory.NewRollupStore()}
	engine := NewEngine(samples, rollups, Options{Concurrency: 8}, zap.NewNop())

	day := Align(domain.GranularityDay, t0)
	devices := []string{"a", "b", "c", "d", "e"}
	if _, err := engine.Run(context.Background(), devices, day.AddDate(0, 0, -2), day); err != nil {
		t.Fatal(err)
	}

	seenDaily := false
	for _, g := range rollups.order {
		if g == domain.GranularityDay {
			seenDaily = true
		} else if seenDaily {
			t.Fatal("hourly rollup written after the daily phase started")
		}
	}
	if !seenDaily {
		t.Fatal("expected daily rollups")
	}
}

func TestRun_InvalidRange(t *testing.T) {
	engine, _, _ := newTestEngine(BoundaryClosedEnd)
	if _, err := engine.Run(context.Background(), []string{"plug"}, t0, t0); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	engine, _, rollups := newTestEngine(BoundaryClosedEnd)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, []string{"plug"}, t0, t0.Add(48*time.Hour))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rollups.Len() != 0 {
		t.Errorf("expected no rollups after cancellation, got %d", rollups.Len())
	}
}

func TestAggregateHour_RollupWriteFailure(t *testing.T) {
	w := hour(0)
	errDiskFull := errors.New("disk full")

	samples := &mocks.MockSampleRepository{
		FindPowerFunc: func(ctx context.Context, hw string, start, end time.Time) ([]domain.PowerReading, error) {
			return []domain.PowerReading{
				{Timestamp: start, Watts: 100},
				{Timestamp: end, Watts: 100},
			}, nil
		},
	}
	var attempted *domain.Rollup
	rollups := &mocks.MockRollupRepository{
		UpsertFunc: func(ctx context.Context, r *domain.Rollup) error {
			attempted = r
			return errDiskFull
		},
	}
	engine := NewEngine(samples, rollups, Options{}, zap.NewNop())

	rollup, err := engine.AggregateHour(context.Background(), "plug", w)
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
	if rollup != nil {
		t.Errorf("expected no rollup on failure, got %+v", rollup)
	}
	if attempted == nil || math.Abs(attempted.Value-100) > 1e-6 {
		t.Errorf("expected an attempted upsert of 100 Wh, got %+v", attempted)
	}
}

func TestAggregateDay_ReadFailure(t *testing.T) {
	day := Align(domain.GranularityDay, t0)
	errUnavailable := errors.New("store unavailable")
	upserts := 0

	rollups := &mocks.MockRollupRepository{
		FindRangeFunc: func(ctx context.Context, g domain.Granularity, hw string, start, end time.Time) ([]domain.Rollup, error) {
			return nil, errUnavailable
		},
		UpsertFunc: func(ctx context.Context, r *domain.Rollup) error {
			upserts++
			return nil
		},
	}
	engine := NewEngine(&mocks.MockSampleRepository{}, rollups, Options{}, zap.NewNop())

	if _, err := engine.AggregateDay(context.Background(), "plug", domain.Window{Start: day, End: day.Add(24 * time.Hour)}); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
	if upserts != 0 {
		t.Errorf("a failed read must not write a daily rollup, got %d upserts", upserts)
	}
}
