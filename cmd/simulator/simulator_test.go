package main

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/mocks"
	"github.com/seu-repo/plugwatch/internal/service/backfill"
	"github.com/seu-repo/plugwatch/internal/service/ingest"
)

func testFleet() *backfill.FleetConfig {
	never := 0
	return &backfill.FleetConfig{
		Plugs: []domain.DeviceProfile{
			{Name: "kettle", NetworkName: "home", Usage: domain.UsageHigh},
			{Name: "offline", NetworkName: "home", Usage: domain.UsageLow, Reliability: &never},
		},
		Usage: domain.UsageTable{
			domain.UsageHigh: {WattageMin: 1500, WattageMax: 2000, CurrentMin: 6, CurrentMax: 8},
			domain.UsageLow:  {WattageMin: 10, WattageMax: 50, CurrentMin: 0.1, CurrentMax: 0.5},
		},
	}
}

func TestPublishRound_PayloadsClassifyAsAccepted(t *testing.T) {
	bus := &mocks.MockCommandBus{}
	sim, err := NewSimulator(testFleet(), bus, time.Second, time.Second, 42, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := sim.PublishRound(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := bus.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected STATE and SENSOR for the reporting plug only, got %d publishes", len(calls))
	}
	if calls[0].Topic != "tele/kettle/STATE" || calls[1].Topic != "tele/kettle/SENSOR" {
		t.Errorf("unexpected topics %s, %s", calls[0].Topic, calls[1].Topic)
	}

	classifier := ingest.NewClassifier(zap.NewNop())
	now := time.Now()

	state := classifier.Classify(domain.BusMessage{Topic: calls[0].Topic, Payload: calls[0].Payload, ReceivedAt: now})
	if state.Disposition != ingest.DispositionAccepted {
		t.Fatalf("STATE payload not accepted: %s (%s)", state.Disposition, state.Reason)
	}
	if on, _ := state.Sample.Bool(domain.FieldPower); !on {
		t.Error("expected power ON")
	}
	if state.Sample.WifiName != "home" {
		t.Errorf("expected wifi name home, got %q", state.Sample.WifiName)
	}

	sensor := classifier.Classify(domain.BusMessage{Topic: calls[1].Topic, Payload: calls[1].Payload, ReceivedAt: now})
	if sensor.Disposition != ingest.DispositionAccepted {
		t.Fatalf("SENSOR payload not accepted: %s (%s)", sensor.Disposition, sensor.Reason)
	}
	power, _ := sensor.Sample.Float(domain.FieldPower)
	if power < 1500 || power > 2000 {
		t.Errorf("power %v outside HIGH range", power)
	}
	if calls[1].Timeout != time.Second {
		t.Errorf("expected publish timeout to be passed through, got %s", calls[1].Timeout)
	}
}

func TestPublishRound_DisconnectedBusIsNotFatal(t *testing.T) {
	bus := &mocks.MockCommandBus{
		PublishFunc: func(context.Context, string, []byte, time.Duration) error { return domain.ErrNotConnected },
	}
	sim, err := NewSimulator(testFleet(), bus, time.Second, time.Second, 1, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.PublishRound(context.Background()); err != nil {
		t.Errorf("bus failures must not stop the simulator, got %v", err)
	}
}

func TestPayloads_NonFiniteReadingFailsToEncode(t *testing.T) {
	_, _, err := payloads(time.Now(), backfill.Reading{Power: math.Inf(1), Voltage: 230}, backfill.StatusReading{PowerOn: true})
	if err == nil {
		t.Fatal("expected an encoding error for an infinite power reading")
	}
}

func TestPublishRound_EncodingFailureSkipsPlug(t *testing.T) {
	fleet := &backfill.FleetConfig{
		Plugs: []domain.DeviceProfile{
			{Name: "broken", NetworkName: "home", Usage: domain.UsageHigh},
			{Name: "lamp", NetworkName: "home", Usage: domain.UsageLow},
		},
		Usage: domain.UsageTable{
			domain.UsageHigh: {WattageMin: 1500, WattageMax: math.Inf(1), CurrentMin: 6, CurrentMax: 8},
			domain.UsageLow:  {WattageMin: 10, WattageMax: 50, CurrentMin: 0.1, CurrentMax: 0.5},
		},
	}
	bus := &mocks.MockCommandBus{}
	sim, err := NewSimulator(fleet, bus, time.Second, time.Second, 7, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if err := sim.PublishRound(context.Background()); err != nil {
		t.Fatalf("encoding failures must not stop the round, got %v", err)
	}

	calls := bus.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected only the healthy plug to publish, got %d publishes", len(calls))
	}
	for _, c := range calls {
		if c.Topic != "tele/lamp/STATE" && c.Topic != "tele/lamp/SENSOR" {
			t.Errorf("unexpected publish on %s", c.Topic)
		}
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	sim, err := NewSimulator(testFleet(), &mocks.MockCommandBus{}, 10*time.Millisecond, time.Second, 1, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
