package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/ports"
	"github.com/seu-repo/plugwatch/internal/service/backfill"
)

// Tasmota-style timestamps carry no zone.
const tasmotaTime = "2006-01-02T15:04:05"

type energyBlock struct {
	Power   float64 `json:"Power"`
	Voltage float64 `json:"Voltage"`
	Current float64 `json:"Current"`
}

type sensorMessage struct {
	Time   string      `json:"Time"`
	Energy energyBlock `json:"ENERGY"`
}

type wifiBlock struct {
	SSId   string `json:"SSId"`
	RSSI   int64  `json:"RSSI"`
	Signal int64  `json:"Signal"`
}

type stateMessage struct {
	Time      string    `json:"Time"`
	Power     string    `json:"POWER"`
	UptimeSec int64     `json:"UptimeSec"`
	Wifi      wifiBlock `json:"Wifi"`
}

// Simulator publishes live SENSOR and STATE reports for a mock plug fleet.
type Simulator struct {
	fleet     *backfill.FleetConfig
	generator *backfill.Generator
	bus       ports.CommandBus
	interval  time.Duration
	timeout   time.Duration
	started   time.Time
	now       func() time.Time
	log       *zap.Logger
}

func NewSimulator(fleet *backfill.FleetConfig, bus ports.CommandBus, interval, timeout time.Duration, seed uint64, log *zap.Logger) (*Simulator, error) {
	generator, err := backfill.NewGenerator(fleet.Plugs, fleet.Usage, seed)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Simulator{
		fleet:     fleet,
		generator: generator,
		bus:       bus,
		interval:  interval,
		timeout:   timeout,
		started:   time.Now(),
		now:       time.Now,
		log:       log,
	}, nil
}

// Run publishes one round per interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.PublishRound(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PublishRound publishes STATE then SENSOR for every plug that reports this
// round. Bus and encoding failures are logged and skipped; configuration
// errors are returned.
func (s *Simulator) PublishRound(ctx context.Context) error {
	now := s.now()
	for _, p := range s.fleet.Plugs {
		if !s.generator.Reports(p) {
			s.log.Info("Plug skipped this round", zap.String("plug", p.Name))
			continue
		}

		reading, err := s.generator.Usage(p)
		if err != nil {
			return fmt.Errorf("plug %q: %w", p.Name, err)
		}
		status := s.generator.Status(p, int64(now.Sub(s.started).Seconds()))

		state, sensor, err := payloads(now, reading, status)
		if err != nil {
			s.log.Error("Failed to encode report", zap.String("plug", p.Name), zap.Error(err))
			continue
		}
		s.publish(ctx, domain.TelemetryTopic(p.Name, domain.MeasurementStatus), state)
		s.publish(ctx, domain.TelemetryTopic(p.Name, domain.MeasurementPower), sensor)
	}
	return nil
}

func (s *Simulator) publish(ctx context.Context, topic string, payload []byte) {
	err := s.bus.Publish(ctx, topic, payload, s.timeout)
	switch {
	case err == nil:
		s.log.Debug("Published", zap.String("topic", topic))
	case errors.Is(err, domain.ErrNotConnected):
		s.log.Warn("Bus disconnected, report dropped", zap.String("topic", topic))
	default:
		s.log.Error("Publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func payloads(now time.Time, reading backfill.Reading, status backfill.StatusReading) ([]byte, []byte, error) {
	ts := now.Format(tasmotaTime)

	power := "OFF"
	if status.PowerOn {
		power = "ON"
	}
	state, err := json.Marshal(stateMessage{
		Time:      ts,
		Power:     power,
		UptimeSec: status.Uptime,
		Wifi: wifiBlock{
			SSId:   status.WifiName,
			RSSI:   status.WifiRSSI,
			Signal: status.WifiSignal,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode STATE: %w", err)
	}
	sensor, err := json.Marshal(sensorMessage{
		Time: ts,
		Energy: energyBlock{
			Power:   reading.Power,
			Voltage: reading.Voltage,
			Current: reading.Current,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode SENSOR: %w", err)
	}
	return state, sensor, nil
}
