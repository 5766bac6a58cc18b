package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFrom_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: tcp://broker.local:1883
  max_delay: 30s
aggregation:
  boundary_policy: half_open
  concurrency: 8
`)

	cfg, err := LoadFrom(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.MQTT.Broker != "tcp://broker.local:1883" {
		t.Errorf("expected broker from file, got %q", cfg.MQTT.Broker)
	}
	if cfg.MQTT.MaxDelay != 30*time.Second {
		t.Errorf("expected max_delay 30s, got %v", cfg.MQTT.MaxDelay)
	}
	if cfg.MQTT.MinDelay != time.Second {
		t.Errorf("expected default min_delay 1s, got %v", cfg.MQTT.MinDelay)
	}
	if cfg.MQTT.PublishTimeout != 2*time.Second {
		t.Errorf("expected default publish_timeout 2s, got %v", cfg.MQTT.PublishTimeout)
	}
	if cfg.Aggregation.BoundaryPolicy != "half_open" {
		t.Errorf("expected half_open policy, got %q", cfg.Aggregation.BoundaryPolicy)
	}
	if cfg.Aggregation.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Aggregation.Concurrency)
	}
	if cfg.Backfill.Tick != 10*time.Second {
		t.Errorf("expected default tick 10s, got %v", cfg.Backfill.Tick)
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	path := writeConfig(t, "mqtt:\n  broker: tcp://from-file:1883\n")
	t.Setenv("MQTT_BROKER", "tcp://from-env:1883")

	cfg, err := LoadFrom(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://from-env:1883" {
		t.Errorf("expected env override, got %q", cfg.MQTT.Broker)
	}
}

func TestLoadFrom_MissingExplicitFile(t *testing.T) {
	_, err := LoadFrom(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
