package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads config.yaml and APP_* environment overrides.
func Load() (*Config, error) {
	return LoadFrom(viper.New(), "")
}

// LoadFrom loads configuration into v (a fresh instance when nil). An explicit
// path bypasses the search paths.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath("/app/configs")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker deploys
	v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	v.BindEnv("mqtt.broker", "MQTT_BROKER", "APP_MQTT_BROKER")
	v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	v.BindEnv("queue.url", "NATS_URL", "APP_QUEUE_URL")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "plugwatch")
	v.SetDefault("app.version", "v1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 3000)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("mqtt.broker", "tcp://mqtt:1883")
	v.SetDefault("mqtt.topics", []string{"tele/#"})
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.keep_alive", 60*time.Second)
	v.SetDefault("mqtt.connect_timeout", 5*time.Second)
	v.SetDefault("mqtt.publish_timeout", 2*time.Second)
	v.SetDefault("mqtt.min_delay", time.Second)
	v.SetDefault("mqtt.max_delay", 120*time.Second)
	v.SetDefault("mqtt.inbound_buffer", 1024)

	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("queue.subject_prefix", "telemetry")

	v.SetDefault("aggregation.enabled", true)
	v.SetDefault("aggregation.interval", 5*time.Minute)
	v.SetDefault("aggregation.hourly_lookback", 3*time.Hour)
	v.SetDefault("aggregation.concurrency", 4)
	v.SetDefault("aggregation.boundary_policy", "closed_end")

	v.SetDefault("backfill.profiles_file", "backfill.yaml")
	v.SetDefault("backfill.tick", 10*time.Second)
	v.SetDefault("backfill.batch_size", 500)

	v.SetDefault("opentelemetry.service_name", "plugwatch")
	v.SetDefault("opentelemetry.endpoint", "http://jaeger:14268/api/traces")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.failure_threshold", 0.6)

	v.SetDefault("cache.latest_reading_ttl", 6*time.Hour)
	v.SetDefault("cache.cleanup_interval", time.Minute)
}
