package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	MessagesClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plugwatch_messages_classified_total",
		Help: "Bus messages seen by the classifier, by disposition",
	}, []string{"disposition"})

	SamplesWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plugwatch_samples_written_total",
		Help: "Raw samples written to the store",
	}, []string{"measurement", "status"})

	FanoutPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plugwatch_fanout_published_total",
		Help: "Samples fanned out on the message queue",
	}, []string{"driver", "status"})

	StoreWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plugwatch_store_write_latency_seconds",
		Help:    "Latency of raw sample writes",
		Buckets: prometheus.DefBuckets,
	})

	// Aggregation
	RollupsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plugwatch_rollups_written_total",
		Help: "Rollup windows processed",
	}, []string{"granularity", "status"})

	AggregationRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plugwatch_aggregation_run_seconds",
		Help:    "Duration of aggregation runs",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	// Bus
	CommandsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plugwatch_commands_published_total",
		Help: "Control commands forwarded to the bus",
	}, []string{"status"})

	BusConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plugwatch_bus_connected",
		Help: "1 while the MQTT connection is up",
	})

	BusReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plugwatch_bus_reconnect_attempts_total",
		Help: "Reconnection attempts made by the bus supervisor",
	})
)
