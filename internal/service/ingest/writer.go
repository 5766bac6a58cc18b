package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/adapter/queue"
	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
	"github.com/seu-repo/plugwatch/internal/ports"
)

// SampleFailure records a sample that could not be written.
type SampleFailure struct {
	Sample *domain.RawSample
	Err    error
}

// BatchResult reports per-sample outcomes of WriteBatch.
type BatchResult struct {
	Written  int
	Failures []SampleFailure
}

// WriterOptions wires the optional side channels of the writer.
type WriterOptions struct {
	// Cache receives the latest sample per device and measurement. May be nil.
	Cache    ports.Cache
	CacheTTL time.Duration
	// Queue fans samples out on <SubjectPrefix>.<measurement>. May be nil.
	Queue         queue.MessageQueue
	SubjectPrefix string
}

// Writer appends normalized samples to the raw store.
type Writer struct {
	repo ports.SampleRepository
	opts WriterOptions
	log  *zap.Logger
}

func NewWriter(repo ports.SampleRepository, opts WriterOptions, log *zap.Logger) *Writer {
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = "telemetry"
	}
	return &Writer{
		repo: repo,
		opts: opts,
		log:  log,
	}
}

// Write stores one sample. The returned error reflects the store write only.
func (w *Writer) Write(ctx context.Context, sample *domain.RawSample) error {
	start := time.Now()
	err := w.repo.Append(ctx, sample)
	telemetry.StoreWriteLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.SamplesWrittenTotal.WithLabelValues(string(sample.Measurement), "error").Inc()
		return fmt.Errorf("write %s sample for %s: %w", sample.Measurement, sample.HardwareName, err)
	}

	telemetry.SamplesWrittenTotal.WithLabelValues(string(sample.Measurement), "ok").Inc()
	w.publish(ctx, sample)
	return nil
}

// WriteBatch stores samples in one round trip. If the batch insert fails it
// falls back to one insert per sample so a single bad row cannot block the rest.
func (w *Writer) WriteBatch(ctx context.Context, samples []*domain.RawSample) BatchResult {
	if len(samples) == 0 {
		return BatchResult{}
	}

	start := time.Now()
	err := w.repo.AppendBatch(ctx, samples)
	telemetry.StoreWriteLatency.Observe(time.Since(start).Seconds())

	if err == nil {
		for _, s := range samples {
			telemetry.SamplesWrittenTotal.WithLabelValues(string(s.Measurement), "ok").Inc()
			w.publish(ctx, s)
		}
		return BatchResult{Written: len(samples)}
	}

	w.log.Warn("Batch write failed, retrying samples individually",
		zap.Int("size", len(samples)),
		zap.Error(err),
	)

	var result BatchResult
	for _, s := range samples {
		if err := w.Write(ctx, s); err != nil {
			w.log.Error("Sample write failed",
				zap.String("hardware_name", s.HardwareName),
				zap.String("measurement", string(s.Measurement)),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, SampleFailure{Sample: s, Err: err})
			continue
		}
		result.Written++
	}
	return result
}

// publish updates the latest-reading cache and the fan-out subject. Both are best effort.
func (w *Writer) publish(ctx context.Context, sample *domain.RawSample) {
	if w.opts.Cache == nil && w.opts.Queue == nil {
		return
	}

	data, err := json.Marshal(sample)
	if err != nil {
		w.log.Error("Failed to marshal sample", zap.Error(err))
		return
	}

	if w.opts.Cache != nil {
		if err := w.opts.Cache.Set(ctx, LatestKey(sample.HardwareName, sample.Measurement), data, w.opts.CacheTTL); err != nil {
			w.log.Warn("Failed to cache latest reading",
				zap.String("hardware_name", sample.HardwareName),
				zap.Error(err),
			)
		}
	}

	if w.opts.Queue != nil {
		subject := w.opts.SubjectPrefix + "." + string(sample.Measurement)
		if err := w.opts.Queue.Publish(subject, data); err != nil {
			w.log.Warn("Failed to fan out sample", zap.String("subject", subject), zap.Error(err))
		}
	}
}

// LatestKey is the cache key holding the most recent sample of a device.
func LatestKey(hardwareName string, measurement domain.Measurement) string {
	return "device:" + hardwareName + ":" + string(measurement)
}
