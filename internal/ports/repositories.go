package ports

import (
	"context"
	"time"

	"github.com/seu-repo/plugwatch/internal/domain"
)

// SampleRepository is the raw time-series store.
type SampleRepository interface {
	Append(ctx context.Context, sample *domain.RawSample) error
	AppendBatch(ctx context.Context, samples []*domain.RawSample) error
	// FindPower returns power readings for a device with start <= ts <= end,
	// ordered by timestamp. Callers apply their own boundary policy.
	FindPower(ctx context.Context, hardwareName string, start, end time.Time) ([]domain.PowerReading, error)
	// Devices returns the distinct hardware names with samples in [start, end).
	Devices(ctx context.Context, start, end time.Time) ([]string, error)
	Ping(ctx context.Context) error
}

// RollupRepository stores hourly and daily aggregates. Upsert overwrites.
type RollupRepository interface {
	Upsert(ctx context.Context, rollup *domain.Rollup) error
	// FindRange returns rollups whose window lies inside [start, end), ordered by window start.
	FindRange(ctx context.Context, granularity domain.Granularity, hardwareName string, start, end time.Time) ([]domain.Rollup, error)
}
