// Package memory provides in-process raw and rollup stores for development
// runs and tests. Semantics match the postgres adapter: append-only samples,
// last-write-wins rollups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/ports"
)

type SampleStore struct {
	mu      sync.RWMutex
	samples map[string][]domain.RawSample // hardware name -> samples in insertion order
}

func NewSampleStore() *SampleStore {
	return &SampleStore{samples: make(map[string][]domain.RawSample)}
}

var _ ports.SampleRepository = (*SampleStore)(nil)

func (s *SampleStore) Append(ctx context.Context, sample *domain.RawSample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[sample.HardwareName] = append(s.samples[sample.HardwareName], copySample(sample))
	return nil
}

func (s *SampleStore) AppendBatch(ctx context.Context, samples []*domain.RawSample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		s.samples[sample.HardwareName] = append(s.samples[sample.HardwareName], copySample(sample))
	}
	return nil
}

func (s *SampleStore) FindPower(ctx context.Context, hardwareName string, start, end time.Time) ([]domain.PowerReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PowerReading
	for i := range s.samples[hardwareName] {
		sample := &s.samples[hardwareName][i]
		if sample.Measurement != domain.MeasurementPower {
			continue
		}
		if sample.Timestamp.Before(start) || sample.Timestamp.After(end) {
			continue
		}
		watts, ok := sample.Float(domain.FieldPower)
		if !ok {
			continue
		}
		out = append(out, domain.PowerReading{Timestamp: sample.Timestamp, Watts: watts})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *SampleStore) Devices(ctx context.Context, start, end time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name, samples := range s.samples {
		for i := range samples {
			ts := samples[i].Timestamp
			if !ts.Before(start) && ts.Before(end) {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Samples returns a copy of everything stored for a device.
func (s *SampleStore) Samples(hardwareName string) []domain.RawSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RawSample, len(s.samples[hardwareName]))
	copy(out, s.samples[hardwareName])
	return out
}

// Count returns the number of stored samples across all devices.
func (s *SampleStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, samples := range s.samples {
		n += len(samples)
	}
	return n
}

func (s *SampleStore) Ping(ctx context.Context) error {
	return nil
}

func copySample(sample *domain.RawSample) domain.RawSample {
	out := *sample
	out.Fields = make(map[string]interface{}, len(sample.Fields))
	for k, v := range sample.Fields {
		out.Fields[k] = v
	}
	return out
}

type rollupKey struct {
	granularity  domain.Granularity
	hardwareName string
	windowStart  int64
}

type RollupStore struct {
	mu      sync.RWMutex
	rollups map[rollupKey]domain.Rollup
}

func NewRollupStore() *RollupStore {
	return &RollupStore{rollups: make(map[rollupKey]domain.Rollup)}
}

var _ ports.RollupRepository = (*RollupStore)(nil)

func (s *RollupStore) Upsert(ctx context.Context, rollup *domain.Rollup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rollupKey{rollup.Granularity, rollup.HardwareName, rollup.WindowStart.Unix()}
	s.rollups[key] = *rollup
	return nil
}

func (s *RollupStore) FindRange(ctx context.Context, granularity domain.Granularity, hardwareName string, start, end time.Time) ([]domain.Rollup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	bounds := domain.Window{Start: start, End: end}
	var out []domain.Rollup
	for key, r := range s.rollups {
		if key.granularity != granularity || key.hardwareName != hardwareName {
			continue
		}
		if bounds.Contains(r.Window()) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.Before(out[j].WindowStart)
	})
	return out, nil
}

// Len returns the number of stored rollups.
func (s *RollupStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rollups)
}
