package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/seu-repo/plugwatch/internal/domain"
)

// MockSampleRepository is a mock implementation of SampleRepository
type MockSampleRepository struct {
	mu       sync.Mutex
	Appended []*domain.RawSample

	AppendFunc      func(ctx context.Context, sample *domain.RawSample) error
	AppendBatchFunc func(ctx context.Context, samples []*domain.RawSample) error
	FindPowerFunc   func(ctx context.Context, hardwareName string, start, end time.Time) ([]domain.PowerReading, error)
	DevicesFunc     func(ctx context.Context, start, end time.Time) ([]string, error)
	PingFunc        func(ctx context.Context) error
}

func (m *MockSampleRepository) Append(ctx context.Context, sample *domain.RawSample) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, sample); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appended = append(m.Appended, sample)
	return nil
}

func (m *MockSampleRepository) AppendBatch(ctx context.Context, samples []*domain.RawSample) error {
	if m.AppendBatchFunc != nil {
		if err := m.AppendBatchFunc(ctx, samples); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appended = append(m.Appended, samples...)
	return nil
}

func (m *MockSampleRepository) FindPower(ctx context.Context, hardwareName string, start, end time.Time) ([]domain.PowerReading, error) {
	if m.FindPowerFunc != nil {
		return m.FindPowerFunc(ctx, hardwareName, start, end)
	}
	return nil, nil
}

func (m *MockSampleRepository) Devices(ctx context.Context, start, end time.Time) ([]string, error) {
	if m.DevicesFunc != nil {
		return m.DevicesFunc(ctx, start, end)
	}
	return nil, nil
}

func (m *MockSampleRepository) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Count returns how many samples were stored.
func (m *MockSampleRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Appended)
}

// MockRollupRepository is a mock implementation of RollupRepository
type MockRollupRepository struct {
	UpsertFunc    func(ctx context.Context, rollup *domain.Rollup) error
	FindRangeFunc func(ctx context.Context, granularity domain.Granularity, hardwareName string, start, end time.Time) ([]domain.Rollup, error)
}

func (m *MockRollupRepository) Upsert(ctx context.Context, rollup *domain.Rollup) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rollup)
	}
	return nil
}

func (m *MockRollupRepository) FindRange(ctx context.Context, granularity domain.Granularity, hardwareName string, start, end time.Time) ([]domain.Rollup, error) {
	if m.FindRangeFunc != nil {
		return m.FindRangeFunc(ctx, granularity, hardwareName, start, end)
	}
	return nil, nil
}
