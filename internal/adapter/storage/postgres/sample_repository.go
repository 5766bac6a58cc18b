package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/ports"
)

const insertBatchSize = 500

type SampleRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewSampleRepository(db *gorm.DB, log *zap.Logger) ports.SampleRepository {
	return &SampleRepository{
		db:  db,
		log: log,
	}
}

func (r *SampleRepository) Append(ctx context.Context, sample *domain.RawSample) error {
	rec := toSampleRecord(sample)
	return r.db.WithContext(ctx).Create(&rec).Error
}

// AppendBatch inserts all samples in one transaction; either every row lands or none does.
func (r *SampleRepository) AppendBatch(ctx context.Context, samples []*domain.RawSample) error {
	if len(samples) == 0 {
		return nil
	}
	recs := make([]sampleRecord, len(samples))
	for i, s := range samples {
		recs[i] = toSampleRecord(s)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(recs, insertBatchSize).Error
	})
}

func (r *SampleRepository) FindPower(ctx context.Context, hardwareName string, start, end time.Time) ([]domain.PowerReading, error) {
	var rows []struct {
		Ts    time.Time
		Power float64
	}
	err := r.db.WithContext(ctx).
		Model(&sampleRecord{}).
		Select("ts, power").
		Where("hardware_name = ? AND measurement = ? AND ts >= ? AND ts <= ? AND power IS NOT NULL",
			hardwareName, string(domain.MeasurementPower), start.UTC(), end.UTC()).
		Order("ts asc, id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.PowerReading, len(rows))
	for i, row := range rows {
		out[i] = domain.PowerReading{Timestamp: row.Ts.UTC(), Watts: row.Power}
	}
	return out, nil
}

func (r *SampleRepository) Devices(ctx context.Context, start, end time.Time) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&sampleRecord{}).
		Distinct("hardware_name").
		Where("ts >= ? AND ts < ?", start.UTC(), end.UTC()).
		Order("hardware_name").
		Pluck("hardware_name", &names).Error
	return names, err
}

func (r *SampleRepository) Ping(ctx context.Context) error {
	return Ping(ctx, r.db)
}
