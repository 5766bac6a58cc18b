package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/ports"
)

type RollupRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRollupRepository(db *gorm.DB, log *zap.Logger) ports.RollupRepository {
	return &RollupRepository{
		db:  db,
		log: log,
	}
}

// Upsert writes the rollup in a single statement, replacing any earlier value for the window.
func (r *RollupRepository) Upsert(ctx context.Context, rollup *domain.Rollup) error {
	rec := rollupRecord{
		Granularity:  string(rollup.Granularity),
		HardwareName: rollup.HardwareName,
		WindowStart:  rollup.WindowStart.UTC(),
		WindowEnd:    rollup.WindowEnd.UTC(),
		Value:        rollup.Value,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "granularity"}, {Name: "hardware_name"}, {Name: "window_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"window_end", "value", "updated_at"}),
	}).Create(&rec).Error
}

func (r *RollupRepository) FindRange(ctx context.Context, granularity domain.Granularity, hardwareName string, start, end time.Time) ([]domain.Rollup, error) {
	var recs []rollupRecord
	err := r.db.WithContext(ctx).
		Where("granularity = ? AND hardware_name = ? AND window_start >= ? AND window_end <= ?",
			string(granularity), hardwareName, start.UTC(), end.UTC()).
		Order("window_start asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.Rollup, len(recs))
	for i, rec := range recs {
		out[i] = rec.toDomain()
	}
	return out, nil
}
