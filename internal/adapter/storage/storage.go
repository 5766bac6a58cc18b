package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/adapter/storage/memory"
	"github.com/seu-repo/plugwatch/internal/adapter/storage/postgres"
	"github.com/seu-repo/plugwatch/internal/ports"
	"github.com/seu-repo/plugwatch/pkg/config"
)

// Stores bundles the raw and rollup stores of one backend.
type Stores struct {
	Samples ports.SampleRepository
	Rollups ports.RollupRepository
	close   func() error
}

// Close releases the backend connection.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects the configured backend. "memory" keeps everything in-process.
func Open(storageCfg config.StorageConfig, dbCfg config.DatabaseConfig, log *zap.Logger) (*Stores, error) {
	switch storageCfg.Driver {
	case "memory":
		log.Warn("Using in-memory time-series store, data is lost on exit")
		return &Stores{
			Samples: memory.NewSampleStore(),
			Rollups: memory.NewRollupStore(),
		}, nil
	case "postgres", "":
		db, err := postgres.NewConnection(dbCfg, log)
		if err != nil {
			return nil, err
		}
		if dbCfg.AutoMigrate {
			if err := postgres.RunMigrations(db); err != nil {
				postgres.Close(db)
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return &Stores{
			Samples: postgres.NewSampleRepository(db, log),
			Rollups: postgres.NewRollupRepository(db, log),
			close:   func() error { return postgres.Close(db) },
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", storageCfg.Driver)
	}
}
