//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/pkg/config"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)

		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("plugwatch_test"),
			tcpostgres.WithUsername("plugwatch"),
			tcpostgres.WithPassword("plugwatch_test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		testcontainers.CleanupContainer(t, container)
		require.NoError(t, err)

		url, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := NewConnection(config.DatabaseConfig{URL: url, MaxOpenConns: 10}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))
	require.NoError(t, db.Exec("TRUNCATE raw_samples, rollups").Error)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestRepositories(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	samples := NewSampleRepository(db, zap.NewNop())
	rollups := NewRollupRepository(db, zap.NewNop())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("AppendAndFindPower", func(t *testing.T) {
		require.NoError(t, samples.AppendBatch(ctx, []*domain.RawSample{
			{HardwareName: "plug", Measurement: domain.MeasurementPower, Timestamp: base.Add(time.Hour), SourceTopic: "tele/plug/SENSOR",
				Fields: map[string]interface{}{domain.FieldPower: 100.0, domain.FieldVoltage: 230.0, domain.FieldCurrent: 0.4}},
			{HardwareName: "plug", Measurement: domain.MeasurementPower, Timestamp: base, SourceTopic: "tele/plug/SENSOR",
				Fields: map[string]interface{}{domain.FieldPower: 50.0}},
			{HardwareName: "plug", Measurement: domain.MeasurementStatus, Timestamp: base.Add(time.Minute), SourceTopic: "tele/plug/STATE", WifiName: "home",
				Fields: map[string]interface{}{domain.FieldPower: true, domain.FieldUptime: int64(60)}},
		}))
		require.NoError(t, samples.Append(ctx, &domain.RawSample{
			HardwareName: "plug", Measurement: domain.MeasurementPower, Timestamp: base.Add(2 * time.Hour),
			Fields: map[string]interface{}{domain.FieldPower: 999.0},
		}))

		readings, err := samples.FindPower(ctx, "plug", base, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, readings, 2)
		assert.Equal(t, 50.0, readings[0].Watts)
		assert.Equal(t, 100.0, readings[1].Watts)
		assert.True(t, readings[1].Timestamp.Equal(base.Add(time.Hour)))
	})

	t.Run("Devices", func(t *testing.T) {
		names, err := samples.Devices(ctx, base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []string{"plug"}, names)
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		r := &domain.Rollup{Granularity: domain.GranularityHour, HardwareName: "plug", WindowStart: base, WindowEnd: base.Add(time.Hour), Value: 1}
		require.NoError(t, rollups.Upsert(ctx, r))
		r.Value = 7.5
		require.NoError(t, rollups.Upsert(ctx, r))

		got, err := rollups.FindRange(ctx, domain.GranularityHour, "plug", base, base.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 7.5, got[0].Value)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, samples.Ping(ctx))
	})
}
