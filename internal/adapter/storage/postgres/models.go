package postgres

import (
	"time"

	"github.com/seu-repo/plugwatch/internal/domain"
)

// sampleRecord is one row of raw_samples. Power rows fill power/voltage/current;
// status rows fill power_on/uptime/wifi_*.
type sampleRecord struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	HardwareName string    `gorm:"size:128;not null;index:idx_raw_samples_device,priority:1"`
	Measurement  string    `gorm:"size:16;not null;index:idx_raw_samples_device,priority:2"`
	Timestamp    time.Time `gorm:"column:ts;not null;index:idx_raw_samples_device,priority:3;index:idx_raw_samples_ts"`
	SourceTopic  string    `gorm:"size:255"`
	WifiName     *string   `gorm:"size:128"`
	Power        *float64
	Voltage      *float64
	Current      *float64
	PowerOn      *bool
	Uptime       *int64
	WifiRSSI     *int64 `gorm:"column:wifi_rssi"`
	WifiSignal   *int64
}

func (sampleRecord) TableName() string { return "raw_samples" }

func toSampleRecord(s *domain.RawSample) sampleRecord {
	rec := sampleRecord{
		HardwareName: s.HardwareName,
		Measurement:  string(s.Measurement),
		Timestamp:    s.Timestamp.UTC(),
		SourceTopic:  s.SourceTopic,
	}
	if s.WifiName != "" {
		name := s.WifiName
		rec.WifiName = &name
	}

	switch s.Measurement {
	case domain.MeasurementPower:
		rec.Power = floatField(s, domain.FieldPower)
		rec.Voltage = floatField(s, domain.FieldVoltage)
		rec.Current = floatField(s, domain.FieldCurrent)
	case domain.MeasurementStatus:
		if on, ok := s.Bool(domain.FieldPower); ok {
			rec.PowerOn = &on
		}
		rec.Uptime = intField(s, domain.FieldUptime)
		rec.WifiRSSI = intField(s, domain.FieldWifiRSSI)
		rec.WifiSignal = intField(s, domain.FieldWifiSignal)
	}
	return rec
}

func floatField(s *domain.RawSample, name string) *float64 {
	if v, ok := s.Float(name); ok {
		return &v
	}
	return nil
}

func intField(s *domain.RawSample, name string) *int64 {
	if v, ok := s.Int(name); ok {
		return &v
	}
	return nil
}

// rollupRecord is one row of rollups, unique per (granularity, hardware_name, window_start).
type rollupRecord struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Granularity  string    `gorm:"size:8;not null;uniqueIndex:idx_rollups_window,priority:1"`
	HardwareName string    `gorm:"size:128;not null;uniqueIndex:idx_rollups_window,priority:2"`
	WindowStart  time.Time `gorm:"not null;uniqueIndex:idx_rollups_window,priority:3"`
	WindowEnd    time.Time `gorm:"not null"`
	Value        float64   `gorm:"not null"`
	UpdatedAt    time.Time
}

func (rollupRecord) TableName() string { return "rollups" }

func (r rollupRecord) toDomain() domain.Rollup {
	return domain.Rollup{
		Granularity:  domain.Granularity(r.Granularity),
		HardwareName: r.HardwareName,
		WindowStart:  r.WindowStart.UTC(),
		WindowEnd:    r.WindowEnd.UTC(),
		Value:        r.Value,
	}
}
