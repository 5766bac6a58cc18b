package domain

import (
	"time"
)

type Measurement string

const (
	MeasurementPower  Measurement = "power"
	MeasurementStatus Measurement = "status"
)

// Field names carried by raw samples.
const (
	FieldPower      = "power"
	FieldVoltage    = "voltage"
	FieldCurrent    = "current"
	FieldUptime     = "uptime"
	FieldWifiRSSI   = "wifi_rssi"
	FieldWifiSignal = "wifi_signal"
)

// TelemetryTopic is the tele/<hw>/<suffix> topic a plug reports m on:
// SENSOR for power, STATE for status.
func TelemetryTopic(hardwareName string, m Measurement) string {
	suffix := "SENSOR"
	if m == MeasurementStatus {
		suffix = "STATE"
	}
	return "tele/" + hardwareName + "/" + suffix
}

// BusMessage is one message received from the plug bus.
type BusMessage struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// RawSample is a single immutable observation from a plug.
// Power samples carry float power/voltage/current; status samples carry a
// bool power flag plus integer uptime and wifi readings.
type RawSample struct {
	HardwareName string                 `json:"hardware_name"`
	Measurement  Measurement            `json:"measurement"`
	Fields       map[string]interface{} `json:"fields"`
	SourceTopic  string                 `json:"source_topic"`
	WifiName     string                 `json:"wifi_name,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Float returns a numeric field as float64.
func (s *RawSample) Float(name string) (float64, bool) {
	switch v := s.Fields[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns an integer field.
func (s *RawSample) Int(name string) (int64, bool) {
	switch v := s.Fields[name].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Bool returns a boolean field.
func (s *RawSample) Bool(name string) (bool, bool) {
	v, ok := s.Fields[name].(bool)
	return v, ok
}

// PowerReading is the projection of a power sample used by the integral.
type PowerReading struct {
	Timestamp time.Time
	Watts     float64
}
