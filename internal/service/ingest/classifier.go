package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/observability/telemetry"
)

// Disposition is the classifier verdict for one message.
type Disposition string

const (
	DispositionAccepted     Disposition = "accepted"
	DispositionIgnored      Disposition = "ignored"
	DispositionMalformed    Disposition = "malformed"
	DispositionUnrecognized Disposition = "unrecognized"
)

// Classification is the outcome of classifying a bus message. Sample is set
// only when Disposition is DispositionAccepted.
type Classification struct {
	Sample      *domain.RawSample
	Disposition Disposition
	Reason      string
}

// sensorPayload is the tele/<hw>/SENSOR body.
type sensorPayload struct {
	Time   string `json:"Time"`
	Energy *struct {
		Power   float64 `json:"Power"`
		Voltage float64 `json:"Voltage"`
		Current float64 `json:"Current"`
	} `json:"ENERGY"`
}

// statePayload is the tele/<hw>/STATE body.
type statePayload struct {
	Time      string `json:"Time"`
	Power     string `json:"POWER"`
	UptimeSec int64  `json:"UptimeSec"`
	Wifi      *struct {
		SSID   string `json:"SSId"`
		RSSI   int64  `json:"RSSI"`
		Signal int64  `json:"Signal"`
	} `json:"Wifi"`
}

// Classifier turns raw bus messages into samples. It never touches a store.
type Classifier struct {
	log *zap.Logger
}

func NewClassifier(log *zap.Logger) *Classifier {
	return &Classifier{log: log}
}

// Classify never panics on bad input: every failure becomes a non-accepted disposition.
func (c *Classifier) Classify(msg domain.BusMessage) Classification {
	result := c.classify(msg)
	telemetry.MessagesClassifiedTotal.WithLabelValues(string(result.Disposition)).Inc()

	switch result.Disposition {
	case DispositionIgnored:
		c.log.Debug("Ignoring message", zap.String("topic", msg.Topic))
	case DispositionMalformed:
		c.log.Warn("Bad payload",
			zap.String("topic", msg.Topic),
			zap.String("reason", result.Reason),
			zap.ByteString("payload", msg.Payload),
		)
	case DispositionUnrecognized:
		c.log.Info("Unrecognized topic", zap.String("topic", msg.Topic))
	}
	return result
}

func (c *Classifier) classify(msg domain.BusMessage) Classification {
	topic := msg.Topic
	if strings.HasSuffix(topic, "/sensors") || strings.HasSuffix(topic, "/LWT") || strings.Contains(topic, "discovery") {
		return Classification{Disposition: DispositionIgnored}
	}

	if !json.Valid(msg.Payload) {
		return Classification{Disposition: DispositionMalformed, Reason: "payload is not valid JSON"}
	}

	hardwareName, ok := hardwareName(topic)
	if !ok {
		return Classification{Disposition: DispositionUnrecognized}
	}

	ts := msg.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC().Truncate(time.Second)

	switch {
	case strings.HasSuffix(topic, "SENSOR"):
		return c.classifySensor(msg, hardwareName, ts)
	case strings.HasSuffix(topic, "STATE"):
		return c.classifyState(msg, hardwareName, ts)
	default:
		return Classification{Disposition: DispositionUnrecognized}
	}
}

func (c *Classifier) classifySensor(msg domain.BusMessage, hw string, ts time.Time) Classification {
	var p sensorPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return Classification{Disposition: DispositionMalformed, Reason: err.Error()}
	}
	if p.Energy == nil {
		return Classification{Disposition: DispositionMalformed, Reason: "missing ENERGY block"}
	}

	return Classification{
		Disposition: DispositionAccepted,
		Sample: &domain.RawSample{
			HardwareName: hw,
			Measurement:  domain.MeasurementPower,
			SourceTopic:  msg.Topic,
			Timestamp:    ts,
			Fields: map[string]interface{}{
				domain.FieldPower:   p.Energy.Power,
				domain.FieldVoltage: p.Energy.Voltage,
				domain.FieldCurrent: p.Energy.Current,
			},
		},
	}
}

func (c *Classifier) classifyState(msg domain.BusMessage, hw string, ts time.Time) Classification {
	var p statePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return Classification{Disposition: DispositionMalformed, Reason: err.Error()}
	}
	if p.Wifi == nil {
		return Classification{Disposition: DispositionMalformed, Reason: "missing Wifi block"}
	}

	fields := map[string]interface{}{
		domain.FieldUptime:     p.UptimeSec,
		domain.FieldWifiRSSI:   p.Wifi.RSSI,
		domain.FieldWifiSignal: p.Wifi.Signal,
	}
	if on, err := ParsePower(p.Power); err != nil {
		c.log.Error("Unsupported status", zap.String("topic", msg.Topic), zap.Error(err))
	} else {
		fields[domain.FieldPower] = on
	}

	return Classification{
		Disposition: DispositionAccepted,
		Sample: &domain.RawSample{
			HardwareName: hw,
			Measurement:  domain.MeasurementStatus,
			SourceTopic:  msg.Topic,
			WifiName:     p.Wifi.SSID,
			Timestamp:    ts,
			Fields:       fields,
		},
	}
}

// ParsePower maps the Tasmota POWER literal to a bool.
func ParsePower(status string) (bool, error) {
	switch status {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	default:
		return false, fmt.Errorf("unsupported status: %q", status)
	}
}

// hardwareName extracts <hw> from tele/<hw>/<suffix>.
func hardwareName(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
