package domain

import (
	"errors"
	"fmt"
)

type UsageLevel string

const (
	UsageHigh   UsageLevel = "HIGH"
	UsageMedium UsageLevel = "MEDIUM"
	UsageLow    UsageLevel = "LOW"
	UsageIdle   UsageLevel = "IDLE"
)

// UsageLevels lists every known level in a stable order.
var UsageLevels = []UsageLevel{UsageHigh, UsageMedium, UsageLow, UsageIdle}

// ErrUnknownUsageLevel marks a corrupt backfill configuration.
var ErrUnknownUsageLevel = errors.New("unknown usage level")

func (l UsageLevel) Validate() error {
	for _, known := range UsageLevels {
		if l == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownUsageLevel, string(l))
}

// DeviceProfile describes one simulated plug.
type DeviceProfile struct {
	Name        string     `mapstructure:"name" json:"name"`
	NetworkName string     `mapstructure:"network_name" json:"network_name"`
	Usage       UsageLevel `mapstructure:"usage" json:"usage"`
	// UsageSpikes is the 0-100 chance of reporting a different level.
	UsageSpikes *int `mapstructure:"usage_spikes" json:"usage_spikes,omitempty"`
	// Reliability is the 0-100 chance of reporting in a given tick.
	Reliability *int `mapstructure:"reliability" json:"reliability,omitempty"`
}

func (p DeviceProfile) SpikeChance() int {
	if p.UsageSpikes == nil {
		return 0
	}
	return *p.UsageSpikes
}

func (p DeviceProfile) ReliabilityChance() int {
	if p.Reliability == nil {
		return 100
	}
	return *p.Reliability
}

// UsageRange bounds the wattage and current drawn for one level.
type UsageRange struct {
	WattageMin float64 `mapstructure:"wattage_min" json:"wattage_min"`
	WattageMax float64 `mapstructure:"wattage_max" json:"wattage_max"`
	CurrentMin float64 `mapstructure:"current_min" json:"current_min"`
	CurrentMax float64 `mapstructure:"current_max" json:"current_max"`
}

// UsageTable maps a usage level to its ranges. IDLE needs no entry.
type UsageTable map[UsageLevel]UsageRange
