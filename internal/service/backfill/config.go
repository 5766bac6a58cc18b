package backfill

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/seu-repo/plugwatch/internal/domain"
)

// FleetConfig is the plug fleet definition shared by backfill and the live simulator.
type FleetConfig struct {
	Plugs []domain.DeviceProfile `mapstructure:"plugs"`
	Usage domain.UsageTable      `mapstructure:"-"`
}

type rawFleetConfig struct {
	Plugs []domain.DeviceProfile       `mapstructure:"plugs"`
	Usage map[string]domain.UsageRange `mapstructure:"usage"`
}

// LoadFleetConfig reads a YAML fleet file:
//
//	plugs:
//	  - name: tasmota_D5F2A7
//	    network_name: home
//	    usage: HIGH
//	    usage_spikes: 10
//	    reliability: 95
//	usage:
//	  HIGH: {WATTAGE_MIN: 1500, WATTAGE_MAX: 2000, CURRENT_MIN: 6, CURRENT_MAX: 8}
func LoadFleetConfig(path string) (*FleetConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read fleet config: %w", err)
	}
	return decodeFleet(v)
}

func decodeFleet(v *viper.Viper) (*FleetConfig, error) {
	var raw rawFleetConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fleet config: %w", err)
	}

	// viper lowercases map keys; levels are matched upper-case.
	usage := make(domain.UsageTable, len(raw.Usage))
	for level, r := range raw.Usage {
		usage[domain.UsageLevel(strings.ToUpper(level))] = r
	}

	return &FleetConfig{Plugs: raw.Plugs, Usage: usage}, nil
}
