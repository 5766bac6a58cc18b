package backfill

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/seu-repo/plugwatch/internal/domain"
)

const (
	voltageMin     = 240.0
	voltageMax     = 260.0
	idleCurrentMax = 0.04
)

// Reading is one synthetic energy reading.
type Reading struct {
	Level   domain.UsageLevel
	Power   float64
	Voltage float64
	Current float64
}

// StatusReading is one synthetic STATE report.
type StatusReading struct {
	PowerOn    bool
	Uptime     int64
	WifiName   string
	WifiRSSI   int64
	WifiSignal int64
}

// Generator draws synthetic plug behaviour from a fleet definition.
type Generator struct {
	usage domain.UsageTable

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator validates profiles against the usage table. Any level that a
// profile could report without a matching range is a fatal configuration error.
func NewGenerator(profiles []domain.DeviceProfile, usage domain.UsageTable, seed uint64) (*Generator, error) {
	if err := Validate(profiles, usage); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		usage: usage,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func Validate(profiles []domain.DeviceProfile, usage domain.UsageTable) error {
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if p.Name == "" {
			return fmt.Errorf("plug profile without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate plug profile %q", p.Name)
		}
		seen[p.Name] = true

		if err := p.Usage.Validate(); err != nil {
			return fmt.Errorf("plug %q: %w", p.Name, err)
		}
		if c := p.SpikeChance(); c < 0 || c > 100 {
			return fmt.Errorf("plug %q: usage_spikes %d outside 0-100", p.Name, c)
		}
		if c := p.ReliabilityChance(); c < 0 || c > 100 {
			return fmt.Errorf("plug %q: reliability %d outside 0-100", p.Name, c)
		}

		levels := []domain.UsageLevel{p.Usage}
		if p.SpikeChance() > 0 {
			levels = domain.UsageLevels
		}
		for _, level := range levels {
			if err := checkRange(usage, level); err != nil {
				return fmt.Errorf("plug %q: %w", p.Name, err)
			}
		}
	}
	return nil
}

func checkRange(usage domain.UsageTable, level domain.UsageLevel) error {
	if level == domain.UsageIdle {
		return nil
	}
	r, ok := usage[level]
	if !ok {
		return fmt.Errorf("%w: no usage range for %q", domain.ErrUnknownUsageLevel, string(level))
	}
	if r.WattageMin > r.WattageMax || r.CurrentMin > r.CurrentMax {
		return fmt.Errorf("usage range for %q has min above max", string(level))
	}
	return nil
}

// Reports decides whether the plug reports in this tick.
func (g *Generator) Reports(p domain.DeviceProfile) bool {
	return g.chance(p.ReliabilityChance())
}

// Level returns the configured level, or a different random level when a spike fires.
func (g *Generator) Level(p domain.DeviceProfile) (domain.UsageLevel, error) {
	if err := p.Usage.Validate(); err != nil {
		return "", err
	}
	if !g.chance(p.SpikeChance()) {
		return p.Usage, nil
	}

	others := make([]domain.UsageLevel, 0, len(domain.UsageLevels)-1)
	for _, level := range domain.UsageLevels {
		if level != p.Usage {
			others = append(others, level)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return others[g.rng.IntN(len(others))], nil
}

// Usage draws a reading for the plug.
func (g *Generator) Usage(p domain.DeviceProfile) (Reading, error) {
	level, err := g.Level(p)
	if err != nil {
		return Reading{}, err
	}
	return g.ReadingFor(level)
}

// ReadingFor draws power, voltage and current for a level.
func (g *Generator) ReadingFor(level domain.UsageLevel) (Reading, error) {
	reading := Reading{Level: level, Voltage: g.uniform(voltageMin, voltageMax)}

	switch level {
	case domain.UsageHigh, domain.UsageMedium, domain.UsageLow:
		r, ok := g.usage[level]
		if !ok {
			return Reading{}, fmt.Errorf("%w: no usage range for %q", domain.ErrUnknownUsageLevel, string(level))
		}
		reading.Power = g.uniform(r.WattageMin, r.WattageMax)
		reading.Current = g.uniform(r.CurrentMin, r.CurrentMax)
	case domain.UsageIdle:
		reading.Power = 0
		reading.Current = g.uniform(0, idleCurrentMax)
	default:
		return Reading{}, fmt.Errorf("%w: %q", domain.ErrUnknownUsageLevel, string(level))
	}
	return reading, nil
}

// Status draws a STATE report with the given uptime.
func (g *Generator) Status(p domain.DeviceProfile, uptime int64) StatusReading {
	g.mu.Lock()
	defer g.mu.Unlock()
	return StatusReading{
		PowerOn:    true,
		Uptime:     uptime,
		WifiName:   p.NetworkName,
		WifiRSSI:   int64(g.rng.IntN(101)),
		WifiSignal: -int64(g.rng.IntN(101)),
	}
}

func (g *Generator) chance(percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(100) < percent
}

func (g *Generator) uniform(lo, hi float64) float64 {
	g.mu.Lock()
	v := lo + g.rng.Float64()*(hi-lo)
	g.mu.Unlock()
	return math.Round(v*100) / 100
}
