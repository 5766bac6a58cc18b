package domain

import (
	"fmt"
	"time"
)

type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

// Step returns the window length for the granularity.
func (g Granularity) Step() (time.Duration, error) {
	switch g {
	case GranularityHour:
		return time.Hour, nil
	case GranularityDay:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q", string(g))
	}
}

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether w lies entirely inside other.
func (w Window) Contains(other Window) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Rollup is a pre-aggregated energy value (watt-hours) for one device and window.
type Rollup struct {
	Granularity  Granularity `json:"granularity"`
	HardwareName string      `json:"hardware_name"`
	WindowStart  time.Time   `json:"window_start"`
	WindowEnd    time.Time   `json:"window_end"`
	Value        float64     `json:"value"`
}

func (r Rollup) Window() Window {
	return Window{Start: r.WindowStart, End: r.WindowEnd}
}
