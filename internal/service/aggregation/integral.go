package aggregation

import (
	"fmt"

	"github.com/seu-repo/plugwatch/internal/domain"
)

// BoundaryPolicy decides which samples on a window edge take part in the integral.
type BoundaryPolicy string

const (
	// BoundaryClosedEnd keeps a sample stamped exactly at window end. It closes
	// the window it ends and anchors the next one with zero weight.
	BoundaryClosedEnd BoundaryPolicy = "closed_end"
	// BoundaryHalfOpen keeps strictly [start, end).
	BoundaryHalfOpen BoundaryPolicy = "half_open"
)

func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch BoundaryPolicy(s) {
	case BoundaryClosedEnd, "":
		return BoundaryClosedEnd, nil
	case BoundaryHalfOpen:
		return BoundaryHalfOpen, nil
	default:
		return "", fmt.Errorf("unknown boundary policy %q", s)
	}
}

// Select filters time-ordered readings in [w.Start, w.End] down to the ones the policy keeps.
func (p BoundaryPolicy) Select(w domain.Window, readings []domain.PowerReading) []domain.PowerReading {
	out := readings[:0:0]
	for _, r := range readings {
		if r.Timestamp.Before(w.Start) || r.Timestamp.After(w.End) {
			continue
		}
		if p == BoundaryHalfOpen && r.Timestamp.Equal(w.End) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Integrate folds time-ordered power readings into watt-hours. Each reading
// is weighted by the seconds elapsed since its predecessor, so the first
// reading only anchors the sum.
func Integrate(readings []domain.PowerReading) float64 {
	var total float64
	for i := 1; i < len(readings); i++ {
		elapsed := readings[i].Timestamp.Sub(readings[i-1].Timestamp).Seconds()
		total += readings[i].Watts * elapsed / 3600.0
	}
	return total
}
