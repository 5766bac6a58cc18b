package aggregation

import (
	"math"
	"testing"
	"time"

	"github.com/seu-repo/plugwatch/internal/domain"
)

func readings(pairs ...float64) []domain.PowerReading {
	out := make([]domain.PowerReading, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PowerReading{
			Timestamp: t0.Add(time.Duration(pairs[i]) * time.Second),
			Watts:     pairs[i+1],
		})
	}
	return out
}

func TestIntegrate_ConstantHour(t *testing.T) {
	got := Integrate(readings(0, 100, 3600, 100))
	if math.Abs(got-100) > 1e-6 {
		t.Errorf("expected 100 Wh, got %v", got)
	}
}

func TestIntegrate_TrailingEdgeWeighting(t *testing.T) {
	// first reading anchors; 60 W over 1800 s then 120 W over 1800 s
	got := Integrate(readings(0, 9999, 1800, 60, 3600, 120))
	if math.Abs(got-90) > 1e-6 {
		t.Errorf("expected 90 Wh, got %v", got)
	}
}

func TestIntegrate_UnevenSpacing(t *testing.T) {
	got := Integrate(readings(0, 0, 10, 360, 3610, 36))
	want := 360*10/3600.0 + 36*3600/3600.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestIntegrate_Degenerate(t *testing.T) {
	if got := Integrate(nil); got != 0 {
		t.Errorf("expected 0 for no readings, got %v", got)
	}
	if got := Integrate(readings(0, 500)); got != 0 {
		t.Errorf("expected 0 for a single reading, got %v", got)
	}
}

func TestBoundaryPolicy_Select(t *testing.T) {
	w := domain.Window{Start: t0, End: t0.Add(time.Hour)}
	in := readings(-10, 1, 0, 2, 1800, 3, 3600, 4, 3700, 5)

	closed := BoundaryClosedEnd.Select(w, in)
	if len(closed) != 3 || closed[2].Watts != 4 {
		t.Errorf("closed_end: expected start, middle and end samples, got %v", closed)
	}

	open := BoundaryHalfOpen.Select(w, in)
	if len(open) != 2 || open[1].Watts != 3 {
		t.Errorf("half_open: expected start and middle samples, got %v", open)
	}
}

func TestParseBoundaryPolicy(t *testing.T) {
	for in, want := range map[string]BoundaryPolicy{
		"":           BoundaryClosedEnd,
		"closed_end": BoundaryClosedEnd,
		"half_open":  BoundaryHalfOpen,
	} {
		got, err := ParseBoundaryPolicy(in)
		if err != nil || got != want {
			t.Errorf("%q: expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseBoundaryPolicy("open"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
