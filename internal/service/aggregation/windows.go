package aggregation

import (
	"iter"
	"time"

	"github.com/seu-repo/plugwatch/internal/domain"
)

// Align floors t to the granularity boundary in UTC.
func Align(g domain.Granularity, t time.Time) time.Time {
	t = t.UTC()
	if g == domain.GranularityDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Hour)
}

// GenerateWindows yields the windows tiling [start, end) newest first. Both
// bounds are floored to the granularity, so a trailing partial window is not
// produced. The sequence is lazy and restarts on every range.
func GenerateWindows(g domain.Granularity, start, end time.Time) (iter.Seq[domain.Window], error) {
	step, err := g.Step()
	if err != nil {
		return nil, err
	}
	first, last := Align(g, start), Align(g, end)

	return func(yield func(domain.Window) bool) {
		for current := last; current.After(first); current = current.Add(-step) {
			if !yield(domain.Window{Start: current.Add(-step), End: current}) {
				return
			}
		}
	}, nil
}

// Ascending yields the same windows as GenerateWindows, oldest first.
func Ascending(g domain.Granularity, start, end time.Time) (iter.Seq[domain.Window], error) {
	step, err := g.Step()
	if err != nil {
		return nil, err
	}
	first, last := Align(g, start), Align(g, end)

	return func(yield func(domain.Window) bool) {
		for current := first; current.Before(last); current = current.Add(step) {
			if !yield(domain.Window{Start: current, End: current.Add(step)}) {
				return
			}
		}
	}, nil
}
