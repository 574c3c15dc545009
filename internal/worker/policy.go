package worker

import (
	"fmt"
	"time"
)

// DispatchPolicy maps the current time to the number of tasks the pool
// may dispatch on one tick.
type DispatchPolicy func(now time.Time) int

// WindowPolicy returns a policy that dispatches burst tasks per tick
// inside the [start, end) clock window and exactly one outside it.
// Times are "HH:MM" on the local clock; the window may wrap midnight.
func WindowPolicy(start, end string, burst int) (DispatchPolicy, error) {
	startMin, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("parse window start: %w", err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("parse window end: %w", err)
	}
	if burst < 1 {
		burst = 1
	}
	return func(now time.Time) int {
		if inWindow(now.Hour()*60+now.Minute(), startMin, endMin) {
			return burst
		}
		return 1
	}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func inWindow(minute, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	// wraps midnight
	return minute >= start || minute < end
}
