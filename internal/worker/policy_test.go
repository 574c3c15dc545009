package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 1, hour, minute, 0, 0, time.UTC)
}

func TestWindowPolicy_InsideAndOutside(t *testing.T) {
	t.Parallel()

	policy, err := WindowPolicy("00:30", "08:30", 6)
	require.NoError(t, err)

	require.Equal(t, 6, policy(at(0, 30)), "window start is inclusive")
	require.Equal(t, 6, policy(at(4, 0)))
	require.Equal(t, 1, policy(at(8, 30)), "window end is exclusive")
	require.Equal(t, 1, policy(at(0, 29)))
	require.Equal(t, 1, policy(at(12, 0)))
	require.Equal(t, 1, policy(at(23, 59)))
}

func TestWindowPolicy_WrapsMidnight(t *testing.T) {
	t.Parallel()

	policy, err := WindowPolicy("22:00", "02:00", 4)
	require.NoError(t, err)

	require.Equal(t, 4, policy(at(23, 0)))
	require.Equal(t, 4, policy(at(1, 59)))
	require.Equal(t, 1, policy(at(2, 0)))
	require.Equal(t, 1, policy(at(12, 0)))
}

func TestWindowPolicy_DegenerateWindow(t *testing.T) {
	t.Parallel()

	policy, err := WindowPolicy("06:00", "06:00", 8)
	require.NoError(t, err)
	require.Equal(t, 1, policy(at(6, 0)), "empty window never bursts")
}

func TestWindowPolicy_MinimumBurst(t *testing.T) {
	t.Parallel()

	policy, err := WindowPolicy("00:00", "23:59", 0)
	require.NoError(t, err)
	require.Equal(t, 1, policy(at(12, 0)))
}

func TestWindowPolicy_BadClockValue(t *testing.T) {
	t.Parallel()

	_, err := WindowPolicy("25:00", "08:30", 6)
	require.Error(t, err)

	_, err = WindowPolicy("00:30", "late", 6)
	require.Error(t, err)
}
