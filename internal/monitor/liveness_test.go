package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickTrackerMonotonic(t *testing.T) {
	tr := NewTickTracker(30 * time.Second)
	t0 := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	tr.Record("NFO:A", t0)
	tr.Record("NFO:A", t0.Add(-5*time.Second)) // out-of-order, ignored

	at, ok := tr.LastTick("NFO:A")
	require.True(t, ok)
	assert.Equal(t, t0, at)

	tr.Record("NFO:A", t0.Add(time.Second))
	at, _ = tr.LastTick("NFO:A")
	assert.Equal(t, t0.Add(time.Second), at)
}

func TestTickTrackerLiveWindow(t *testing.T) {
	tr := NewTickTracker(30 * time.Second)
	t0 := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	tr.Record("NFO:A", t0)

	assert.True(t, tr.IsLive("NFO:A", t0.Add(29*time.Second)))
	assert.False(t, tr.IsLive("NFO:A", t0.Add(30*time.Second))) // strict window
	assert.False(t, tr.IsLive("NFO:A", t0.Add(31*time.Second)))
	assert.False(t, tr.IsLive("NFO:B", t0)) // never ticked
}

func TestLiveRule(t *testing.T) {
	t0 := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	assert.True(t, Live(t0, t0.Add(29*time.Second), 30*time.Second))
	assert.False(t, Live(t0, t0.Add(30*time.Second), 30*time.Second))
	assert.False(t, Live(time.Time{}, t0, 30*time.Second))
}

func TestTickTrackerSnapshotIsCopy(t *testing.T) {
	tr := NewTickTracker(30 * time.Second)
	t0 := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	tr.Record("NFO:A", t0)

	snap := tr.Snapshot()
	snap["NFO:A"] = t0.Add(time.Hour)

	at, _ := tr.LastTick("NFO:A")
	assert.Equal(t, t0, at)
}
