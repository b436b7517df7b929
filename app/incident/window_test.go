package incident

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	window := NewWindow(clockwork.NewFakeClockAt(now), 6*365*24*time.Hour)

	cutoff := window.Cutoff()
	assert.Equal(t, now.Add(-6*365*24*time.Hour), cutoff)

	assert.True(t, window.Contains(now.AddDate(-1, 0, 0)))
	assert.True(t, window.Contains(cutoff))
	assert.False(t, window.Contains(cutoff.Add(-time.Second)))
	assert.True(t, window.Contains(time.Time{}))
}

func TestWindowKeep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	window := NewWindow(clockwork.NewFakeClockAt(now), 365*24*time.Hour)

	kept, dropped := window.Keep([]Incident{
		{ID: "recent", PublishedAt: Timestamp{Time: now.AddDate(0, -2, 0)}},
		{ID: "old", PublishedAt: Timestamp{Time: now.AddDate(-3, 0, 0)}},
		{ID: "undated"},
	})

	assert.Equal(t, 1, dropped)
	assert.Len(t, kept, 2)
	assert.Equal(t, "recent", kept[0].ID)
	assert.Equal(t, "undated", kept[1].ID)
}

func TestNewWindowDefaultsToRealClock(t *testing.T) {
	window := NewWindow(nil, time.Hour)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), window.Cutoff(), time.Minute)
}
