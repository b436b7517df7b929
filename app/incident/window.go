package incident

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Window is the historical lookback. Records without a timestamp are
// treated as inside it.
type Window struct {
	clock    clockwork.Clock
	lookback time.Duration
}

func NewWindow(clock clockwork.Clock, lookback time.Duration) Window {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return Window{clock: clock, lookback: lookback}
}

func (w Window) Cutoff() time.Time {
	return w.clock.Now().UTC().Add(-w.lookback)
}

func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	return !t.Before(w.Cutoff())
}

// Keep returns the incidents inside the window, preserving order.
func (w Window) Keep(incidents []Incident) ([]Incident, int) {
	kept := make([]Incident, 0, len(incidents))
	for _, inc := range incidents {
		if w.Contains(inc.PublishedAt.Time) {
			kept = append(kept, inc)
		}
	}
	return kept, len(incidents) - len(kept)
}
