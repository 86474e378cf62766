package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	cfg := DefaultConfig()
	observedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	playing := RemoteState{IsPlaying: true, Position: 100, ObservedAt: observedAt}
	paused := RemoteState{IsPlaying: false, Position: 100, ObservedAt: observedAt}

	tests := []struct {
		name     string
		remote   RemoteState
		local    float64
		elapsed  time.Duration
		action   Action
		rate     float64
		expected float64
	}{
		{name: "in sync", remote: playing, local: 101.2, elapsed: time.Second, action: ActionNone, expected: 101},
		{name: "at tolerance", remote: playing, local: 101.5, elapsed: time.Second, action: ActionNone, expected: 101},
		{name: "ahead in soft band", remote: playing, local: 103, elapsed: time.Second, action: ActionAdjustRate, rate: 0.95, expected: 101},
		{name: "behind in soft band", remote: playing, local: 99.5, elapsed: time.Second, action: ActionAdjustRate, rate: 1.05, expected: 101},
		{name: "beyond soft band", remote: playing, local: 104, elapsed: time.Second, action: ActionSeek, expected: 101},
		{name: "far behind", remote: playing, local: 10, elapsed: time.Second, action: ActionSeek, expected: 101},
		{name: "paused remote does not advance", remote: paused, local: 100.3, elapsed: 10 * time.Second, action: ActionNone, expected: 100},
		{name: "paused remote soft band seeks", remote: paused, local: 101.5, elapsed: time.Second, action: ActionSeek, expected: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Decide(cfg, tt.remote, tt.local, observedAt.Add(tt.elapsed))
			assert.Equal(t, tt.action, c.Action)
			assert.InDelta(t, tt.expected, c.Expected, 1e-9)
			assert.InDelta(t, tt.local-tt.expected, c.Drift, 1e-9)
			if tt.action == ActionAdjustRate {
				assert.InDelta(t, tt.rate, c.Rate, 1e-9)
			}
		})
	}
}

func TestExpectedPositionIgnoresFutureObservation(t *testing.T) {
	now := time.Now()
	rs := RemoteState{IsPlaying: true, Position: 50, ObservedAt: now.Add(time.Second)}
	assert.Equal(t, 50.0, rs.ExpectedPosition(now))
}
