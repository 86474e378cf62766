package reconcile

import (
	"math"
	"time"
)

type Config struct {
	// Tolerance is the drift, in seconds, that is left alone.
	Tolerance float64
	// SoftBand is the largest drift, in seconds, corrected by a rate change instead of a seek.
	SoftBand             float64
	RateOffset           float64
	RateDuration         time.Duration
	HeartbeatInterval    time.Duration
	GuardDuration        time.Duration
	BufferingResumeDelay time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Tolerance:            0.5,
		SoftBand:             2,
		RateOffset:           0.05,
		RateDuration:         3 * time.Second,
		HeartbeatInterval:    5 * time.Second,
		GuardDuration:        500 * time.Millisecond,
		BufferingResumeDelay: 300 * time.Millisecond,
	}
}

// RemoteState is the authority's playback as observed at ObservedAt on the local clock.
type RemoteState struct {
	IsPlaying  bool
	Position   float64
	ObservedAt time.Time
}

// ExpectedPosition extrapolates the remote position to now.
func (rs RemoteState) ExpectedPosition(now time.Time) float64 {
	if !rs.IsPlaying {
		return rs.Position
	}

	elapsed := now.Sub(rs.ObservedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	return rs.Position + elapsed
}

type Action int

const (
	ActionNone Action = iota
	ActionAdjustRate
	ActionSeek
)

type Correction struct {
	Action   Action
	Expected float64
	// Drift is local minus expected; positive means the local player is ahead.
	Drift float64
	// Rate is set for ActionAdjustRate.
	Rate float64
}

// Decide picks the drift correction for a local position. Play/pause alignment is not part of
// it. A paused remote has no rate to converge with, so soft-band drift against it is sought away.
func Decide(cfg *Config, remote RemoteState, localPosition float64, now time.Time) Correction {
	expected := remote.ExpectedPosition(now)
	drift := localPosition - expected
	c := Correction{
		Action:   ActionNone,
		Expected: expected,
		Drift:    drift,
	}

	abs := math.Abs(drift)
	switch {
	case abs <= cfg.Tolerance:
	case abs <= cfg.SoftBand && remote.IsPlaying:
		c.Action = ActionAdjustRate
		if drift > 0 {
			c.Rate = 1 - cfg.RateOffset
		} else {
			c.Rate = 1 + cfg.RateOffset
		}
	default:
		c.Action = ActionSeek
	}

	return c
}
