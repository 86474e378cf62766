package domain

import "time"

type Platform string

const (
	PlatformGeneric Platform = "generic"
	PlatformYouTube Platform = "youtube"
	PlatformNetflix Platform = "netflix"
	PlatformHulu    Platform = "hulu"
	PlatformDisney  Platform = "disney"
	PlatformPrime   Platform = "prime"
	PlatformMax     Platform = "max"
)

var platforms = []Platform{
	PlatformGeneric,
	PlatformYouTube,
	PlatformNetflix,
	PlatformHulu,
	PlatformDisney,
	PlatformPrime,
	PlatformMax,
}

func Platforms() []Platform {
	return append([]Platform(nil), platforms...)
}

func (p Platform) Valid() bool {
	for _, platform := range platforms {
		if p == platform {
			return true
		}
	}

	return false
}

// PlaybackState is the authoritative snapshot of what a room is playing.
// UpdatedAt is always stamped by the server clock.
type PlaybackState struct {
	IsPlaying bool
	Position  float64
	UpdatedAt time.Time
	Platform  Platform
}

func NewPlaybackState(now time.Time) PlaybackState {
	return PlaybackState{
		IsPlaying: false,
		Position:  0,
		UpdatedAt: now,
		Platform:  PlatformGeneric,
	}
}
