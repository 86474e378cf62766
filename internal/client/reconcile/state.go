package reconcile

type State int

const (
	StateSynced State = iota
	StateAdjusting
	StateSeeking
	StateBuffering
	StatePausedForAd
)

func (s State) String() string {
	switch s {
	case StateSynced:
		return "synced"
	case StateAdjusting:
		return "adjusting"
	case StateSeeking:
		return "seeking"
	case StateBuffering:
		return "buffering"
	case StatePausedForAd:
		return "paused_for_ad"
	}

	return "unknown"
}
