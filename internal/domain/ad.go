package domain

import (
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type AdMembership struct {
	ParticipantId       string
	DisplayName         string
	EstimatedDurationMs *int64
	StartedAt           time.Time
}

// AdState is either AdClear or *AdEpisode. A room has no resume point unless an episode is running.
type AdState interface {
	adState()
}

type AdClear struct{}

func (AdClear) adState() {}

// AdEpisode lasts from the first participant entering an ad until the last one leaves it.
// The resume point is fixed when the episode starts.
type AdEpisode struct {
	ResumePosition  float64
	ResumeIsPlaying bool
	members         map[string]AdMembership
}

func (*AdEpisode) adState() {}

func NewAdEpisode(resume PlaybackState) *AdEpisode {
	return &AdEpisode{
		ResumePosition:  resume.Position,
		ResumeIsPlaying: resume.IsPlaying,
		members:         make(map[string]AdMembership),
	}
}

// Put adds or overwrites a membership, keeping the original StartedAt on re-entry.
func (e *AdEpisode) Put(m AdMembership) {
	if existing, ok := e.members[m.ParticipantId]; ok {
		m.StartedAt = existing.StartedAt
	}
	e.members[m.ParticipantId] = m
}

func (e *AdEpisode) Remove(participantId string) {
	delete(e.members, participantId)
}

func (e *AdEpisode) Has(participantId string) bool {
	_, ok := e.members[participantId]
	return ok
}

func (e *AdEpisode) Len() int {
	return len(e.members)
}

// Members returns memberships ordered by StartedAt, then participant id.
func (e *AdEpisode) Members() []AdMembership {
	members := maps.Values(e.members)
	slices.SortFunc(members, func(a, b AdMembership) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		if a.ParticipantId < b.ParticipantId {
			return -1
		}
		if a.ParticipantId > b.ParticipantId {
			return 1
		}
		return 0
	})

	return members
}

func (e *AdEpisode) clone() *AdEpisode {
	return &AdEpisode{
		ResumePosition:  e.ResumePosition,
		ResumeIsPlaying: e.ResumeIsPlaying,
		members:         maps.Clone(e.members),
	}
}
