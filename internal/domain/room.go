package domain

import (
	"errors"
	"time"

	"golang.org/x/exp/slices"
)

var (
	ErrParticipantExists   = errors.New("participant already exists")
	ErrParticipantNotFound = errors.New("participant not found")
)

// Room holds the roster and ad state. Playback lives in the playback store under the same room id.
type Room struct {
	Id        string
	HostId    string
	Ad        AdState
	CreatedAt time.Time

	participants map[string]*Participant
	order        []string
}

// NewRoom creates a room whose only participant is the host.
func NewRoom(id string, host Participant, now time.Time) *Room {
	host.IsHost = true
	r := &Room{
		Id:           id,
		HostId:       host.Id,
		Ad:           AdClear{},
		CreatedAt:    now,
		participants: map[string]*Participant{host.Id: &host},
		order:        []string{host.Id},
	}

	return r
}

func (r *Room) AddParticipant(p Participant) error {
	if _, ok := r.participants[p.Id]; ok {
		return ErrParticipantExists
	}

	p.IsHost = false
	r.participants[p.Id] = &p
	r.order = append(r.order, p.Id)

	return nil
}

// RemoveParticipant removes p and, if p was host, promotes the earliest remaining participant.
// newHostId is empty when the host did not change.
func (r *Room) RemoveParticipant(participantId string) (removed Participant, newHostId string, err error) {
	p, ok := r.participants[participantId]
	if !ok {
		return Participant{}, "", ErrParticipantNotFound
	}

	delete(r.participants, participantId)
	r.order = slices.DeleteFunc(r.order, func(id string) bool {
		return id == participantId
	})

	if r.HostId == participantId {
		r.HostId = ""
		if len(r.order) > 0 {
			r.HostId = r.order[0]
			r.participants[r.HostId].IsHost = true
			newHostId = r.HostId
		}
	}

	return *p, newHostId, nil
}

func (r *Room) Participant(participantId string) (Participant, bool) {
	p, ok := r.participants[participantId]
	if !ok {
		return Participant{}, false
	}

	return *p, true
}

// Participants returns the roster in join order.
func (r *Room) Participants() []Participant {
	participants := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		participants = append(participants, *r.participants[id])
	}

	return participants
}

func (r *Room) ParticipantIds() []string {
	return slices.Clone(r.order)
}

func (r *Room) Len() int {
	return len(r.order)
}

func (r *Room) IsEmpty() bool {
	return len(r.order) == 0
}

// Episode returns the running ad episode, if any.
func (r *Room) Episode() (*AdEpisode, bool) {
	episode, ok := r.Ad.(*AdEpisode)
	return episode, ok
}

// Clone returns a deep copy safe to hand to readers outside the room lock.
func (r *Room) Clone() *Room {
	c := &Room{
		Id:           r.Id,
		HostId:       r.HostId,
		Ad:           AdClear{},
		CreatedAt:    r.CreatedAt,
		participants: make(map[string]*Participant, len(r.participants)),
		order:        slices.Clone(r.order),
	}
	for id, p := range r.participants {
		cp := *p
		c.participants[id] = &cp
	}
	if episode, ok := r.Episode(); ok {
		c.Ad = episode.clone()
	}

	return c
}
