package room

import (
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/protocol"
)

func toParticipant(p domain.Participant) protocol.Participant {
	return protocol.Participant{
		Id:          p.Id,
		UserId:      p.UserId,
		DeviceType:  string(p.DeviceType),
		DisplayName: p.DisplayName,
		IsHost:      p.IsHost,
		JoinedAt:    p.JoinedAt.UnixMilli(),
	}
}

func toParticipants(participants []domain.Participant) []protocol.Participant {
	res := make([]protocol.Participant, 0, len(participants))
	for _, p := range participants {
		res = append(res, toParticipant(p))
	}

	return res
}

func toPlayback(state domain.PlaybackState) protocol.Playback {
	return protocol.Playback{
		IsPlaying: state.IsPlaying,
		Position:  state.Position,
		UpdatedAt: state.UpdatedAt.UnixMilli(),
		Platform:  string(state.Platform),
	}
}

func toAdParticipants(members []domain.AdMembership) []protocol.AdParticipant {
	res := make([]protocol.AdParticipant, 0, len(members))
	for _, m := range members {
		res = append(res, protocol.AdParticipant{
			ParticipantId:       m.ParticipantId,
			DisplayName:         m.DisplayName,
			EstimatedDurationMs: m.EstimatedDurationMs,
			StartedAt:           m.StartedAt.UnixMilli(),
		})
	}

	return res
}

func toRoom(r *domain.Room, state domain.PlaybackState) protocol.Room {
	usersInAd := []protocol.AdParticipant{}
	if episode, ok := r.Episode(); ok {
		usersInAd = toAdParticipants(episode.Members())
	}

	return protocol.Room{
		RoomId:       r.Id,
		HostId:       r.HostId,
		Participants: toParticipants(r.Participants()),
		Playback:     toPlayback(state),
		UsersInAd:    usersInAd,
		CreatedAt:    r.CreatedAt.UnixMilli(),
	}
}
