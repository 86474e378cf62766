package room

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/protocol"
	"github.com/sharetube/syncroom/internal/service/playback"
)

type UpdatePlaybackParams struct {
	SenderConnId string
	IsPlaying    bool
	Position     float64
	Platform     *domain.Platform
}

type UpdatePlaybackResponse struct {
	SyncState protocol.SyncState
	// Conns never include the sender.
	Conns []*websocket.Conn
}

func (s service) UpdatePlayback(ctx context.Context, params *UpdatePlaybackParams) (UpdatePlaybackResponse, error) {
	s.logger.DebugContext(ctx, "called", "params", params)
	defer s.logger.DebugContext(ctx, "returned")

	roomId, err := s.getRoomIdByConn(ctx, params.SenderConnId)
	if err != nil {
		return UpdatePlaybackResponse{}, err
	}

	var (
		state      domain.PlaybackState
		recipients []string
	)
	err = s.rooms.Update(ctx, roomId, func(r *domain.Room) error {
		if _, ok := r.Participant(params.SenderConnId); !ok {
			return ErrNotInRoom
		}

		var err error
		state, err = s.authority.ApplyPlayback(ctx, r, &playback.SetPlaybackParams{
			IsPlaying: params.IsPlaying,
			Position:  params.Position,
			Platform:  params.Platform,
		})
		if err != nil {
			return err
		}

		recipients = without(r.ParticipantIds(), params.SenderConnId)
		return nil
	})
	if err != nil {
		return UpdatePlaybackResponse{}, s.mapError(err)
	}

	return UpdatePlaybackResponse{
		SyncState: s.syncState(state, params.SenderConnId),
		Conns:     s.getConns(ctx, recipients),
	}, nil
}

type GetStateResponse struct {
	SyncState protocol.SyncState
	// PauseForAd is set when an episode is running and the caller is not part of it.
	PauseForAd *protocol.PauseForAd
}

// GetState answers a heartbeat resync. It is read-only.
func (s service) GetState(ctx context.Context, connId string) (GetStateResponse, error) {
	roomId, err := s.getRoomIdByConn(ctx, connId)
	if err != nil {
		return GetStateResponse{}, err
	}

	r, err := s.rooms.Get(ctx, roomId)
	if err != nil {
		return GetStateResponse{}, s.mapError(err)
	}

	state, err := s.authority.GetPlayback(ctx, roomId)
	if err != nil {
		return GetStateResponse{}, s.mapError(err)
	}

	res := GetStateResponse{
		SyncState: s.syncState(state, ""),
	}
	if episode, ok := r.Episode(); ok && !episode.Has(connId) {
		res.PauseForAd = &protocol.PauseForAd{
			UsersInAd:           toAdParticipants(episode.Members()),
			ResumeTimestampHint: state.Position,
		}
	}

	return res, nil
}

func (s service) syncState(state domain.PlaybackState, senderId string) protocol.SyncState {
	return protocol.SyncState{
		Playback:   toPlayback(state),
		SenderId:   senderId,
		ServerTime: s.clock.Now().UnixMilli(),
	}
}
