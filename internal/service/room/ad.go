package room

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/protocol"
	"github.com/sharetube/syncroom/internal/service/ad"
)

type StartAdParams struct {
	SenderConnId        string
	EstimatedDurationMs *int64
}

type StartAdResponse struct {
	RoomId           string
	IsFirstInEpisode bool
	PauseForAd       protocol.PauseForAd
	// Conns are the participants that have to pause. Empty when everyone is already in an ad.
	Conns []*websocket.Conn
}

func (s service) StartAd(ctx context.Context, params *StartAdParams) (StartAdResponse, error) {
	s.logger.DebugContext(ctx, "called", "params", params)
	defer s.logger.DebugContext(ctx, "returned")

	roomId, err := s.getRoomIdByConn(ctx, params.SenderConnId)
	if err != nil {
		return StartAdResponse{}, err
	}

	var enterRes ad.EnterAdResult
	err = s.rooms.Update(ctx, roomId, func(r *domain.Room) error {
		participant, ok := r.Participant(params.SenderConnId)
		if !ok {
			return ErrNotInRoom
		}

		var err error
		enterRes, err = s.coordinator.ApplyEnterAd(ctx, r, &ad.EnterAdParams{
			ParticipantId:       participant.Id,
			DisplayName:         participant.Name(),
			EstimatedDurationMs: params.EstimatedDurationMs,
		})
		return err
	})
	if err != nil {
		return StartAdResponse{}, s.mapError(err)
	}

	return StartAdResponse{
		RoomId:           roomId,
		IsFirstInEpisode: enterRes.IsFirstInEpisode,
		PauseForAd: protocol.PauseForAd{
			UsersInAd:           toAdParticipants(enterRes.UsersInAd),
			ResumeTimestampHint: enterRes.Playback.Position,
		},
		Conns: s.getConns(ctx, enterRes.UsersToPause),
	}, nil
}

type FinishAdResponse struct {
	RoomId string
	// ResumeAll is set on the call that ended the episode; Conns is then the whole room.
	ResumeAll *protocol.ResumeAll
	Conns     []*websocket.Conn
	// PauseForAd is set for the caller while others are still in an ad.
	PauseForAd *protocol.PauseForAd
	// SyncState is set for the caller when no episode was running.
	SyncState *protocol.SyncState
}

func (s service) FinishAd(ctx context.Context, connId string) (FinishAdResponse, error) {
	s.logger.DebugContext(ctx, "called", "conn_id", connId)
	defer s.logger.DebugContext(ctx, "returned")

	roomId, err := s.getRoomIdByConn(ctx, connId)
	if err != nil {
		return FinishAdResponse{}, err
	}

	var (
		exitRes    ad.ExitAdResult
		recipients []string
		state      domain.PlaybackState
	)
	err = s.rooms.Update(ctx, roomId, func(r *domain.Room) error {
		if _, ok := r.Participant(connId); !ok {
			return ErrNotInRoom
		}

		var err error
		exitRes, err = s.coordinator.ApplyExitAd(ctx, r, connId)
		if err != nil {
			return err
		}

		switch {
		case exitRes.EpisodeEnded:
			recipients = r.ParticipantIds()
		case !exitRes.AllClear:
			state, err = s.authority.GetPlayback(ctx, r.Id)
		}
		return err
	})
	if err != nil {
		return FinishAdResponse{}, s.mapError(err)
	}

	res := FinishAdResponse{RoomId: roomId}
	switch {
	case exitRes.EpisodeEnded:
		res.ResumeAll = &protocol.ResumeAll{
			Timestamp: exitRes.ResumePosition,
			IsPlaying: exitRes.ResumeIsPlaying,
		}
		res.Conns = s.getConns(ctx, recipients)
		s.logger.InfoContext(ctx, "resuming room after ads", "room_id", roomId, "timestamp", exitRes.ResumePosition)
	case !exitRes.AllClear:
		res.PauseForAd = &protocol.PauseForAd{
			UsersInAd:           toAdParticipants(exitRes.UsersInAd),
			ResumeTimestampHint: state.Position,
		}
	default:
		syncState := protocol.SyncState{
			Playback: protocol.Playback{
				IsPlaying: exitRes.ResumeIsPlaying,
				Position:  exitRes.ResumePosition,
			},
			ServerTime: s.clock.Now().UnixMilli(),
		}
		if current, err := s.authority.GetPlayback(ctx, roomId); err == nil {
			syncState = s.syncState(current, "")
		}
		res.SyncState = &syncState
	}

	return res, nil
}
