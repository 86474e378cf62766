package session

import (
	"context"
	"time"

	"github.com/sharetube/syncroom/internal/protocol"
)

func (s *Session) dispatch(ctx context.Context, env protocol.Envelope, receivedAt time.Time) {
	logger := s.logger.With("type", env.Type)

	switch env.Type {
	case protocol.TypeRoomCreated, protocol.TypeRoomJoined:
		entered, err := decode[protocol.RoomEntered](env.Payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to decode message", "error", err)
			return
		}
		s.onEntered(ctx, entered, receivedAt)

	case protocol.TypeSyncState:
		syncState, err := decode[protocol.SyncState](env.Payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to decode message", "error", err)
			return
		}
		s.loop.ApplyRemote(remoteState(syncState.Playback, syncState.ServerTime, receivedAt))

	case protocol.TypePauseForAd:
		pause, err := decode[protocol.PauseForAd](env.Payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to decode message", "error", err)
			return
		}
		logger.InfoContext(ctx, "paused for ad", "users_in_ad", len(pause.UsersInAd), "hint", pause.ResumeTimestampHint)
		s.loop.PauseForAd()

	case protocol.TypeResumeAll:
		resume, err := decode[protocol.ResumeAll](env.Payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to decode message", "error", err)
			return
		}
		logger.InfoContext(ctx, "resuming", "timestamp", resume.Timestamp, "is_playing", resume.IsPlaying)
		s.loop.ResumeAll(resume.Timestamp, resume.IsPlaying)

	case protocol.TypeParticipantJoined:
		joined, err := decode[protocol.ParticipantJoined](env.Payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to decode message", "error", err)
			return
		}
		s.mu.Lock()
		s.participants = joined.Participants
		s.mu.Unlock()

	case protocol.TypeParticipantLeft:
		left, err := decode[protocol.ParticipantLeft](env.Payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to decode message", "error", err)
			return
		}
		s.mu.Lock()
		s.participants = left.Participants
		s.hostId = left.HostId
		s.mu.Unlock()

	case protocol.TypeHostChanged:
		changed, err := decode[protocol.HostChanged](env.Payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to decode message", "error", err)
			return
		}
		s.mu.Lock()
		s.hostId = changed.HostId
		s.mu.Unlock()

	case protocol.TypeError:
		payload, err := decode[protocol.Error](env.Payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to decode message", "error", err)
			return
		}
		serverErr := &ServerError{Code: payload.Code, Message: payload.Message}
		if !s.resolvePending(result{err: serverErr}) {
			logger.WarnContext(ctx, "server rejected message", "code", payload.Code, "message", payload.Message)
		}

	default:
		logger.DebugContext(ctx, "ignoring message")
	}
}

func (s *Session) onEntered(ctx context.Context, entered protocol.RoomEntered, receivedAt time.Time) {
	s.mu.Lock()
	s.roomId = entered.RoomId
	s.participantId = entered.ParticipantId
	s.participants = entered.Room.Participants
	s.hostId = entered.Room.HostId
	s.mu.Unlock()

	s.loop.Activate(context.WithoutCancel(ctx), remoteState(entered.Room.Playback, entered.ServerTime, receivedAt))
	if len(entered.Room.UsersInAd) > 0 {
		s.loop.PauseForAd()
	}

	s.resolvePending(result{entered: entered})
}

func (s *Session) resolvePending(res result) bool {
	s.mu.Lock()
	ch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if ch == nil {
		return false
	}

	ch <- res
	return true
}
