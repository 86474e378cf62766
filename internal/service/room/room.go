package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/protocol"
	roomRepo "github.com/sharetube/syncroom/internal/repository/room"
)

const maxRoomIdAttempts = 5

func (s service) ConnectParticipant(conn *websocket.Conn, connId string) error {
	return s.connRepo.Add(conn, connId)
}

type CreateRoomParams struct {
	ConnId      string
	UserId      string
	DisplayName *string
	DeviceType  domain.DeviceType
}

type CreateRoomResponse struct {
	RoomId        string
	ParticipantId string
	Room          protocol.Room
	ServerTime    int64
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	s.logger.DebugContext(ctx, "called", "params", params)
	defer s.logger.DebugContext(ctx, "returned")

	if _, err := s.rooms.GetRoomIdByConn(ctx, params.ConnId); err == nil {
		return CreateRoomResponse{}, ErrAlreadyInRoom
	}

	now := s.clock.Now()
	host := domain.Participant{
		Id:          params.ConnId,
		UserId:      params.UserId,
		DeviceType:  deviceTypeOrDefault(params.DeviceType),
		DisplayName: params.DisplayName,
		JoinedAt:    now,
	}

	var r *domain.Room
	for attempt := 0; ; attempt++ {
		if attempt == maxRoomIdAttempts {
			return CreateRoomResponse{}, ErrRoomIdConflict
		}

		r = domain.NewRoom(s.generator.GenerateRandomString(s.roomIdLength), host, now)
		err := s.rooms.Create(ctx, r)
		if err == nil {
			break
		}
		if !errors.Is(err, roomRepo.ErrRoomAlreadyExists) {
			return CreateRoomResponse{}, s.mapError(err)
		}
	}

	var res CreateRoomResponse
	if err := s.rooms.Update(ctx, r.Id, func(r *domain.Room) error {
		state, err := s.authority.InitPlayback(ctx, r)
		if err != nil {
			return err
		}

		res = CreateRoomResponse{
			RoomId:        r.Id,
			ParticipantId: params.ConnId,
			Room:          toRoom(r, state),
			ServerTime:    s.clock.Now().UnixMilli(),
		}
		return nil
	}); err != nil {
		if delErr := s.rooms.Delete(ctx, r.Id); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete room", "room_id", r.Id, "error", delErr)
		}
		return CreateRoomResponse{}, fmt.Errorf("failed to init playback: %w", s.mapError(err))
	}

	s.logger.InfoContext(ctx, "room created", "room_id", res.RoomId, "host_id", params.ConnId)

	return res, nil
}

type JoinRoomParams struct {
	RoomId      string
	ConnId      string
	UserId      string
	DisplayName *string
	DeviceType  domain.DeviceType
}

type JoinRoomResponse struct {
	RoomId            string
	ParticipantId     string
	Room              protocol.Room
	JoinedParticipant protocol.Participant
	ServerTime        int64
	// Conns are the participants that were already in the room.
	Conns []*websocket.Conn
	// PauseForAd is set when the room is inside an ad episode at join time.
	PauseForAd *protocol.PauseForAd
}

func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	s.logger.DebugContext(ctx, "called", "params", params)
	defer s.logger.DebugContext(ctx, "returned")

	if _, err := s.rooms.GetRoomIdByConn(ctx, params.ConnId); err == nil {
		return JoinRoomResponse{}, ErrAlreadyInRoom
	}

	var (
		res         JoinRoomResponse
		others      []string
		participant = domain.Participant{
			Id:          params.ConnId,
			UserId:      params.UserId,
			DeviceType:  deviceTypeOrDefault(params.DeviceType),
			DisplayName: params.DisplayName,
			JoinedAt:    s.clock.Now(),
		}
	)
	err := s.rooms.Update(ctx, params.RoomId, func(r *domain.Room) error {
		if s.membersLimit > 0 && r.Len() >= s.membersLimit {
			return ErrRoomFull
		}

		state, err := s.authority.GetPlayback(ctx, r.Id)
		if err != nil {
			return err
		}

		others = r.ParticipantIds()
		if err := r.AddParticipant(participant); err != nil {
			return ErrAlreadyInRoom
		}

		joined, _ := r.Participant(participant.Id)
		res = JoinRoomResponse{
			RoomId:            r.Id,
			ParticipantId:     participant.Id,
			Room:              toRoom(r, state),
			JoinedParticipant: toParticipant(joined),
			ServerTime:        s.clock.Now().UnixMilli(),
		}
		if episode, ok := r.Episode(); ok {
			res.PauseForAd = &protocol.PauseForAd{
				UsersInAd:           toAdParticipants(episode.Members()),
				ResumeTimestampHint: state.Position,
			}
		}
		return nil
	})
	if err != nil {
		return JoinRoomResponse{}, s.mapError(err)
	}

	res.Conns = s.getConns(ctx, others)
	s.logger.InfoContext(ctx, "participant joined", "room_id", res.RoomId, "participant_id", res.ParticipantId)

	return res, nil
}

type LeaveRoomResponse struct {
	RoomId            string
	LeftParticipantId string
	// Room is nil when the departure destroyed the room.
	Room *protocol.Room
	// NewHostId is empty unless the host role moved.
	NewHostId string
	// Conns are the remaining participants.
	Conns []*websocket.Conn
	// ResumeAll is set when the leaver was the last participant inside an ad.
	ResumeAll *protocol.ResumeAll
	// PauseForAd carries the shrunk waiting set when the leaver was in an ad that is still
	// running. It goes to PauseConns, the remaining participants outside the ad.
	PauseForAd *protocol.PauseForAd
	PauseConns []*websocket.Conn
}

// LeaveRoom removes the connection from its room. A participant leaving mid-ad is taken out of
// the ad mapping in the same room operation.
func (s service) LeaveRoom(ctx context.Context, connId string) (LeaveRoomResponse, error) {
	s.logger.DebugContext(ctx, "called", "conn_id", connId)
	defer s.logger.DebugContext(ctx, "returned")

	roomId, err := s.getRoomIdByConn(ctx, connId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	res := LeaveRoomResponse{
		RoomId:            roomId,
		LeftParticipantId: connId,
	}
	var remaining, paused []string
	err = s.rooms.Update(ctx, roomId, func(r *domain.Room) error {
		if _, ok := r.Participant(connId); !ok {
			return ErrNotInRoom
		}

		state, err := s.authority.GetPlayback(ctx, r.Id)
		if err != nil {
			return err
		}

		if episode, ok := r.Episode(); ok && episode.Has(connId) {
			exitRes, err := s.coordinator.ApplyExitAd(ctx, r, connId)
			if err != nil {
				return err
			}

			if exitRes.EpisodeEnded {
				res.ResumeAll = &protocol.ResumeAll{
					Timestamp: exitRes.ResumePosition,
					IsPlaying: exitRes.ResumeIsPlaying,
				}
			} else {
				res.PauseForAd = &protocol.PauseForAd{
					UsersInAd:           toAdParticipants(exitRes.UsersInAd),
					ResumeTimestampHint: state.Position,
				}
			}
		}

		_, newHostId, err := r.RemoveParticipant(connId)
		if err != nil {
			return ErrNotInRoom
		}
		res.NewHostId = newHostId

		if r.IsEmpty() {
			res.ResumeAll = nil
			res.PauseForAd = nil
			return nil
		}

		snapshot := toRoom(r, state)
		res.Room = &snapshot
		remaining = r.ParticipantIds()
		if episode, ok := r.Episode(); ok && res.PauseForAd != nil {
			for _, id := range remaining {
				if !episode.Has(id) {
					paused = append(paused, id)
				}
			}
		}
		return nil
	})
	if err != nil {
		return LeaveRoomResponse{}, s.mapError(err)
	}

	if res.Room == nil {
		if err := s.authority.RemovePlayback(ctx, roomId); err != nil {
			s.logger.WarnContext(ctx, "failed to remove playback", "room_id", roomId, "error", err)
		}
		s.logger.InfoContext(ctx, "room destroyed", "room_id", roomId)
	}

	res.Conns = s.getConns(ctx, remaining)
	if res.PauseForAd != nil {
		res.PauseConns = s.getConns(ctx, paused)
	}
	s.logger.InfoContext(ctx, "participant left", "room_id", roomId, "participant_id", connId, "new_host_id", res.NewHostId)

	return res, nil
}

type DisconnectParticipantResponse struct {
	// Leave is nil when the connection was not in a room.
	Leave *LeaveRoomResponse
}

// DisconnectParticipant forgets the connection, leaving its room first.
func (s service) DisconnectParticipant(ctx context.Context, connId string) (DisconnectParticipantResponse, error) {
	var res DisconnectParticipantResponse
	leaveRes, err := s.LeaveRoom(ctx, connId)
	switch {
	case err == nil:
		res.Leave = &leaveRes
	case errors.Is(err, ErrNotInRoom), errors.Is(err, ErrRoomNotFound):
	default:
		s.logger.ErrorContext(ctx, "failed to leave room on disconnect", "conn_id", connId, "error", err)
	}

	if _, err := s.connRepo.RemoveByConnId(connId); err != nil {
		return res, fmt.Errorf("failed to remove connection: %w", err)
	}

	return res, nil
}

func (s service) GetRoomByConnection(ctx context.Context, connId string) (protocol.Room, error) {
	roomId, err := s.getRoomIdByConn(ctx, connId)
	if err != nil {
		return protocol.Room{}, err
	}

	return s.GetRoom(ctx, roomId)
}

func (s service) GetRoom(ctx context.Context, roomId string) (protocol.Room, error) {
	r, err := s.rooms.Get(ctx, roomId)
	if err != nil {
		return protocol.Room{}, s.mapError(err)
	}

	state, err := s.authority.GetPlayback(ctx, roomId)
	if err != nil {
		return protocol.Room{}, s.mapError(err)
	}

	return toRoom(r, state), nil
}

func deviceTypeOrDefault(d domain.DeviceType) domain.DeviceType {
	if d.Valid() {
		return d
	}

	return domain.DeviceDesktop
}
