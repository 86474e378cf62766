package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/protocol"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	connId := uuid.NewString()
	ctx := context.WithValue(r.Context(), connIdCtxKey, connId)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("conn_id", connId))

	if err := c.roomService.ConnectParticipant(conn, connId); err != nil {
		c.logger.WarnContext(ctx, "failed to connect participant", "error", err)
		return
	}
	defer c.disconnect(ctx, conn, connId)

	c.logger.InfoContext(ctx, "connection opened")
	if err := c.wsRouter.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}
}

func (c controller) disconnect(ctx context.Context, conn *websocket.Conn, connId string) {
	defer c.forgetConn(conn)

	res, err := c.roomService.DisconnectParticipant(ctx, connId)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect participant", "error", err)
	}

	if res.Leave != nil {
		c.broadcastLeave(ctx, res.Leave)
	}
}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ protocol.Empty) error {
	return nil
}

func (c controller) handleCreateRoom(ctx context.Context, conn *websocket.Conn, input protocol.CreateRoomInput) error {
	createRoomResp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		ConnId:      c.getConnIdFromCtx(ctx),
		UserId:      input.UserId,
		DisplayName: input.DisplayName,
		DeviceType:  domain.DeviceType(input.DeviceType),
	})
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return c.writeToConn(ctx, conn, &protocol.Output{
		Type: protocol.TypeRoomCreated,
		Payload: protocol.RoomEntered{
			RoomId:        createRoomResp.RoomId,
			ParticipantId: createRoomResp.ParticipantId,
			Room:          createRoomResp.Room,
			ServerTime:    createRoomResp.ServerTime,
		},
	})
}

func (c controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, input protocol.JoinRoomInput) error {
	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomId:      input.RoomId,
		ConnId:      c.getConnIdFromCtx(ctx),
		UserId:      input.UserId,
		DisplayName: input.DisplayName,
		DeviceType:  domain.DeviceType(input.DeviceType),
	})
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	if err := c.writeToConn(ctx, conn, &protocol.Output{
		Type: protocol.TypeRoomJoined,
		Payload: protocol.RoomEntered{
			RoomId:        joinRoomResp.RoomId,
			ParticipantId: joinRoomResp.ParticipantId,
			Room:          joinRoomResp.Room,
			ServerTime:    joinRoomResp.ServerTime,
		},
	}); err != nil {
		return fmt.Errorf("failed to write room joined: %w", err)
	}

	if joinRoomResp.PauseForAd != nil {
		if err := c.writeToConn(ctx, conn, &protocol.Output{
			Type:    protocol.TypePauseForAd,
			Payload: joinRoomResp.PauseForAd,
		}); err != nil {
			return fmt.Errorf("failed to write pause for ad: %w", err)
		}
	}

	if err := c.broadcast(ctx, joinRoomResp.Conns, &protocol.Output{
		Type: protocol.TypeParticipantJoined,
		Payload: protocol.ParticipantJoined{
			Participant:  joinRoomResp.JoinedParticipant,
			Participants: joinRoomResp.Room.Participants,
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to broadcast participant joined", "error", err)
	}

	return nil
}

func (c controller) handleLeaveRoom(ctx context.Context, _ *websocket.Conn, _ protocol.Empty) error {
	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, c.getConnIdFromCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	c.broadcastLeave(ctx, &leaveRoomResp)

	return nil
}

func (c controller) broadcastLeave(ctx context.Context, res *room.LeaveRoomResponse) {
	if res.Room == nil {
		return
	}

	if err := c.broadcast(ctx, res.Conns, &protocol.Output{
		Type: protocol.TypeParticipantLeft,
		Payload: protocol.ParticipantLeft{
			ParticipantId: res.LeftParticipantId,
			HostId:        res.Room.HostId,
			Participants:  res.Room.Participants,
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to broadcast participant left", "error", err)
	}

	if res.NewHostId != "" {
		if err := c.broadcast(ctx, res.Conns, &protocol.Output{
			Type:    protocol.TypeHostChanged,
			Payload: protocol.HostChanged{HostId: res.NewHostId},
		}); err != nil {
			c.logger.WarnContext(ctx, "failed to broadcast host changed", "error", err)
		}
	}

	if res.ResumeAll != nil {
		if err := c.broadcast(ctx, res.Conns, &protocol.Output{
			Type:    protocol.TypeResumeAll,
			Payload: res.ResumeAll,
		}); err != nil {
			c.logger.WarnContext(ctx, "failed to broadcast resume all", "error", err)
		}
	}

	if res.PauseForAd != nil && len(res.PauseConns) > 0 {
		if err := c.broadcast(ctx, res.PauseConns, &protocol.Output{
			Type:    protocol.TypePauseForAd,
			Payload: res.PauseForAd,
		}); err != nil {
			c.logger.WarnContext(ctx, "failed to broadcast pause for ad", "error", err)
		}
	}
}

// handleGetState answers a heartbeat. pause_for_ad, when due, is written before sync_state;
// clients paused for an ad rely on that order.
func (c controller) handleGetState(ctx context.Context, conn *websocket.Conn, _ protocol.Empty) error {
	getStateResp, err := c.roomService.GetState(ctx, c.getConnIdFromCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}

	if getStateResp.PauseForAd != nil {
		if err := c.writeToConn(ctx, conn, &protocol.Output{
			Type:    protocol.TypePauseForAd,
			Payload: getStateResp.PauseForAd,
		}); err != nil {
			return fmt.Errorf("failed to write pause for ad: %w", err)
		}
	}

	return c.writeToConn(ctx, conn, &protocol.Output{
		Type:    protocol.TypeSyncState,
		Payload: getStateResp.SyncState,
	})
}

func (c controller) handlePlaybackUpdate(ctx context.Context, _ *websocket.Conn, input protocol.PlaybackUpdateInput) error {
	var platform *domain.Platform
	if input.Platform != nil && *input.Platform != "" {
		p := domain.Platform(*input.Platform)
		platform = &p
	}

	updatePlaybackResp, err := c.roomService.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		SenderConnId: c.getConnIdFromCtx(ctx),
		IsPlaying:    input.IsPlaying,
		Position:     input.Position,
		Platform:     platform,
	})
	if err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	if err := c.broadcast(ctx, updatePlaybackResp.Conns, &protocol.Output{
		Type:    protocol.TypeSyncState,
		Payload: updatePlaybackResp.SyncState,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to broadcast sync state", "error", err)
	}

	return nil
}

func (c controller) handleAdStarted(ctx context.Context, _ *websocket.Conn, input protocol.AdStartedInput) error {
	startAdResp, err := c.roomService.StartAd(ctx, &room.StartAdParams{
		SenderConnId:        c.getConnIdFromCtx(ctx),
		EstimatedDurationMs: input.EstimatedDurationMs,
	})
	if err != nil {
		return fmt.Errorf("failed to start ad: %w", err)
	}

	if err := c.broadcast(ctx, startAdResp.Conns, &protocol.Output{
		Type:    protocol.TypePauseForAd,
		Payload: startAdResp.PauseForAd,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to broadcast pause for ad", "error", err)
	}

	return nil
}

func (c controller) handleAdFinished(ctx context.Context, conn *websocket.Conn, _ protocol.Empty) error {
	finishAdResp, err := c.roomService.FinishAd(ctx, c.getConnIdFromCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to finish ad: %w", err)
	}

	switch {
	case finishAdResp.ResumeAll != nil:
		if err := c.broadcast(ctx, finishAdResp.Conns, &protocol.Output{
			Type:    protocol.TypeResumeAll,
			Payload: finishAdResp.ResumeAll,
		}); err != nil {
			c.logger.WarnContext(ctx, "failed to broadcast resume all", "error", err)
		}
	case finishAdResp.PauseForAd != nil:
		return c.writeToConn(ctx, conn, &protocol.Output{
			Type:    protocol.TypePauseForAd,
			Payload: finishAdResp.PauseForAd,
		})
	case finishAdResp.SyncState != nil:
		return c.writeToConn(ctx, conn, &protocol.Output{
			Type:    protocol.TypeSyncState,
			Payload: finishAdResp.SyncState,
		})
	}

	return nil
}
