package room

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	roomRepo "github.com/sharetube/syncroom/internal/repository/room"
	"github.com/sharetube/syncroom/internal/service/ad"
	"github.com/sharetube/syncroom/internal/service/playback"
)

// getConns resolves connection ids to live connections. Ids without a connection are skipped:
// fan-out is best effort.
func (s service) getConns(ctx context.Context, connIds []string) []*websocket.Conn {
	conns := make([]*websocket.Conn, 0, len(connIds))
	for _, connId := range connIds {
		conn, err := s.connRepo.GetConn(connId)
		if err != nil {
			s.logger.DebugContext(ctx, "skipping recipient", "conn_id", connId, "error", err)
			continue
		}

		conns = append(conns, conn)
	}

	return conns
}

func (s service) getRoomIdByConn(ctx context.Context, connId string) (string, error) {
	roomId, err := s.rooms.GetRoomIdByConn(ctx, connId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrConnNotFound) {
			return "", ErrNotInRoom
		}
		return "", err
	}

	return roomId, nil
}

func (s service) mapError(err error) error {
	switch {
	case errors.Is(err, roomRepo.ErrRoomNotFound),
		errors.Is(err, playback.ErrRoomNotFound),
		errors.Is(err, ad.ErrRoomNotFound):
		return ErrRoomNotFound
	case errors.Is(err, ad.ErrParticipantNotFound):
		return ErrNotInRoom
	case errors.Is(err, roomRepo.ErrConnAlreadyBound):
		return ErrAlreadyInRoom
	}

	return err
}

func without(ids []string, excluded string) []string {
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != excluded {
			res = append(res, id)
		}
	}

	return res
}
