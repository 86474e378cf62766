package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/protocol"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/validator"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

type iRoomService interface {
	ConnectParticipant(conn *websocket.Conn, connId string) error
	DisconnectParticipant(ctx context.Context, connId string) (room.DisconnectParticipantResponse, error)
	CreateRoom(ctx context.Context, params *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(ctx context.Context, params *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(ctx context.Context, connId string) (room.LeaveRoomResponse, error)
	GetRoom(ctx context.Context, roomId string) (protocol.Room, error)
	UpdatePlayback(ctx context.Context, params *room.UpdatePlaybackParams) (room.UpdatePlaybackResponse, error)
	GetState(ctx context.Context, connId string) (room.GetStateResponse, error)
	StartAd(ctx context.Context, params *room.StartAdParams) (room.StartAdResponse, error)
	FinishAd(ctx context.Context, connId string) (room.FinishAdResponse, error)
}

type Config struct {
	WriteTimeout time.Duration
}

type controller struct {
	roomService  iRoomService
	upgrader     websocket.Upgrader
	wsRouter     *wsrouter.WSRouter
	validate     *validator.Validator
	writeLocks   *sync.Map
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewController(roomService iRoomService, cfg *Config, logger *slog.Logger) *controller {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService:  roomService,
		validate:     validator.NewValidator(),
		writeLocks:   &sync.Map{},
		writeTimeout: writeTimeout,
		logger:       logger,
	}
	c.wsRouter = c.getWSRouter()

	return c
}
