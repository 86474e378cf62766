package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/service/ad"
	"github.com/sharetube/syncroom/internal/service/playback"
	"github.com/sharetube/syncroom/pkg/randstr"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyInRoom  = errors.New("connection is already in a room")
	ErrNotInRoom      = errors.New("connection is not in a room")
	ErrConnNotFound   = errors.New("connection not found")
	ErrRoomIdConflict = errors.New("failed to allocate room id")
)

type iRoomStore interface {
	Create(ctx context.Context, r *domain.Room) error
	Update(ctx context.Context, roomId string, fn func(*domain.Room) error) error
	Delete(ctx context.Context, roomId string) error
	Get(ctx context.Context, roomId string) (*domain.Room, error)
	GetRoomIdByConn(ctx context.Context, connId string) (string, error)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, connId string) error
	RemoveByConnId(connId string) (*websocket.Conn, error)
	GetConn(connId string) (*websocket.Conn, error)
}

type iPlaybackAuthority interface {
	InitPlayback(ctx context.Context, r *domain.Room) (domain.PlaybackState, error)
	ApplyPlayback(ctx context.Context, r *domain.Room, params *playback.SetPlaybackParams) (domain.PlaybackState, error)
	GetPlayback(ctx context.Context, roomId string) (domain.PlaybackState, error)
	RemovePlayback(ctx context.Context, roomId string) error
}

type iAdCoordinator interface {
	ApplyEnterAd(ctx context.Context, r *domain.Room, params *ad.EnterAdParams) (ad.EnterAdResult, error)
	ApplyExitAd(ctx context.Context, r *domain.Room, participantId string) (ad.ExitAdResult, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	MembersLimit int
	RoomIdLength int
}

// service is the room registry: it owns room lifecycle and routes participant events to the
// playback authority and the ad coordinator, returning who has to be told what.
type service struct {
	rooms        iRoomStore
	connRepo     iConnRepo
	authority    iPlaybackAuthority
	coordinator  iAdCoordinator
	generator    iGenerator
	clock        clockwork.Clock
	membersLimit int
	roomIdLength int
	logger       *slog.Logger
}

func NewService(
	rooms iRoomStore,
	connRepo iConnRepo,
	authority iPlaybackAuthority,
	coordinator iAdCoordinator,
	clock clockwork.Clock,
	cfg *Config,
	logger *slog.Logger,
) *service {
	roomIdLength := cfg.RoomIdLength
	if roomIdLength <= 0 {
		roomIdLength = 8
	}

	letterBytes := []byte("abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789")

	return &service{
		rooms:        rooms,
		connRepo:     connRepo,
		authority:    authority,
		coordinator:  coordinator,
		generator:    randstr.New(letterBytes),
		clock:        clock,
		membersLimit: cfg.MembersLimit,
		roomIdLength: roomIdLength,
		logger:       logger,
	}
}
