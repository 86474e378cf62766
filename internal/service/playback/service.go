package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/domain"
	playbackRepo "github.com/sharetube/syncroom/internal/repository/playback"
	roomRepo "github.com/sharetube/syncroom/internal/repository/room"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

type iRoomStore interface {
	Update(ctx context.Context, roomId string, fn func(*domain.Room) error) error
}

type iPlaybackRepo interface {
	SetPlayback(ctx context.Context, roomId string, state domain.PlaybackState) error
	GetPlayback(ctx context.Context, roomId string) (domain.PlaybackState, error)
	RemovePlayback(ctx context.Context, roomId string) error
}

// Authority is the single writer of room playback state. Writes are last-write-wins and are
// stamped with the authority's clock, never the caller's.
type Authority struct {
	rooms  iRoomStore
	repo   iPlaybackRepo
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewAuthority(rooms iRoomStore, repo iPlaybackRepo, clock clockwork.Clock, logger *slog.Logger) *Authority {
	return &Authority{
		rooms:  rooms,
		repo:   repo,
		clock:  clock,
		logger: logger,
	}
}

type SetPlaybackParams struct {
	IsPlaying bool
	Position  float64
	// Platform keeps the previous value when nil.
	Platform *domain.Platform
}

func (a *Authority) SetPlayback(ctx context.Context, roomId string, params *SetPlaybackParams) (domain.PlaybackState, error) {
	var state domain.PlaybackState
	err := a.rooms.Update(ctx, roomId, func(r *domain.Room) error {
		var err error
		state, err = a.ApplyPlayback(ctx, r, params)
		return err
	})
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return domain.PlaybackState{}, ErrRoomNotFound
		}
		return domain.PlaybackState{}, fmt.Errorf("failed to set playback: %w", err)
	}

	return state, nil
}

// ApplyPlayback overwrites the playback of r. The caller must hold r's lock.
func (a *Authority) ApplyPlayback(ctx context.Context, r *domain.Room, params *SetPlaybackParams) (domain.PlaybackState, error) {
	platform := domain.PlatformGeneric
	if params.Platform != nil {
		platform = *params.Platform
	} else {
		previous, err := a.repo.GetPlayback(ctx, r.Id)
		if err != nil && !errors.Is(err, playbackRepo.ErrPlaybackNotFound) {
			return domain.PlaybackState{}, fmt.Errorf("failed to get playback: %w", err)
		}
		if err == nil && previous.Platform != "" {
			platform = previous.Platform
		}
	}

	state := domain.PlaybackState{
		IsPlaying: params.IsPlaying,
		Position:  params.Position,
		UpdatedAt: a.clock.Now(),
		Platform:  platform,
	}
	if err := a.repo.SetPlayback(ctx, r.Id, state); err != nil {
		return domain.PlaybackState{}, fmt.Errorf("failed to write playback: %w", err)
	}

	a.logger.DebugContext(ctx, "playback set", "room_id", r.Id, "is_playing", state.IsPlaying, "position", state.Position)

	return state, nil
}

// InitPlayback writes the initial paused-at-zero record for a new room. The caller must hold r's lock.
func (a *Authority) InitPlayback(ctx context.Context, r *domain.Room) (domain.PlaybackState, error) {
	state := domain.NewPlaybackState(a.clock.Now())
	if err := a.repo.SetPlayback(ctx, r.Id, state); err != nil {
		return domain.PlaybackState{}, fmt.Errorf("failed to init playback: %w", err)
	}

	return state, nil
}

func (a *Authority) GetPlayback(ctx context.Context, roomId string) (domain.PlaybackState, error) {
	state, err := a.repo.GetPlayback(ctx, roomId)
	if err != nil {
		if errors.Is(err, playbackRepo.ErrPlaybackNotFound) {
			return domain.PlaybackState{}, ErrRoomNotFound
		}
		return domain.PlaybackState{}, fmt.Errorf("failed to get playback: %w", err)
	}

	return state, nil
}

// RemovePlayback drops the record of a destroyed room. Missing records are ignored.
func (a *Authority) RemovePlayback(ctx context.Context, roomId string) error {
	if err := a.repo.RemovePlayback(ctx, roomId); err != nil && !errors.Is(err, playbackRepo.ErrPlaybackNotFound) {
		return fmt.Errorf("failed to remove playback: %w", err)
	}

	return nil
}
