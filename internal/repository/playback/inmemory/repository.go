package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/playback"
)

type repo struct {
	records map[string]domain.PlaybackState
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		records: make(map[string]domain.PlaybackState),
		logger:  logger,
	}
}

func (r *repo) SetPlayback(ctx context.Context, roomId string, state domain.PlaybackState) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "state", state)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[roomId] = state

	return nil
}

func (r *repo) GetPlayback(ctx context.Context, roomId string) (domain.PlaybackState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.records[roomId]
	if !ok {
		r.logger.DebugContext(ctx, "returned", "room_id", roomId, "error", playback.ErrPlaybackNotFound)
		return domain.PlaybackState{}, playback.ErrPlaybackNotFound
	}

	return state, nil
}

func (r *repo) RemovePlayback(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[roomId]; !ok {
		return playback.ErrPlaybackNotFound
	}
	delete(r.records, roomId)

	return nil
}
