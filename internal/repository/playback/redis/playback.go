package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/playback"
	omitnilpointers "github.com/sharetube/syncroom/pkg/omit-nil-pointers"
)

type record struct {
	IsPlaying bool    `redis:"is_playing"`
	Position  float64 `redis:"position"`
	UpdatedAt int64   `redis:"updated_at"`
	Platform  string  `redis:"platform"`
}

func (r repo) getPlaybackKey(roomId string) string {
	return "room:" + roomId + ":playback"
}

func (r repo) SetPlayback(ctx context.Context, roomId string, state domain.PlaybackState) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "state", state)
	var platform *string
	if state.Platform != "" {
		p := string(state.Platform)
		platform = &p
	}

	pipe := r.rc.TxPipeline()
	key := r.getPlaybackKey(roomId)
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, omitnilpointers.OmitNilPointers(map[string]any{
		"is_playing": state.IsPlaying,
		"position":   state.Position,
		"updated_at": state.UpdatedAt.UnixMilli(),
		"platform":   platform,
	}))
	pipe.Expire(ctx, key, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set playback: %w", err)
	}

	return nil
}

func (r repo) GetPlayback(ctx context.Context, roomId string) (domain.PlaybackState, error) {
	key := r.getPlaybackKey(roomId)
	cmd := r.rc.HGetAll(ctx, key)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.PlaybackState{}, fmt.Errorf("failed to get playback: %w", err)
	}

	if len(cmd.Val()) == 0 {
		r.logger.DebugContext(ctx, "returned", "room_id", roomId, "error", playback.ErrPlaybackNotFound)
		return domain.PlaybackState{}, playback.ErrPlaybackNotFound
	}

	var rec record
	if err := cmd.Scan(&rec); err != nil {
		return domain.PlaybackState{}, fmt.Errorf("failed to scan playback: %w", err)
	}

	r.rc.Expire(ctx, key, r.expireDuration)

	return domain.PlaybackState{
		IsPlaying: rec.IsPlaying,
		Position:  rec.Position,
		UpdatedAt: time.UnixMilli(rec.UpdatedAt),
		Platform:  domain.Platform(rec.Platform),
	}, nil
}

func (r repo) RemovePlayback(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	res, err := r.rc.Del(ctx, r.getPlaybackKey(roomId)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove playback: %w", err)
	}

	if res == 0 {
		return playback.ErrPlaybackNotFound
	}

	return nil
}
