package ad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/domain"
	roomRepo "github.com/sharetube/syncroom/internal/repository/room"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
)

type iRoomStore interface {
	Update(ctx context.Context, roomId string, fn func(*domain.Room) error) error
	Get(ctx context.Context, roomId string) (*domain.Room, error)
}

type iPlaybackReader interface {
	GetPlayback(ctx context.Context, roomId string) (domain.PlaybackState, error)
}

// Coordinator tracks which participants of a room are watching an ad. A room is either clear or
// inside one ad episode; the resume point is captured once, when the episode starts.
type Coordinator struct {
	rooms    iRoomStore
	playback iPlaybackReader
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewCoordinator(rooms iRoomStore, playback iPlaybackReader, clock clockwork.Clock, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		rooms:    rooms,
		playback: playback,
		clock:    clock,
		logger:   logger,
	}
}

type EnterAdParams struct {
	ParticipantId       string
	DisplayName         string
	EstimatedDurationMs *int64
}

type EnterAdResult struct {
	// UsersToPause never contains the caller or anyone already in the ad.
	UsersToPause     []string
	IsFirstInEpisode bool
	UsersInAd        []domain.AdMembership
	// Playback is the live state at the time of the call, not the resume point.
	Playback domain.PlaybackState
}

type ExitAdResult struct {
	AllClear bool
	// EpisodeEnded is true only for the call that emptied the mapping.
	EpisodeEnded    bool
	ResumePosition  float64
	ResumeIsPlaying bool
	UsersInAd       []domain.AdMembership
}

func (c *Coordinator) EnterAd(ctx context.Context, roomId string, params *EnterAdParams) (EnterAdResult, error) {
	var res EnterAdResult
	err := c.rooms.Update(ctx, roomId, func(r *domain.Room) error {
		var err error
		res, err = c.ApplyEnterAd(ctx, r, params)
		return err
	})
	if err != nil {
		return EnterAdResult{}, c.mapError(err)
	}

	return res, nil
}

// ApplyEnterAd marks the participant as watching an ad. The caller must hold r's lock.
func (c *Coordinator) ApplyEnterAd(ctx context.Context, r *domain.Room, params *EnterAdParams) (EnterAdResult, error) {
	if _, ok := r.Participant(params.ParticipantId); !ok {
		return EnterAdResult{}, ErrParticipantNotFound
	}

	current, err := c.playback.GetPlayback(ctx, r.Id)
	if err != nil {
		return EnterAdResult{}, fmt.Errorf("failed to get playback: %w", err)
	}

	episode, inAd := r.Episode()
	if !inAd {
		episode = domain.NewAdEpisode(current)
	}

	usersToPause := make([]string, 0, r.Len())
	for _, id := range r.ParticipantIds() {
		if id != params.ParticipantId && !episode.Has(id) {
			usersToPause = append(usersToPause, id)
		}
	}

	episode.Put(domain.AdMembership{
		ParticipantId:       params.ParticipantId,
		DisplayName:         params.DisplayName,
		EstimatedDurationMs: params.EstimatedDurationMs,
		StartedAt:           c.clock.Now(),
	})
	if !inAd {
		r.Ad = episode
		c.logger.InfoContext(ctx, "ad episode started",
			"room_id", r.Id,
			"participant_id", params.ParticipantId,
			"resume_position", episode.ResumePosition,
			"resume_is_playing", episode.ResumeIsPlaying,
		)
	}

	return EnterAdResult{
		UsersToPause:     usersToPause,
		IsFirstInEpisode: !inAd,
		UsersInAd:        episode.Members(),
		Playback:         current,
	}, nil
}

func (c *Coordinator) ExitAd(ctx context.Context, roomId, participantId string) (ExitAdResult, error) {
	var res ExitAdResult
	err := c.rooms.Update(ctx, roomId, func(r *domain.Room) error {
		var err error
		res, err = c.ApplyExitAd(ctx, r, participantId)
		return err
	})
	if err != nil {
		return ExitAdResult{}, c.mapError(err)
	}

	return res, nil
}

// ApplyExitAd removes the participant from the ad mapping; absence is not an error. With no
// episode running the result is clear and carries the live playback. The caller must hold r's lock.
func (c *Coordinator) ApplyExitAd(ctx context.Context, r *domain.Room, participantId string) (ExitAdResult, error) {
	episode, inAd := r.Episode()
	if !inAd {
		current, err := c.playback.GetPlayback(ctx, r.Id)
		if err != nil {
			return ExitAdResult{}, fmt.Errorf("failed to get playback: %w", err)
		}

		return ExitAdResult{
			AllClear:        true,
			ResumePosition:  current.Position,
			ResumeIsPlaying: current.IsPlaying,
		}, nil
	}

	episode.Remove(participantId)
	res := ExitAdResult{
		ResumePosition:  episode.ResumePosition,
		ResumeIsPlaying: episode.ResumeIsPlaying,
		UsersInAd:       episode.Members(),
	}

	if episode.Len() == 0 {
		r.Ad = domain.AdClear{}
		res.AllClear = true
		res.EpisodeEnded = true
		c.logger.InfoContext(ctx, "ad episode ended",
			"room_id", r.Id,
			"participant_id", participantId,
			"resume_position", res.ResumePosition,
		)
	}

	return res, nil
}

func (c *Coordinator) ListAdParticipants(ctx context.Context, roomId string) ([]domain.AdMembership, error) {
	r, err := c.rooms.Get(ctx, roomId)
	if err != nil {
		return nil, c.mapError(err)
	}

	episode, ok := r.Episode()
	if !ok {
		return []domain.AdMembership{}, nil
	}

	return episode.Members(), nil
}

// IsClear reports whether nobody in the room is watching an ad. Unknown rooms are clear.
func (c *Coordinator) IsClear(ctx context.Context, roomId string) bool {
	r, err := c.rooms.Get(ctx, roomId)
	if err != nil {
		return true
	}

	_, inAd := r.Episode()
	return !inAd
}

func (c *Coordinator) mapError(err error) error {
	if errors.Is(err, roomRepo.ErrRoomNotFound) {
		return ErrRoomNotFound
	}

	return err
}
