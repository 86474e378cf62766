package ad

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/domain"
	playbackInmemory "github.com/sharetube/syncroom/internal/repository/playback/inmemory"
	roomInmemory "github.com/sharetube/syncroom/internal/repository/room/inmemory"
	"github.com/sharetube/syncroom/internal/service/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clock       *clockwork.FakeClock
	authority   *playback.Authority
	coordinator *Coordinator
}

// newFixture creates room r1 with host, a and b, playing at 120.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	rooms := roomInmemory.NewStore(slog.Default())
	authority := playback.NewAuthority(rooms, playbackInmemory.NewRepo(slog.Default()), clock, slog.Default())

	r := domain.NewRoom("r1", domain.Participant{Id: "host"}, clock.Now())
	require.NoError(t, r.AddParticipant(domain.Participant{Id: "a"}))
	require.NoError(t, r.AddParticipant(domain.Participant{Id: "b"}))
	require.NoError(t, rooms.Create(ctx, r))
	require.NoError(t, rooms.Update(ctx, "r1", func(r *domain.Room) error {
		_, err := authority.InitPlayback(ctx, r)
		return err
	}))
	_, err := authority.SetPlayback(ctx, "r1", &playback.SetPlaybackParams{IsPlaying: true, Position: 120})
	require.NoError(t, err)

	return &fixture{
		clock:       clock,
		authority:   authority,
		coordinator: NewCoordinator(rooms, authority, clock, slog.Default()),
	}
}

func (f *fixture) enter(t *testing.T, participantId string) EnterAdResult {
	t.Helper()
	res, err := f.coordinator.EnterAd(context.Background(), "r1", &EnterAdParams{
		ParticipantId: participantId,
		DisplayName:   participantId,
	})
	require.NoError(t, err)

	return res
}

func (f *fixture) exit(t *testing.T, participantId string) ExitAdResult {
	t.Helper()
	res, err := f.coordinator.ExitAd(context.Background(), "r1", participantId)
	require.NoError(t, err)

	return res
}

func TestSingleParticipantAd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.True(t, f.coordinator.IsClear(ctx, "r1"))

	entered := f.enter(t, "a")
	assert.True(t, entered.IsFirstInEpisode)
	assert.ElementsMatch(t, []string{"host", "b"}, entered.UsersToPause)
	require.Len(t, entered.UsersInAd, 1)
	assert.Equal(t, "a", entered.UsersInAd[0].ParticipantId)
	assert.False(t, f.coordinator.IsClear(ctx, "r1"))

	exited := f.exit(t, "a")
	assert.True(t, exited.AllClear)
	assert.True(t, exited.EpisodeEnded)
	assert.Equal(t, 120.0, exited.ResumePosition)
	assert.True(t, exited.ResumeIsPlaying)
	assert.True(t, f.coordinator.IsClear(ctx, "r1"))
}

func TestOverlappingAdsKeepFirstResumePoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entered := f.enter(t, "a")
	assert.Equal(t, []string{"host", "b"}, entered.UsersToPause)

	// playback moves on underneath the episode
	f.clock.Advance(10 * time.Second)
	_, err := f.authority.SetPlayback(ctx, "r1", &playback.SetPlaybackParams{IsPlaying: false, Position: 131})
	require.NoError(t, err)

	entered = f.enter(t, "b")
	assert.False(t, entered.IsFirstInEpisode)
	assert.Equal(t, []string{"host"}, entered.UsersToPause, "a is already stopped")
	assert.Equal(t, 131.0, entered.Playback.Position)

	exited := f.exit(t, "a")
	assert.False(t, exited.AllClear)
	assert.False(t, exited.EpisodeEnded)
	require.Len(t, exited.UsersInAd, 1)
	assert.Equal(t, "b", exited.UsersInAd[0].ParticipantId)

	exited = f.exit(t, "b")
	assert.True(t, exited.AllClear)
	assert.True(t, exited.EpisodeEnded)
	assert.Equal(t, 120.0, exited.ResumePosition)
	assert.True(t, exited.ResumeIsPlaying)
}

func TestUsersToPauseNeverContainsAdWatchers(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"a", "b", "host"} {
		res := f.enter(t, id)
		assert.NotContains(t, res.UsersToPause, id)
		for _, m := range res.UsersInAd {
			if m.ParticipantId != id {
				assert.NotContains(t, res.UsersToPause, m.ParticipantId)
			}
		}
	}

	res := f.enter(t, "host")
	assert.Empty(t, res.UsersToPause)
}

func TestReentryKeepsStartedAtAndPauseSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.enter(t, "a")
	startedAt := first.UsersInAd[0].StartedAt

	f.clock.Advance(3 * time.Second)
	duration := int64(30000)
	again, err := f.coordinator.EnterAd(ctx, "r1", &EnterAdParams{ParticipantId: "a", DisplayName: "A", EstimatedDurationMs: &duration})
	require.NoError(t, err)
	assert.False(t, again.IsFirstInEpisode)
	assert.Equal(t, first.UsersToPause, again.UsersToPause)
	require.Len(t, again.UsersInAd, 1)
	assert.Equal(t, startedAt, again.UsersInAd[0].StartedAt)
	assert.Equal(t, &duration, again.UsersInAd[0].EstimatedDurationMs)

	members, err := f.coordinator.ListAdParticipants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "A", members[0].DisplayName)
}

func TestExitAdIdempotent(t *testing.T) {
	f := newFixture(t)

	exited := f.exit(t, "a")
	assert.True(t, exited.AllClear)
	assert.False(t, exited.EpisodeEnded)
	assert.Equal(t, 120.0, exited.ResumePosition)

	f.enter(t, "a")
	exited = f.exit(t, "b")
	assert.False(t, exited.AllClear, "b was never in the ad")

	exited = f.exit(t, "a")
	assert.True(t, exited.EpisodeEnded)
	exited = f.exit(t, "a")
	assert.True(t, exited.AllClear)
	assert.False(t, exited.EpisodeEnded)
}

func TestAllClearOnlyOnLastExit(t *testing.T) {
	f := newFixture(t)
	ids := []string{"host", "a", "b"}
	for _, id := range ids {
		f.enter(t, id)
	}

	for i, id := range ids {
		res := f.exit(t, id)
		assert.Equal(t, i == len(ids)-1, res.AllClear, "exit %d", i)
		assert.Equal(t, 120.0, res.ResumePosition)
	}
}

func TestUnknownRoomAndParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.EnterAd(ctx, "nope", &EnterAdParams{ParticipantId: "a"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = f.coordinator.ExitAd(ctx, "nope", "a")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = f.coordinator.ListAdParticipants(ctx, "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.True(t, f.coordinator.IsClear(ctx, "nope"))

	_, err = f.coordinator.EnterAd(ctx, "r1", &EnterAdParams{ParticipantId: "ghost"})
	assert.ErrorIs(t, err, ErrParticipantNotFound)
	assert.True(t, f.coordinator.IsClear(ctx, "r1"), "failed entry must not open an episode")
}
