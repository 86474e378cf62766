package inmemory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Unix(1700000000, 0)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore(slog.Default())

	r := domain.NewRoom("r1", domain.Participant{Id: "c1", UserId: "u1"}, now)
	require.NoError(t, s.Create(ctx, r))
	assert.ErrorIs(t, s.Create(ctx, domain.NewRoom("r1", domain.Participant{Id: "c9"}, now)), room.ErrRoomAlreadyExists)
	assert.ErrorIs(t, s.Create(ctx, domain.NewRoom("r2", domain.Participant{Id: "c1"}, now)), room.ErrConnAlreadyBound)

	require.NoError(t, s.Update(ctx, "r1", func(r *domain.Room) error {
		return r.AddParticipant(domain.Participant{Id: "c2", UserId: "u2"})
	}))

	roomId, err := s.GetRoomIdByConn(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "r1", roomId)

	require.NoError(t, s.Update(ctx, "r1", func(r *domain.Room) error {
		_, _, err := r.RemoveParticipant("c1")
		return err
	}))
	_, err = s.GetRoomIdByConn(ctx, "c1")
	assert.ErrorIs(t, err, room.ErrConnNotFound)

	snapshot, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "c2", snapshot.HostId)

	require.NoError(t, s.Update(ctx, "r1", func(r *domain.Room) error {
		_, _, err := r.RemoveParticipant("c2")
		return err
	}))
	assert.Equal(t, 0, s.Count())
	_, err = s.Get(ctx, "r1")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
	assert.ErrorIs(t, s.Update(ctx, "r1", func(*domain.Room) error { return nil }), room.ErrRoomNotFound)
	_, err = s.GetRoomIdByConn(ctx, "c2")
	assert.ErrorIs(t, err, room.ErrConnNotFound)
}

func TestStoreUpdateErrorKeepsIndex(t *testing.T) {
	ctx := context.Background()
	s := NewStore(slog.Default())
	require.NoError(t, s.Create(ctx, domain.NewRoom("r1", domain.Participant{Id: "c1"}, now)))

	boom := errors.New("boom")
	err := s.Update(ctx, "r1", func(*domain.Room) error { return boom })
	assert.ErrorIs(t, err, boom)

	roomId, err := s.GetRoomIdByConn(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "r1", roomId)
}

func TestStoreUpdateErrorDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	s := NewStore(slog.Default())
	require.NoError(t, s.Create(ctx, domain.NewRoom("r1", domain.Participant{Id: "c1"}, now)))
	require.NoError(t, s.Update(ctx, "r1", func(r *domain.Room) error {
		return r.AddParticipant(domain.Participant{Id: "c2"})
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, "r1", func(r *domain.Room) error {
		if _, _, err := r.RemoveParticipant("c1"); err != nil {
			return err
		}
		if err := r.AddParticipant(domain.Participant{Id: "c3"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	snapshot, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Len())
	assert.Equal(t, "c1", snapshot.HostId)
	_, ok := snapshot.Participant("c1")
	assert.True(t, ok)
	_, ok = snapshot.Participant("c3")
	assert.False(t, ok)

	roomId, err := s.GetRoomIdByConn(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "r1", roomId)
	_, err = s.GetRoomIdByConn(ctx, "c3")
	assert.ErrorIs(t, err, room.ErrConnNotFound)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore(slog.Default())
	require.NoError(t, s.Create(ctx, domain.NewRoom("r1", domain.Participant{Id: "c1"}, now)))

	require.NoError(t, s.Delete(ctx, "r1"))
	assert.Equal(t, 0, s.Count())
	_, err := s.GetRoomIdByConn(ctx, "c1")
	assert.ErrorIs(t, err, room.ErrConnNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "r1"), room.ErrRoomNotFound)

	require.NoError(t, s.Create(ctx, domain.NewRoom("r2", domain.Participant{Id: "c1"}, now)))
}

func TestStoreSerializesUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewStore(slog.Default())
	require.NoError(t, s.Create(ctx, domain.NewRoom("r1", domain.Participant{Id: "host"}, now)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, "r1", func(r *domain.Room) error {
				return r.AddParticipant(domain.Participant{Id: fmt.Sprintf("c%d", i)})
			}))
		}(i)
	}
	wg.Wait()

	snapshot, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 51, snapshot.Len())
}
