package inmemory

import (
	"log/slog"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/repository/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepo(t *testing.T) {
	r := NewRepo(slog.Default())
	conn := &websocket.Conn{}

	require.NoError(t, r.Add(conn, "c1"))
	assert.ErrorIs(t, r.Add(conn, "c2"), connection.ErrAlreadyExists)
	assert.ErrorIs(t, r.Add(&websocket.Conn{}, "c1"), connection.ErrAlreadyExists)

	got, err := r.GetConn("c1")
	require.NoError(t, err)
	assert.Same(t, conn, got)

	connId, err := r.GetConnId(conn)
	require.NoError(t, err)
	assert.Equal(t, "c1", connId)

	removed, err := r.RemoveByConnId("c1")
	require.NoError(t, err)
	assert.Same(t, conn, removed)

	_, err = r.GetConn("c1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = r.RemoveByConnId("c1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
}
