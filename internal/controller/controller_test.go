package controller

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/protocol"
	connInmemory "github.com/sharetube/syncroom/internal/repository/connection/inmemory"
	playbackInmemory "github.com/sharetube/syncroom/internal/repository/playback/inmemory"
	roomInmemory "github.com/sharetube/syncroom/internal/repository/room/inmemory"
	"github.com/sharetube/syncroom/internal/service/ad"
	"github.com/sharetube/syncroom/internal/service/playback"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, membersLimit int) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewRealClock()
	rooms := roomInmemory.NewStore(logger)
	authority := playback.NewAuthority(rooms, playbackInmemory.NewRepo(logger), clock, logger)
	coordinator := ad.NewCoordinator(rooms, authority, clock, logger)
	roomService := room.NewService(rooms, connInmemory.NewRepo(logger), authority, coordinator, clock, &room.Config{
		MembersLimit: membersLimit,
		RoomIdLength: 8,
	}, logger)
	c := NewController(roomService, &Config{WriteTimeout: time.Second}, logger)

	server := httptest.NewServer(c.GetMux())
	t.Cleanup(server.Close)

	return server
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, server *httptest.Server) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(messageType string, payload any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(protocol.Output{Type: messageType, Payload: payload}))
}

func (c *wsClient) sendRaw(data string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(data)))
}

func (c *wsClient) expect(messageType string, payload any) {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env protocol.Envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	require.Equal(c.t, messageType, env.Type, "payload: %s", env.Payload)
	if payload != nil {
		require.NoError(c.t, json.Unmarshal(env.Payload, payload))
	}
}

func (c *wsClient) expectError(code string) {
	c.t.Helper()

	var payload protocol.Error
	c.expect(protocol.TypeError, &payload)
	assert.Equal(c.t, code, payload.Code)
}

func (c *wsClient) expectNothing() {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, data, err := c.conn.ReadMessage()
	require.Error(c.t, err, "unexpected message: %s", data)
}

// setupRoom creates a room for host and joins every other client, draining the roster messages.
func setupRoom(t *testing.T, host *wsClient, others ...*wsClient) string {
	t.Helper()

	host.send(protocol.TypeCreateRoom, protocol.CreateRoomInput{UserId: "host"})
	var created protocol.RoomEntered
	host.expect(protocol.TypeRoomCreated, &created)

	joined := []*wsClient{host}
	for i, c := range others {
		name := string(rune('a' + i))
		c.send(protocol.TypeJoinRoom, protocol.JoinRoomInput{RoomId: created.RoomId, UserId: "user-" + name, DisplayName: &name})
		c.expect(protocol.TypeRoomJoined, nil)
		for _, prev := range joined {
			prev.expect(protocol.TypeParticipantJoined, nil)
		}
		joined = append(joined, c)
	}

	return created.RoomId
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, 16)

	resp, err := http.Get(server.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetRoom(t *testing.T) {
	server := newTestServer(t, 16)
	host := dial(t, server)
	roomId := setupRoom(t, host)

	resp, err := http.Get(server.URL + "/api/v1/rooms/" + roomId)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data protocol.Room `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, roomId, body.Data.RoomId)
	assert.Len(t, body.Data.Participants, 1)

	resp, err = http.Get(server.URL + "/api/v1/rooms/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdEpisodeOverWire(t *testing.T) {
	server := newTestServer(t, 16)
	host, a, b := dial(t, server), dial(t, server), dial(t, server)
	setupRoom(t, host, a, b)

	host.send(protocol.TypePlaybackUpdate, protocol.PlaybackUpdateInput{IsPlaying: true, Position: 120})
	var syncState protocol.SyncState
	a.expect(protocol.TypeSyncState, &syncState)
	assert.Equal(t, 120.0, syncState.Playback.Position)
	assert.NotEmpty(t, syncState.SenderId)
	b.expect(protocol.TypeSyncState, nil)

	a.send(protocol.TypeAdStarted, protocol.AdStartedInput{})
	for _, c := range []*wsClient{host, b} {
		var pause protocol.PauseForAd
		c.expect(protocol.TypePauseForAd, &pause)
		require.Len(t, pause.UsersInAd, 1)
		assert.Equal(t, "a", pause.UsersInAd[0].DisplayName)
	}

	a.send(protocol.TypeAdFinished, nil)
	for _, c := range []*wsClient{host, a, b} {
		var resume protocol.ResumeAll
		c.expect(protocol.TypeResumeAll, &resume)
		assert.Equal(t, 120.0, resume.Timestamp)
		assert.True(t, resume.IsPlaying)
	}
	host.expectNothing()
}

func TestAdFinishedWhileOthersInAd(t *testing.T) {
	server := newTestServer(t, 16)
	host, a, b := dial(t, server), dial(t, server), dial(t, server)
	setupRoom(t, host, a, b)

	a.send(protocol.TypeAdStarted, nil)
	host.expect(protocol.TypePauseForAd, nil)
	b.expect(protocol.TypePauseForAd, nil)

	b.send(protocol.TypeAdStarted, nil)
	host.expect(protocol.TypePauseForAd, nil)

	a.send(protocol.TypeAdFinished, nil)
	var pause protocol.PauseForAd
	a.expect(protocol.TypePauseForAd, &pause)
	require.Len(t, pause.UsersInAd, 1)
	assert.Equal(t, "b", pause.UsersInAd[0].DisplayName)
	host.expectNothing()
}

func TestDisconnectMidAdRefreshesPause(t *testing.T) {
	server := newTestServer(t, 16)
	host, a, b, c := dial(t, server), dial(t, server), dial(t, server), dial(t, server)
	setupRoom(t, host, a, b, c)

	a.send(protocol.TypeAdStarted, nil)
	for _, cl := range []*wsClient{host, b, c} {
		cl.expect(protocol.TypePauseForAd, nil)
	}
	b.send(protocol.TypeAdStarted, nil)
	host.expect(protocol.TypePauseForAd, nil)
	c.expect(protocol.TypePauseForAd, nil)

	require.NoError(t, a.conn.Close())

	for _, cl := range []*wsClient{host, c} {
		cl.expect(protocol.TypeParticipantLeft, nil)
		var pause protocol.PauseForAd
		cl.expect(protocol.TypePauseForAd, &pause)
		require.Len(t, pause.UsersInAd, 1)
		assert.Equal(t, "b", pause.UsersInAd[0].DisplayName)
	}
	b.expect(protocol.TypeParticipantLeft, nil)
	b.expectNothing()
}

func TestHostDisconnect(t *testing.T) {
	server := newTestServer(t, 16)
	host, a := dial(t, server), dial(t, server)
	setupRoom(t, host, a)

	require.NoError(t, host.conn.Close())

	var left protocol.ParticipantLeft
	a.expect(protocol.TypeParticipantLeft, &left)
	assert.Len(t, left.Participants, 1)
	assert.Equal(t, left.Participants[0].Id, left.HostId)

	var changed protocol.HostChanged
	a.expect(protocol.TypeHostChanged, &changed)
	assert.Equal(t, left.HostId, changed.HostId)
}

func TestGetState(t *testing.T) {
	server := newTestServer(t, 16)
	host, a := dial(t, server), dial(t, server)
	setupRoom(t, host, a)

	host.send(protocol.TypePlaybackUpdate, protocol.PlaybackUpdateInput{IsPlaying: false, Position: 12})
	a.expect(protocol.TypeSyncState, nil)

	host.send(protocol.TypeGetState, nil)
	var syncState protocol.SyncState
	host.expect(protocol.TypeSyncState, &syncState)
	assert.Equal(t, "", syncState.SenderId)
	assert.Equal(t, 12.0, syncState.Playback.Position)
	assert.GreaterOrEqual(t, syncState.ServerTime, syncState.Playback.UpdatedAt)
}

func TestErrors(t *testing.T) {
	server := newTestServer(t, 1)
	c := dial(t, server)

	c.sendRaw(`{"type":"dance","payload":{}}`)
	c.expectError(protocol.CodeUnknownMessageType)

	c.sendRaw(`not json`)
	c.expectError(protocol.CodeValidationError)

	c.send(protocol.TypeCreateRoom, protocol.CreateRoomInput{})
	c.expectError(protocol.CodeValidationError)

	c.send(protocol.TypePlaybackUpdate, protocol.PlaybackUpdateInput{Position: 1})
	c.expectError(protocol.CodeNotInRoom)

	c.send(protocol.TypeJoinRoom, protocol.JoinRoomInput{RoomId: "nope", UserId: "u"})
	c.expectError(protocol.CodeRoomNotFound)

	roomId := setupRoom(t, c)
	c.send(protocol.TypeCreateRoom, protocol.CreateRoomInput{UserId: "u"})
	c.expectError(protocol.CodeAlreadyInRoom)

	other := dial(t, server)
	other.send(protocol.TypeJoinRoom, protocol.JoinRoomInput{RoomId: roomId, UserId: "u2"})
	other.expectError(protocol.CodeRoomFull)

	c.send(protocol.TypeAlive, nil)
	c.expectNothing()
}
