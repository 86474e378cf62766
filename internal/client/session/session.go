package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/client/reconcile"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/protocol"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	ServerURL   string
	Platform    domain.Platform
	JoinTimeout time.Duration
	Reconcile   *reconcile.Config
}

type result struct {
	entered protocol.RoomEntered
	err     error
}

// Session is one participant's connection to the room server. It owns the reconciliation loop
// for that participant and feeds it everything the server sends.
type Session struct {
	conn        *websocket.Conn
	loop        *reconcile.Loop
	clock       clockwork.Clock
	platform    domain.Platform
	joinTimeout time.Duration
	logger      *slog.Logger

	writeMu sync.Mutex

	mu            sync.Mutex
	pending       chan result
	roomId        string
	participantId string
	participants  []protocol.Participant
	hostId        string
}

func Dial(ctx context.Context, cfg *Config, player reconcile.Player, clock clockwork.Clock, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.ServerURL, err)
	}

	joinTimeout := cfg.JoinTimeout
	if joinTimeout <= 0 {
		joinTimeout = 10 * time.Second
	}

	s := &Session{
		conn:        conn,
		clock:       clock,
		platform:    cfg.Platform,
		joinTimeout: joinTimeout,
		logger:      logger,
	}
	s.loop = reconcile.NewLoop(player, s, clock, cfg.Reconcile, logger)

	return s, nil
}

// Loop exposes the reconciliation loop for local player events.
func (s *Session) Loop() *reconcile.Loop {
	return s.loop
}

func (s *Session) RoomId() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roomId
}

func (s *Session) ParticipantId() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.participantId
}

func (s *Session) HostId() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hostId
}

func (s *Session) Participants() []protocol.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]protocol.Participant(nil), s.participants...)
}

// Run reads server messages until ctx is done or the connection fails. CreateRoom and JoinRoom
// need Run to be running.
func (s *Session) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.readLoop(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		s.loop.Deactivate()
		return s.conn.Close()
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		var env protocol.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		s.dispatch(ctx, env, s.clock.Now())
	}
}

func (s *Session) send(messageType string, payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(protocol.Output{Type: messageType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", messageType, err)
	}

	return nil
}

func (s *Session) CreateRoom(ctx context.Context, userId string, displayName *string) (protocol.RoomEntered, error) {
	return s.enter(ctx, protocol.TypeCreateRoom, protocol.CreateRoomInput{
		UserId:      userId,
		DisplayName: displayName,
		DeviceType:  string(domain.DeviceDesktop),
	})
}

func (s *Session) JoinRoom(ctx context.Context, roomId, userId string, deviceType domain.DeviceType, displayName *string) (protocol.RoomEntered, error) {
	return s.enter(ctx, protocol.TypeJoinRoom, protocol.JoinRoomInput{
		RoomId:      roomId,
		UserId:      userId,
		DeviceType:  string(deviceType),
		DisplayName: displayName,
	})
}

// enter sends a create or join request and waits for its confirmation, at most joinTimeout.
func (s *Session) enter(ctx context.Context, messageType string, payload any) (protocol.RoomEntered, error) {
	ch := make(chan result, 1)
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return protocol.RoomEntered{}, ErrRequestInFlight
	}
	s.pending = ch
	s.mu.Unlock()

	clearPending := func() {
		s.mu.Lock()
		if s.pending == ch {
			s.pending = nil
		}
		s.mu.Unlock()
	}

	timer := s.clock.NewTimer(s.joinTimeout)
	defer timer.Stop()

	if err := s.send(messageType, payload); err != nil {
		clearPending()
		return protocol.RoomEntered{}, err
	}

	select {
	case res := <-ch:
		return res.entered, res.err
	case <-timer.Chan():
		clearPending()
		return protocol.RoomEntered{}, ErrJoinTimeout
	case <-ctx.Done():
		clearPending()
		return protocol.RoomEntered{}, ctx.Err()
	}
}

func (s *Session) LeaveRoom() error {
	s.mu.Lock()
	inRoom := s.roomId != ""
	s.roomId = ""
	s.participantId = ""
	s.participants = nil
	s.hostId = ""
	s.mu.Unlock()

	if !inRoom {
		return ErrNotInRoom
	}

	s.loop.Deactivate()
	return s.send(protocol.TypeLeaveRoom, nil)
}

func (s *Session) ReportPlayback(isPlaying bool, position float64) error {
	var platform *string
	if s.platform != "" {
		p := string(s.platform)
		platform = &p
	}

	return s.send(protocol.TypePlaybackUpdate, protocol.PlaybackUpdateInput{
		IsPlaying: isPlaying,
		Position:  position,
		Platform:  platform,
	})
}

func (s *Session) RequestState() error {
	return s.send(protocol.TypeGetState, nil)
}

// AdStarted suspends local reconciliation and tells the room this participant is in an ad.
func (s *Session) AdStarted(estimatedDurationMs *int64) error {
	s.loop.LocalAdStarted()
	return s.send(protocol.TypeAdStarted, protocol.AdStartedInput{EstimatedDurationMs: estimatedDurationMs})
}

func (s *Session) AdFinished() error {
	s.loop.LocalAdEnded()
	return s.send(protocol.TypeAdFinished, nil)
}

// remoteState converts a server playback into the local clock: the snapshot was taken
// serverTime-updatedAt before the message arrived.
func remoteState(p protocol.Playback, serverTime int64, receivedAt time.Time) reconcile.RemoteState {
	age := time.Duration(serverTime-p.UpdatedAt) * time.Millisecond
	if age < 0 {
		age = 0
	}

	return reconcile.RemoteState{
		IsPlaying:  p.IsPlaying,
		Position:   p.Position,
		ObservedAt: receivedAt.Add(-age),
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
