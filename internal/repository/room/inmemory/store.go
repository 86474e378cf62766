package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type entry struct {
	mu      sync.Mutex
	room    *domain.Room
	deleted bool
}

// store owns every room and the connection -> room index. Operations on one room are
// serialized by that room's lock; different rooms never contend beyond the index lock.
type store struct {
	mu        sync.RWMutex
	rooms     map[string]*entry
	connIndex map[string]string
	logger    *slog.Logger
}

func NewStore(logger *slog.Logger) *store {
	return &store{
		rooms:     make(map[string]*entry),
		connIndex: make(map[string]string),
		logger:    logger,
	}
}

func (s *store) Create(ctx context.Context, r *domain.Room) error {
	s.logger.DebugContext(ctx, "called", "room_id", r.Id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[r.Id]; ok {
		s.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return room.ErrRoomAlreadyExists
	}

	for _, id := range r.ParticipantIds() {
		if _, ok := s.connIndex[id]; ok {
			s.logger.DebugContext(ctx, "returned", "error", room.ErrConnAlreadyBound)
			return room.ErrConnAlreadyBound
		}
	}

	s.rooms[r.Id] = &entry{room: r}
	for _, id := range r.ParticipantIds() {
		s.connIndex[id] = r.Id
	}

	return nil
}

// Update runs fn with exclusive access to a working copy of the room. The copy replaces the room
// only when fn returns nil; on error the room and the connection index are left untouched. After a
// successful fn the index is brought in line with the roster and a room left without participants
// is deleted.
func (s *store) Update(ctx context.Context, roomId string, fn func(*domain.Room) error) error {
	s.mu.RLock()
	e, ok := s.rooms[roomId]
	s.mu.RUnlock()
	if !ok {
		s.logger.DebugContext(ctx, "returned", "room_id", roomId, "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return room.ErrRoomNotFound
	}

	before := e.room.ParticipantIds()
	draft := e.room.Clone()
	if err := fn(draft); err != nil {
		return err
	}
	e.room = draft
	after := e.room.ParticipantIds()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range before {
		if _, ok := e.room.Participant(id); !ok && s.connIndex[id] == roomId {
			delete(s.connIndex, id)
		}
	}
	for _, id := range after {
		s.connIndex[id] = roomId
	}

	if e.room.IsEmpty() {
		e.deleted = true
		delete(s.rooms, roomId)
		s.logger.DebugContext(ctx, "room deleted", "room_id", roomId)
	}

	return nil
}

// Delete removes the room and releases every connection bound to it.
func (s *store) Delete(ctx context.Context, roomId string) error {
	s.logger.DebugContext(ctx, "called", "room_id", roomId)
	s.mu.RLock()
	e, ok := s.rooms[roomId]
	s.mu.RUnlock()
	if !ok {
		return room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return room.ErrRoomNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range e.room.ParticipantIds() {
		if s.connIndex[id] == roomId {
			delete(s.connIndex, id)
		}
	}
	e.deleted = true
	delete(s.rooms, roomId)

	return nil
}

// Get returns a deep copy of the room.
func (s *store) Get(ctx context.Context, roomId string) (*domain.Room, error) {
	var snapshot *domain.Room
	if err := s.view(roomId, func(r *domain.Room) {
		snapshot = r.Clone()
	}); err != nil {
		s.logger.DebugContext(ctx, "returned", "room_id", roomId, "error", err)
		return nil, err
	}

	return snapshot, nil
}

func (s *store) GetRoomIdByConn(ctx context.Context, connId string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomId, ok := s.connIndex[connId]
	if !ok {
		s.logger.DebugContext(ctx, "returned", "conn_id", connId, "error", room.ErrConnNotFound)
		return "", room.ErrConnNotFound
	}

	return roomId, nil
}

func (s *store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms)
}

func (s *store) view(roomId string, fn func(*domain.Room)) error {
	s.mu.RLock()
	e, ok := s.rooms[roomId]
	s.mu.RUnlock()
	if !ok {
		return room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return room.ErrRoomNotFound
	}

	fn(e.room)

	return nil
}
