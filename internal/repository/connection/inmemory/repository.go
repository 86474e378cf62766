package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/repository/connection"
)

type repo struct {
	connList map[*websocket.Conn]string
	idList   map[string]*websocket.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[*websocket.Conn]string),
		idList:   make(map[string]*websocket.Conn),
		logger:   logger,
	}
}

func (r *repo) Add(conn *websocket.Conn, connId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "conn_id", connId)
	if _, ok := r.connList[conn]; ok {
		r.logger.Info("returned", "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}
	if _, ok := r.idList[connId]; ok {
		r.logger.Info("returned", "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = connId
	r.idList[connId] = conn

	return nil
}

func (r *repo) RemoveByConnId(connId string) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "conn_id", connId)
	conn, ok := r.idList[connId]
	if !ok {
		r.logger.Info("returned", "error", connection.ErrNotFound)
		return nil, connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, connId)

	return conn, nil
}

func (r *repo) GetConnId(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connId, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return connId, nil
}

func (r *repo) GetConn(connId string) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[connId]
	if !ok {
		r.logger.Debug("returned", "conn_id", connId, "error", connection.ErrNotFound)
		return nil, connection.ErrNotFound
	}

	return conn, nil
}
