package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/protocol"
)

func (c controller) writeLock(conn *websocket.Conn) *sync.Mutex {
	mu, _ := c.writeLocks.LoadOrStore(conn, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (c controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *protocol.Output) error {
	mu := c.writeLock(conn)
	mu.Lock()
	defer mu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := conn.WriteJSON(output); err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "type", output.Type, "error", err)
		return err
	}

	return nil
}

// broadcast writes to every conn and joins the failures; one slow or dead receiver does not block
// the others from being written to.
func (c controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *protocol.Output) error {
	var errs []error
	for _, conn := range conns {
		if err := c.writeToConn(ctx, conn, output); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c controller) forgetConn(conn *websocket.Conn) {
	c.writeLocks.Delete(conn)
}
