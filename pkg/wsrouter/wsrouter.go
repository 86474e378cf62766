package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidPayload     = errors.New("invalid payload")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives every error returned by a handler, plus unknown message types and
// payloads that fail to decode. The connection stays open afterwards.
type ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error)

type route func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

type WSRouter struct {
	routes       map[string]route
	middlewares  []Middleware
	errorHandler ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]route),
		errorHandler: func(context.Context, *websocket.Conn, error) {},
	}
}

// Use appends middlewares. They wrap handlers registered afterwards, first added runs outermost.
func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) SetErrorHandler(h ErrorHandler) {
	r.errorHandler = h
}

// Handle registers a typed handler. The payload is decoded into T before the middleware chain runs;
// an absent or null payload leaves T at its zero value.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	var h HandlerFunc[any] = func(ctx context.Context, conn *websocket.Conn, payload any) error {
		return handler(ctx, conn, payload.(T))
	}
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
		var payload T
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
		}

		return h(ctx, conn, payload)
	}
}

// ServeConn reads messages until the connection fails and returns the read error.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.errorHandler(ctx, conn, fmt.Errorf("%w: %w", ErrInvalidPayload, err))
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		handler, exists := r.routes[msg.Type]
		if !exists {
			r.errorHandler(msgCtx, conn, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type))
			continue
		}

		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
