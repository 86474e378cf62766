package controller

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/protocol"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/validator"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

type validationError struct {
	errors []validator.ValidationError
}

func (e validationError) Error() string {
	return "validation failed"
}

func toErrorPayload(err error) protocol.Error {
	var vErr validationError
	switch {
	case errors.As(err, &vErr):
		return protocol.Error{Code: protocol.CodeValidationError, Message: vErr.Error(), Details: vErr.errors}
	case errors.Is(err, wsrouter.ErrInvalidPayload):
		return protocol.Error{Code: protocol.CodeValidationError, Message: "invalid payload"}
	case errors.Is(err, wsrouter.ErrUnknownMessageType):
		return protocol.Error{Code: protocol.CodeUnknownMessageType, Message: err.Error()}
	case errors.Is(err, room.ErrRoomNotFound):
		return protocol.Error{Code: protocol.CodeRoomNotFound, Message: "room not found"}
	case errors.Is(err, room.ErrRoomFull):
		return protocol.Error{Code: protocol.CodeRoomFull, Message: "room is full"}
	case errors.Is(err, room.ErrAlreadyInRoom):
		return protocol.Error{Code: protocol.CodeAlreadyInRoom, Message: "already in a room"}
	case errors.Is(err, room.ErrNotInRoom):
		return protocol.Error{Code: protocol.CodeNotInRoom, Message: "not in a room"}
	}

	return protocol.Error{Code: protocol.CodeInternalError, Message: "internal error"}
}

func (c controller) handleWSError(ctx context.Context, conn *websocket.Conn, err error) {
	payload := toErrorPayload(err)
	if payload.Code == protocol.CodeInternalError {
		c.logger.ErrorContext(ctx, "failed to handle message", "error", err)
	} else {
		c.logger.InfoContext(ctx, "message rejected", "code", payload.Code, "error", err)
	}

	if err := c.writeToConn(ctx, conn, &protocol.Output{
		Type:    protocol.TypeError,
		Payload: payload,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write error", "error", err)
	}
}
