package session

import (
	"errors"
	"fmt"
)

var (
	ErrJoinTimeout     = errors.New("timed out waiting for room confirmation")
	ErrServer          = errors.New("server error")
	ErrRequestInFlight = errors.New("another create or join request is in flight")
	ErrNotInRoom       = errors.New("session is not in a room")
)

// ServerError is an error message sent by the server in reply to a request.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServerError) Unwrap() error {
	return ErrServer
}
