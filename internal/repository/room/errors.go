package room

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrConnAlreadyBound  = errors.New("connection already bound to a room")
	ErrConnNotFound      = errors.New("connection not bound to a room")
)
