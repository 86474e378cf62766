// Package protocol defines the websocket messages exchanged between participants and the room server.
// Every frame is a JSON Envelope; positions are seconds and timestamps are unix milliseconds.
package protocol

import "encoding/json"

const (
	// client -> server
	TypeCreateRoom     = "create_room"
	TypeJoinRoom       = "join_room"
	TypeLeaveRoom      = "leave_room"
	TypePlaybackUpdate = "playback_update"
	TypeAdStarted      = "ad_started"
	TypeAdFinished     = "ad_finished"
	TypeGetState       = "get_state"
	TypeAlive          = "alive"

	// server -> client
	TypeRoomCreated       = "room_created"
	TypeRoomJoined        = "room_joined"
	TypeSyncState         = "sync_state"
	TypePauseForAd        = "pause_for_ad"
	TypeResumeAll         = "resume_all"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeHostChanged       = "host_changed"
	TypeError             = "error"
)

const (
	CodeRoomNotFound       = "room_not_found"
	CodeRoomFull           = "room_full"
	CodeAlreadyInRoom      = "already_in_room"
	CodeNotInRoom          = "not_in_room"
	CodeValidationError    = "validation_error"
	CodeUnknownMessageType = "unknown_message_type"
	CodeInternalError      = "internal_error"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
