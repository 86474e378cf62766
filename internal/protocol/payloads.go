package protocol

type Empty struct{}

type CreateRoomInput struct {
	UserId      string  `json:"userId" validate:"required,max=64"`
	DisplayName *string `json:"displayName" validate:"omitempty,max=32"`
	DeviceType  string  `json:"deviceType" validate:"omitempty,oneof=desktop mobile"`
}

type JoinRoomInput struct {
	RoomId      string  `json:"roomId" validate:"required,max=32"`
	UserId      string  `json:"userId" validate:"required,max=64"`
	DeviceType  string  `json:"deviceType" validate:"omitempty,oneof=desktop mobile"`
	DisplayName *string `json:"displayName" validate:"omitempty,max=32"`
}

type PlaybackUpdateInput struct {
	IsPlaying bool    `json:"isPlaying"`
	Position  float64 `json:"position" validate:"gte=0"`
	Platform  *string `json:"platform" validate:"omitempty,oneof=generic youtube netflix hulu disney prime max"`
}

type AdStartedInput struct {
	EstimatedDurationMs *int64 `json:"estimatedDurationMs" validate:"omitempty,gte=0"`
}

type Participant struct {
	Id          string  `json:"id"`
	UserId      string  `json:"userId"`
	DeviceType  string  `json:"deviceType"`
	DisplayName *string `json:"displayName,omitempty"`
	IsHost      bool    `json:"isHost"`
	JoinedAt    int64   `json:"joinedAt"`
}

type Playback struct {
	IsPlaying bool    `json:"isPlaying"`
	Position  float64 `json:"position"`
	UpdatedAt int64   `json:"updatedAt"`
	Platform  string  `json:"platform"`
}

type AdParticipant struct {
	ParticipantId       string `json:"participantId"`
	DisplayName         string `json:"displayName"`
	EstimatedDurationMs *int64 `json:"estimatedDurationMs,omitempty"`
	StartedAt           int64  `json:"startedAt"`
}

type Room struct {
	RoomId       string          `json:"roomId"`
	HostId       string          `json:"hostId"`
	Participants []Participant   `json:"participants"`
	Playback     Playback        `json:"playback"`
	UsersInAd    []AdParticipant `json:"usersInAd"`
	CreatedAt    int64           `json:"createdAt"`
}

// RoomEntered is the payload of both room_created and room_joined.
type RoomEntered struct {
	RoomId        string `json:"roomId"`
	ParticipantId string `json:"participantId"`
	Room          Room   `json:"room"`
	ServerTime    int64  `json:"serverTime"`
}

type SyncState struct {
	Playback   Playback `json:"playback"`
	SenderId   string   `json:"senderId"`
	ServerTime int64    `json:"serverTime"`
}

type PauseForAd struct {
	UsersInAd           []AdParticipant `json:"usersInAd"`
	ResumeTimestampHint float64         `json:"resumeTimestampHint"`
}

type ResumeAll struct {
	Timestamp float64 `json:"timestamp"`
	IsPlaying bool    `json:"isPlaying"`
}

type ParticipantJoined struct {
	Participant  Participant   `json:"participant"`
	Participants []Participant `json:"participants"`
}

type ParticipantLeft struct {
	ParticipantId string        `json:"participantId"`
	HostId        string        `json:"hostId"`
	Participants  []Participant `json:"participants"`
}

type HostChanged struct {
	HostId string `json:"hostId"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
