package domain

import "time"

type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
)

func (d DeviceType) Valid() bool {
	return d == DeviceDesktop || d == DeviceMobile
}

// Participant is keyed by its connection id. UserId is the stable identity across reconnects.
type Participant struct {
	Id          string
	UserId      string
	DeviceType  DeviceType
	DisplayName *string
	IsHost      bool
	JoinedAt    time.Time
}

// Name returns the display name, falling back to the user id.
func (p Participant) Name() string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}

	return p.UserId
}
