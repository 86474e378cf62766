package playback

import "errors"

var (
	ErrPlaybackNotFound = errors.New("playback not found")
)
