package room

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomUnavailable = errors.New("room unavailable: host disconnected")
	ErrNotHost         = errors.New("only the host can do that")
	ErrNotParticipant  = errors.New("not a participant of this room")
	ErrNameRequired    = errors.New("display name is required")
	ErrCodeSpaceFull   = errors.New("could not allocate a unique room code")
)
