package core

import "errors"

var (
	// ErrRoomNotFound reports a broadcast into a room the registry does not know.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotInRoom reports a broadcast whose source is not a member of the room.
	ErrNotInRoom = errors.New("not in room")
)
