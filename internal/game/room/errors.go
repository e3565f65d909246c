package room

import "errors"

// Sentinel errors for room operations. The dispatcher maps these to
// protocol error events; none of them alters shared state.
var (
	// ErrRoomNotFound means the room token does not name a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull means the room already holds the maximum member count.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomStarted means the room left the waiting state and no longer
	// accepts joins.
	ErrRoomStarted = errors.New("game already started")
	// ErrNotMember means the participant is not present in the room.
	ErrNotMember = errors.New("participant is not in the room")
)
