package session

import "errors"

var (
	// ErrAlreadyActive means the session already has a live owner;
	// callers must not reactivate it.
	ErrAlreadyActive = errors.New("session already has an active owner")

	// ErrNoOwner means a player was requested with no owner assigned.
	// This is a programming invariant violation, not a user error.
	ErrNoOwner = errors.New("session has no owner assigned")

	// ErrOwnerBusy means the user already owns a session in another
	// room. Checked before any voice-join work is performed.
	ErrOwnerBusy = errors.New("user already owns a session in another room")

	// ErrRoomBusy means the room already has a live session.
	ErrRoomBusy = errors.New("room already has a session")

	// ErrClosed is returned by calls against a disconnected session.
	ErrClosed = errors.New("session is closed")
)
