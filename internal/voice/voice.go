// Package voice defines the boundary to the real-time group-call
// audio sink. The driver library requires direct mutable access to the
// connection, so the shared handle is serialized with a mutex (Call)
// instead of actor isolation.
package voice

import (
	"context"
	"fmt"
	"io"

	"github.com/nvoss/relay/internal/domain"
)

type EventKind int

const (
	// EventDriverDisconnect means the transport dropped the whole
	// connection (forced disconnect).
	EventDriverDisconnect EventKind = iota

	// EventClientDisconnect means a participant left the channel.
	EventClientDisconnect
)

type Event struct {
	Kind EventKind
	User domain.UserID
}

// Track controls audibility of the attached audio source.
type Track interface {
	Play() error
	Pause() error
}

// Conn is one live voice connection. Owned by the adapter.
type Conn interface {
	// PlayOnly attaches src as the connection's only audio source and
	// returns a handle to it. The transport pulls fixed-size frames
	// from src on its own schedule.
	PlayOnly(src io.Reader) (Track, error)

	Leave() error

	// AddHandler registers fn for driver-level events. Handlers run on
	// the driver's goroutine and must not block.
	AddHandler(fn func(Event))
}

type Driver interface {
	Join(ctx context.Context, room domain.RoomID, channel domain.ChannelID) (Conn, error)
}

// JoinError wraps a transport-level join failure. Not retried here;
// the caller may retry the whole operation.
type JoinError struct {
	Room    domain.RoomID
	Channel domain.ChannelID
	Err     error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("failed to join room %s channel %s: %v", e.Room, e.Channel, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }
