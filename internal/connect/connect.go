// Package connect defines the boundary to the remote playback service:
// an authenticated session that decodes audio, emits transport events
// and accepts transport commands.
//
// The wire protocol itself lives behind these interfaces; adapters own
// their resources and must Close() them.
package connect

import (
	"context"

	"github.com/nvoss/relay/internal/domain"
)

// Credentials authenticate a single user against the remote service.
type Credentials struct {
	Username string
	Token    []byte
}

type EventKind int

const (
	EventPlaying EventKind = iota
	EventPaused
	EventStopped
	EventTrackChanged
	EventPositionCorrection
	EventSeeked
	EventSessionDisconnected
)

// Event is a decode-engine notification. Track is set for
// EventTrackChanged only.
type Event struct {
	Kind       EventKind
	PositionMS int64
	Track      *domain.Track
}

// AudioSink receives raw PCM synchronously from the decode pipeline.
// All three calls happen on the decode thread and must not block
// longer than backpressure requires.
type AudioSink interface {
	Start()
	Stop()
	Write(p []byte) (int, error)
}

// Session is a live connection to the remote playback engine.
type Session interface {
	Next() error
	Previous() error
	Pause() error
	Play() error

	// Lyrics fetches lyrics for a track. Returns ErrLyricsNotFound
	// when the service has none.
	Lyrics(ctx context.Context, id domain.TrackID) (*domain.Lyrics, error)

	Close() error
}

// Connector establishes sessions. Decode events are delivered on the
// given channel in program order; the adapter closes it when the
// session is gone.
type Connector interface {
	Connect(ctx context.Context, creds Credentials, deviceName string, sink AudioSink, events chan<- Event) (Session, error)
}
