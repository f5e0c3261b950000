package player

import (
	"context"
	"errors"

	"github.com/nvoss/relay/internal/domain"
)

// ErrClosed is returned by queries against an engine that already shut
// down.
var ErrClosed = errors.New("player is closed")

// Handle is the cheaply copyable client side of a Player's mailbox.
type Handle struct {
	commands chan<- command
	done     <-chan struct{}
}

// Valid reports whether the engine behind this handle is still alive.
func (h Handle) Valid() bool {
	if h.commands == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// send is best-effort: a closed engine swallows the command.
func (h Handle) send(cmd command) error {
	if h.commands == nil {
		return ErrClosed
	}
	select {
	case h.commands <- cmd:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

func (h Handle) Next()     { _ = h.send(command{kind: cmdNext}) }
func (h Handle) Previous() { _ = h.send(command{kind: cmdPrevious}) }
func (h Handle) Pause()    { _ = h.send(command{kind: cmdPause}) }
func (h Handle) Play()     { _ = h.send(command{kind: cmdPlay}) }

// PlaybackInfo returns a snapshot of the current playback, or nil when
// nothing is playing.
func (h Handle) PlaybackInfo(ctx context.Context) (*Info, error) {
	reply := make(chan *Info, 1)
	if err := h.send(command{kind: cmdPlaybackInfo, info: reply}); err != nil {
		return nil, err
	}
	select {
	case info := <-reply:
		return info, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Lyrics returns lyrics for the current track, or nil when nothing is
// playing or the service has none.
func (h Handle) Lyrics(ctx context.Context) (*domain.Lyrics, error) {
	reply := make(chan *domain.Lyrics, 1)
	if err := h.send(command{kind: cmdLyrics, lyrics: reply}); err != nil {
		return nil, err
	}
	select {
	case lyrics := <-reply:
		return lyrics, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown asks the engine to terminate its run loop.
func (h Handle) Shutdown() { _ = h.send(command{kind: cmdShutdown}) }
