// Package player turns asynchronous decode-engine events into buffer
// and transport actions, and exposes a command/query mailbox.
//
// One Player owns one connect session. All state lives on the run
// goroutine; callers talk to it through a cheaply copyable Handle.
package player

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nvoss/relay/internal/audio"
	"github.com/nvoss/relay/internal/connect"
	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/voice"
)

type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	// EventStopped means the engine lost its remote session entirely;
	// the room session answers by tearing the player down.
	EventStopped
	EventTrackChanged
)

// Event is a high-level playback notification for the room session.
// Info carries a snapshot for EventTrackChanged.
type Event struct {
	Kind EventKind
	Info *Info
}

type commandKind int

const (
	cmdNext commandKind = iota
	cmdPrevious
	cmdPause
	cmdPlay
	cmdPlaybackInfo
	cmdLyrics
	cmdShutdown
)

type command struct {
	kind   commandKind
	info   chan<- *Info
	lyrics chan<- *domain.Lyrics
}

type Options struct {
	BridgeCapacity int
}

type Player struct {
	session connect.Session
	track   voice.Track
	bridge  *audio.Bridge

	info *Info

	events chan Event

	commands     chan command
	decodeEvents chan connect.Event
	sinkEvents   chan audio.SinkEvent

	done chan struct{}
	log  zerolog.Logger
}

// Create attaches a paused audio track to the call, dials the remote
// playback service and launches the engine loop. On dial failure no
// engine exists and the error is surfaced to the caller.
func Create(ctx context.Context, connector connect.Connector, creds connect.Credentials, call *voice.Call, deviceName string, opts Options) (Handle, <-chan Event, error) {
	bridge := audio.NewBridge(opts.BridgeCapacity)

	sinkEvents := make(chan audio.SinkEvent, 16)
	sink := audio.NewSink(bridge, sinkEvents)

	track, err := call.PlayOnly(bridge)
	if err != nil {
		return Handle{}, nil, err
	}
	// Nothing audible until bytes actually reach the bridge.
	if err := track.Pause(); err != nil {
		return Handle{}, nil, err
	}

	decodeEvents := make(chan connect.Event, 64)
	session, err := connector.Connect(ctx, creds, deviceName, sink, decodeEvents)
	if err != nil {
		return Handle{}, nil, err
	}

	p := &Player{
		session: session,
		track:   track,
		bridge:  bridge,

		events: make(chan Event, 16),

		commands:     make(chan command, 16),
		decodeEvents: decodeEvents,
		sinkEvents:   sinkEvents,

		done: make(chan struct{}),
		log:  log.With().Str("module", "player").Str("device", deviceName).Logger(),
	}

	go p.run()

	return Handle{commands: p.commands, done: p.done}, p.events, nil
}

func (p *Player) run() {
	defer p.teardown()

	for {
		select {
		case cmd := <-p.commands:
			if stop := p.handleCommand(cmd); stop {
				return
			}

		case ev, ok := <-p.decodeEvents:
			if !ok {
				// Remote session is gone; behave like an explicit
				// disconnect but keep serving queries until Shutdown.
				p.handleDecodeEvent(connect.Event{Kind: connect.EventSessionDisconnected})
				p.decodeEvents = nil
				continue
			}
			p.handleDecodeEvent(ev)

		case sig := <-p.sinkEvents:
			p.handleSinkEvent(sig)
		}
	}
}

func (p *Player) teardown() {
	close(p.done)

	if err := p.track.Pause(); err != nil {
		p.log.Error().Err(err).Msg("failed to pause voice track")
	}
	if err := p.session.Close(); err != nil {
		p.log.Debug().Err(err).Msg("session close")
	}
	p.bridge.Flush()
	close(p.events)
}

func (p *Player) handleCommand(cmd command) bool {
	switch cmd.kind {
	case cmdNext:
		p.forward(p.session.Next, "next")
	case cmdPrevious:
		p.forward(p.session.Previous, "previous")
	case cmdPause:
		p.forward(p.session.Pause, "pause")
	case cmdPlay:
		p.forward(p.session.Play, "play")

	case cmdPlaybackInfo:
		cmd.info <- p.snapshot()
	case cmdLyrics:
		cmd.lyrics <- p.lyrics()

	case cmdShutdown:
		return true
	}
	return false
}

// forward relays a transport command to the remote session. State is
// never mutated optimistically here; it only moves on decode events,
// which avoids divergence between assumed and actual playback state.
func (p *Player) forward(fn func() error, name string) {
	if err := fn(); err != nil {
		p.log.Error().Err(err).Str("command", name).Msg("transport command failed")
	}
}

func (p *Player) handleDecodeEvent(ev connect.Event) {
	switch ev.Kind {
	case connect.EventPositionCorrection, connect.EventSeeked:
		if p.info != nil {
			p.info.UpdatePlayback(ev.PositionMS, true)
		}

	case connect.EventPlaying:
		p.emit(Event{Kind: EventPlay})
		if p.info != nil {
			p.info.UpdatePlayback(ev.PositionMS, true)
		}

	case connect.EventPaused:
		p.emit(Event{Kind: EventPause})
		if p.info != nil {
			p.info.UpdatePlayback(ev.PositionMS, false)
		}

	case connect.EventStopped:
		if err := p.track.Pause(); err != nil {
			p.log.Error().Err(err).Msg("failed to pause voice track")
		}
		p.emit(Event{Kind: EventPause})
		p.info = nil

	case connect.EventSessionDisconnected:
		if err := p.track.Pause(); err != nil {
			p.log.Error().Err(err).Msg("failed to pause voice track")
		}
		p.emit(Event{Kind: EventStopped})
		p.info = nil

	case connect.EventTrackChanged:
		if ev.Track == nil {
			return
		}
		if p.info != nil {
			p.info.UpdateTrack(*ev.Track)
		} else {
			p.info = NewInfo(*ev.Track, 0, false)
		}
		p.emit(Event{Kind: EventTrackChanged, Info: p.snapshot()})
	}
}

func (p *Player) handleSinkEvent(sig audio.SinkEvent) {
	// Audio becomes audible only once bytes actually reached the
	// bridge; the stop side is left playing and rides on the bridge's
	// silence substitution.
	if sig == audio.SinkStart {
		if err := p.track.Play(); err != nil {
			p.log.Error().Err(err).Msg("failed to resume voice track")
		}
	}
}

func (p *Player) snapshot() *Info {
	if p.info == nil {
		return nil
	}
	snapshot := *p.info
	return &snapshot
}

// lyrics fetches lyrics for the current track. Returns nil when
// nothing is playing or the service has none.
func (p *Player) lyrics() *domain.Lyrics {
	if p.info == nil {
		return nil
	}

	lyrics, err := p.session.Lyrics(context.Background(), p.info.TrackID())
	if err != nil {
		if !errors.Is(err, connect.ErrLyricsNotFound) {
			p.log.Error().Err(err).Msg("failed to get lyrics")
		}
		return nil
	}
	return lyrics
}

func (p *Player) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.log.Debug().Int("kind", int(ev.Kind)).Msg("dropping event, receiver gone")
	}
}
