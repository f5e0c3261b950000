// Package gateway implements connect.Connector over a websocket link
// to the out-of-process decode engine. Text frames carry JSON control
// messages, binary frames carry raw PCM destined for the audio sink.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nvoss/relay/internal/connect"
	"github.com/nvoss/relay/internal/domain"
)

const (
	writeWait    = 5 * time.Second
	lyricsWait   = 10 * time.Second
	handshakeMsg = "connect"
)

type message struct {
	Type       string        `json:"type"`
	Username   string        `json:"username,omitempty"`
	Token      string        `json:"token,omitempty"`
	DeviceName string        `json:"device_name,omitempty"`
	PositionMS int64         `json:"position_ms,omitempty"`
	Track      *domain.Track `json:"track,omitempty"`
	TrackID    domain.TrackID `json:"track_id,omitempty"`
	Lyrics     *domain.Lyrics `json:"lyrics,omitempty"`
	Code       string        `json:"code,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type Connector struct {
	url    string
	dialer *websocket.Dialer
}

func New(url string) *Connector {
	return &Connector{url: url, dialer: websocket.DefaultDialer}
}

func (c *Connector) Connect(ctx context.Context, creds connect.Credentials, deviceName string, sink connect.AudioSink, events chan<- connect.Event) (connect.Session, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &connect.AuthError{Reason: resp.Status}
		}
		return nil, &connect.TransientError{Err: err}
	}

	s := &session{
		conn:   conn,
		sink:   sink,
		events: events,
		done:   make(chan struct{}),
	}

	hello := message{
		Type:       handshakeMsg,
		Username:   creds.Username,
		Token:      base64.StdEncoding.EncodeToString(creds.Token),
		DeviceName: deviceName,
	}
	if err := s.write(hello); err != nil {
		conn.Close()
		return nil, &connect.TransientError{Err: err}
	}

	var ack message
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, &connect.TransientError{Err: err}
	}
	switch ack.Type {
	case "ready":
	case "error":
		conn.Close()
		if ack.Code == "auth" {
			return nil, &connect.AuthError{Reason: ack.Error}
		}
		return nil, &connect.TransientError{Err: errors.New(ack.Error)}
	default:
		conn.Close()
		return nil, &connect.TransientError{Err: fmt.Errorf("unexpected handshake reply %q", ack.Type)}
	}

	go s.readLoop()

	return s, nil
}

type session struct {
	conn *websocket.Conn
	sink connect.AudioSink

	events chan<- connect.Event

	writeMu sync.Mutex

	lyricsMu sync.Mutex
	lyricsCh chan *domain.Lyrics

	closeOnce sync.Once
	done      chan struct{}
}

// readLoop drives the event and audio streams until the link breaks.
// The events channel is closed on exit so the engine observes the
// session as disconnected.
func (s *session) readLoop() {
	defer func() {
		s.failLyrics()
		close(s.events)
	}()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Warn().Err(err).Str("module", "connect.gateway").Msg("gateway link lost")
			}
			return
		}

		if kind == websocket.BinaryMessage {
			if _, err := s.sink.Write(data); err != nil {
				log.Error().Err(err).Str("module", "connect.gateway").Msg("sink write failed")
			}
			continue
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Str("module", "connect.gateway").Msg("bad gateway json")
			continue
		}
		s.handle(msg)
	}
}

func (s *session) handle(msg message) {
	switch msg.Type {
	case "sink_start":
		s.sink.Start()
	case "sink_stop":
		s.sink.Stop()
	case "lyrics", "lyrics_not_found":
		s.deliverLyrics(msg.Lyrics)
	default:
		if ev, ok := eventFor(msg); ok {
			select {
			case s.events <- ev:
			case <-s.done:
			}
		}
	}
}

func eventFor(msg message) (connect.Event, bool) {
	kinds := map[string]connect.EventKind{
		"playing":              connect.EventPlaying,
		"paused":               connect.EventPaused,
		"stopped":              connect.EventStopped,
		"track_changed":        connect.EventTrackChanged,
		"position_correction":  connect.EventPositionCorrection,
		"seeked":               connect.EventSeeked,
		"session_disconnected": connect.EventSessionDisconnected,
	}
	kind, ok := kinds[msg.Type]
	if !ok {
		log.Debug().Str("module", "connect.gateway").Str("type", msg.Type).Msg("ignoring unknown gateway message")
		return connect.Event{}, false
	}
	return connect.Event{Kind: kind, PositionMS: msg.PositionMS, Track: msg.Track}, true
}

func (s *session) write(msg message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (s *session) Next() error     { return s.write(message{Type: "next"}) }
func (s *session) Previous() error { return s.write(message{Type: "previous"}) }
func (s *session) Pause() error    { return s.write(message{Type: "pause"}) }
func (s *session) Play() error     { return s.write(message{Type: "play"}) }

// Lyrics issues a request over the gateway and waits for the routed
// reply. One request is outstanding at a time; the playback engine
// serializes callers anyway.
func (s *session) Lyrics(ctx context.Context, id domain.TrackID) (*domain.Lyrics, error) {
	ch := make(chan *domain.Lyrics, 1)

	s.lyricsMu.Lock()
	s.lyricsCh = ch
	s.lyricsMu.Unlock()

	if err := s.write(message{Type: "lyrics", TrackID: id}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(lyricsWait)
	defer timer.Stop()

	select {
	case lyrics := <-ch:
		if lyrics == nil {
			return nil, connect.ErrLyricsNotFound
		}
		return lyrics, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, connect.ErrLyricsNotFound
	case <-timer.C:
		return nil, fmt.Errorf("lyrics request timed out")
	}
}

func (s *session) deliverLyrics(lyrics *domain.Lyrics) {
	s.lyricsMu.Lock()
	ch := s.lyricsCh
	s.lyricsCh = nil
	s.lyricsMu.Unlock()

	if ch != nil {
		ch <- lyrics
	}
}

func (s *session) failLyrics() {
	s.deliverLyrics(nil)
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.write(message{Type: "disconnect"})
		err = s.conn.Close()
	})
	return err
}
