// Package session owns the per-room relay lifecycle: voice-connection
// lifetime, ownership handover and the inactivity auto-disconnect
// timer, plus the registry enforcing one-relay-per-room and
// one-session-per-owner.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nvoss/relay/internal/connect"
	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/player"
	"github.com/nvoss/relay/internal/voice"
)

// CredentialSource resolves a user's service credentials and device
// name. Backed by the datastore collaborator.
type CredentialSource interface {
	Credentials(ctx context.Context, user domain.UserID) (connect.Credentials, string, error)
}

// Notifier receives high-level playback notifications for the room's
// output channel. Implementations must not block; failures downgrade
// to "no notifications", never to a session failure.
type Notifier interface {
	PlaybackEvent(room domain.RoomID, ev player.Event)
	Inactive(room domain.RoomID)
}

type commandKind int

const (
	cmdOwner commandKind = iota
	cmdPlayer
	cmdActive
	cmdReactivate
	cmdShutdownPlayer
	cmdDisconnect
	cmdTimedOut
)

type reactivateReq struct {
	user  domain.UserID
	reply chan<- error
}

type command struct {
	kind       commandKind
	owner      chan<- domain.UserID
	player     chan<- player.Handle
	active     chan<- bool
	reactivate *reactivateReq
}

// Session is the state owned by one room's run goroutine. Externally
// it is only reachable through a Handle.
type Session struct {
	manager *Manager

	room         domain.RoomID
	voiceChannel domain.ChannelID
	textChannel  domain.ChannelID

	call   *voice.Call
	player player.Handle
	events <-chan player.Event

	owner  domain.UserID
	active bool

	timeoutCancel chan struct{}

	commands chan command
	// inner carries timer-fired commands; a separate channel avoids a
	// cyclic send from the session onto its own public mailbox.
	inner chan command

	done chan struct{}
	log  zerolog.Logger
}

func create(ctx context.Context, m *Manager, room domain.RoomID, voiceChannel, textChannel domain.ChannelID, owner domain.UserID) (Handle, error) {
	logger := log.With().Str("module", "session").Str("room", string(room)).Logger()

	creds, deviceName, err := m.creds.Credentials(ctx, owner)
	if err != nil {
		return Handle{}, err
	}

	conn, err := m.driver.Join(ctx, room, voiceChannel)
	if err != nil {
		return Handle{}, err
	}
	call := voice.NewCall(conn)

	s := &Session{
		manager: m,

		room:         room,
		voiceChannel: voiceChannel,
		textChannel:  textChannel,

		call: call,

		owner:  owner,
		active: true,

		commands: make(chan command, 16),
		inner:    make(chan command, 16),

		done: make(chan struct{}),
		log:  logger,
	}

	handle := Handle{
		room:         room,
		voiceChannel: voiceChannel,
		textChannel:  textChannel,
		commands:     s.commands,
		done:         s.done,
	}

	pl, events, err := player.Create(ctx, m.connector, creds, call, deviceName, m.playerOpts)
	if err != nil {
		// Leave on error, otherwise the relay stays stuck in the room
		// until manually disconnected or taken over.
		if leaveErr := call.Leave(); leaveErr != nil {
			logger.Warn().Err(leaveErr).Msg("failed to leave voice after player create error")
		}
		logger.Error().Err(err).Msg("failed to create player")
		return Handle{}, err
	}
	s.player = pl
	s.events = events

	call.AddHandler(driverEventHandler(handle))

	s.armTimeout()
	go s.run()

	logger.Info().Str("owner", string(owner)).Msg("session created")
	return handle, nil
}

// driverEventHandler reacts to voice-driver events on behalf of the
// session. A forced driver disconnect tears the session down; the
// current owner leaving the channel only tears the player down so a
// new owner can claim the room.
func driverEventHandler(handle Handle) func(voice.Event) {
	return func(ev voice.Event) {
		if !handle.Valid() {
			return
		}

		switch ev.Kind {
		case voice.EventDriverDisconnect:
			log.Debug().Str("module", "session").Str("room", string(handle.room)).Msg("driver disconnected, cleaning up")
			handle.Disconnect()

		case voice.EventClientDisconnect:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			active, err := handle.Active(ctx)
			if err != nil || !active {
				return
			}
			owner, err := handle.Owner(ctx)
			if err == nil && owner == ev.User {
				log.Debug().Str("module", "session").Str("room", string(handle.room)).Msg("owner left channel, stopping playback")
				handle.ShutdownPlayer()
			}
		}
	}
}

func (s *Session) run() {
	defer s.cleanup()

	for {
		select {
		case cmd := <-s.commands:
			if stop := s.handleCommand(cmd); stop {
				return
			}

		case cmd := <-s.inner:
			if stop := s.handleCommand(cmd); stop {
				return
			}

		case ev, ok := <-s.events:
			if !ok {
				// Engine is gone; keep the voice connection for a new
				// owner to claim.
				s.shutdownPlayer()
				continue
			}
			s.handleEvent(ev)
		}
	}
}

// cleanup performs the registry-removal side effects of disconnecting.
// It runs on every run-loop exit so abnormal termination can not leave
// stale room or owner mappings behind.
func (s *Session) cleanup() {
	s.cancelTimeout()
	close(s.done)

	s.manager.removeRoom(s.room)
	if s.owner != "" {
		s.manager.removeOwner(s.owner)
	}

	s.log.Info().Msg("session terminated")
}

func (s *Session) handleCommand(cmd command) bool {
	switch cmd.kind {
	case cmdOwner:
		cmd.owner <- s.owner
	case cmdPlayer:
		cmd.player <- s.player
	case cmdActive:
		cmd.active <- s.active

	case cmdReactivate:
		cmd.reactivate.reply <- s.reactivate(cmd.reactivate.user)

	case cmdShutdownPlayer:
		s.shutdownPlayer()

	case cmdDisconnect:
		s.disconnect()
		return true

	case cmdTimedOut:
		s.log.Info().Msg("disconnecting due to inactivity")
		s.disconnect()
		if s.manager.notifier != nil {
			s.manager.notifier.Inactive(s.room)
		}
		return true
	}
	return false
}

func (s *Session) handleEvent(ev player.Event) {
	switch ev.Kind {
	case player.EventPlay:
		s.cancelTimeout()
	case player.EventPause:
		s.armTimeout()
	case player.EventStopped:
		s.shutdownPlayer()
	case player.EventTrackChanged:
	}

	if s.manager.notifier != nil {
		s.manager.notifier.PlaybackEvent(s.room, ev)
	}
}

// armTimeout (re)starts the inactivity window. Any Play event cancels
// it; firing disconnects the session through the inner mailbox.
func (s *Session) armTimeout() {
	s.cancelTimeout()

	cancel := make(chan struct{})
	s.timeoutCancel = cancel

	go func() {
		timer := time.NewTimer(s.manager.timeout)
		defer timer.Stop()

		select {
		case <-cancel:
			return
		case <-timer.C:
		}

		select {
		case s.inner <- command{kind: cmdTimedOut}:
		case <-s.done:
		}
	}()
}

func (s *Session) cancelTimeout() {
	if s.timeoutCancel != nil {
		close(s.timeoutCancel)
		s.timeoutCancel = nil
	}
}

// reactivate hands the session to a new owner. Only legal while
// inactive; the voice connection is reused, never re-joined.
func (s *Session) reactivate(user domain.UserID) error {
	if s.active {
		return ErrAlreadyActive
	}
	if existing, ok := s.manager.Find(user); ok && existing.Valid() {
		return ErrOwnerBusy
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	creds, deviceName, err := s.manager.creds.Credentials(ctx, user)
	if err != nil {
		return err
	}

	pl, events, err := player.Create(ctx, s.manager.connector, creds, s.call, deviceName, s.manager.playerOpts)
	if err != nil {
		return err
	}

	s.owner = user
	s.player = pl
	s.events = events
	s.active = true
	s.manager.bindOwner(user, Handle{
		room:         s.room,
		voiceChannel: s.voiceChannel,
		textChannel:  s.textChannel,
		commands:     s.commands,
		done:         s.done,
	})

	s.log.Info().Str("owner", string(user)).Msg("session reactivated")
	return nil
}

// shutdownPlayer tears down the engine but keeps the room joined so a
// new owner can claim it. No-op when already inactive.
func (s *Session) shutdownPlayer() {
	if !s.active {
		return
	}

	s.player.Shutdown()
	s.armTimeout()

	s.active = false
	s.events = nil

	s.manager.removeOwner(s.owner)
	s.owner = ""

	s.log.Info().Msg("player shut down, session inactive")
}

// disconnect is the terminal transition. Factored so the explicit
// command path and the timeout path behave identically.
func (s *Session) disconnect() {
	s.cancelTimeout()

	if s.active {
		s.player.Shutdown()
	}

	if err := s.call.Leave(); err != nil {
		s.log.Warn().Err(err).Msg("failed to leave voice connection")
	}
}
