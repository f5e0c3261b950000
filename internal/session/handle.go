package session

import (
	"context"

	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/player"
)

// Handle is the cheaply copyable client side of a session's mailbox.
type Handle struct {
	room         domain.RoomID
	voiceChannel domain.ChannelID
	textChannel  domain.ChannelID

	commands chan<- command
	done     <-chan struct{}
}

func (h Handle) Room() domain.RoomID            { return h.room }
func (h Handle) VoiceChannel() domain.ChannelID { return h.voiceChannel }
func (h Handle) TextChannel() domain.ChannelID  { return h.textChannel }

// Valid reports whether the session behind this handle still exists.
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

// Owner returns the current owner of the session.
func (h Handle) Owner(ctx context.Context) (domain.UserID, error) {
	reply := make(chan domain.UserID, 1)
	if err := h.send(command{kind: cmdOwner, owner: reply}); err != nil {
		return "", err
	}
	select {
	case owner := <-reply:
		return owner, nil
	case <-h.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Player returns the handle of the session's playback engine. The
// returned handle is invalid while the session is inactive.
func (h Handle) Player(ctx context.Context) (player.Handle, error) {
	reply := make(chan player.Handle, 1)
	if err := h.send(command{kind: cmdPlayer, player: reply}); err != nil {
		return player.Handle{}, err
	}
	select {
	case pl := <-reply:
		return pl, nil
	case <-h.done:
		return player.Handle{}, ErrClosed
	case <-ctx.Done():
		return player.Handle{}, ctx.Err()
	}
}

func (h Handle) Active(ctx context.Context) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.send(command{kind: cmdActive, active: reply}); err != nil {
		return false, err
	}
	select {
	case active := <-reply:
		return active, nil
	case <-h.done:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Reactivate makes another user owner of the session. Fails with
// ErrAlreadyActive while the session still has a live owner.
func (h Handle) Reactivate(ctx context.Context, user domain.UserID) error {
	reply := make(chan error, 1)
	if err := h.send(command{kind: cmdReactivate, reactivate: &reactivateReq{user: user, reply: reply}}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShutdownPlayer tears down the playback engine but keeps the voice
// connection, allowing another user to claim the session.
func (h Handle) ShutdownPlayer() { _ = h.send(command{kind: cmdShutdownPlayer}) }

// Disconnect destroys the session, releasing the voice connection and
// removing it from the registry.
func (h Handle) Disconnect() { _ = h.send(command{kind: cmdDisconnect}) }
