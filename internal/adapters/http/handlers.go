package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nvoss/relay/internal/connect"
	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/notify"
	"github.com/nvoss/relay/internal/player"
	"github.com/nvoss/relay/internal/session"
	"github.com/nvoss/relay/internal/store"
	"github.com/nvoss/relay/internal/voice"
)

type handlers struct {
	manager *session.Manager
	hub     *notify.Hub
}

type joinRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	VoiceChannel string `json:"voice_channel"`
	TextChannel  string `json:"text_channel"`
}

type sessionView struct {
	Room   domain.RoomID `json:"room"`
	Owner  domain.UserID `json:"owner,omitempty"`
	Active bool          `json:"active"`
}

func (h *handlers) listSessions(c *gin.Context) {
	views := make([]sessionView, 0)
	for _, handle := range h.manager.All() {
		if !handle.Valid() {
			continue
		}
		view := sessionView{Room: handle.Room()}
		if active, err := handle.Active(c.Request.Context()); err == nil {
			view.Active = active
		}
		if owner, err := handle.Owner(c.Request.Context()); err == nil {
			view.Owner = owner
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, views)
}

// join creates a session for the room, or hands an inactive one over
// to the requesting user.
func (h *handlers) join(c *gin.Context) {
	room := domain.RoomID(c.Param("room"))

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user := domain.UserID(req.UserID)

	if existing, ok := h.manager.Get(room); ok && existing.Valid() {
		if err := existing.Reactivate(c.Request.Context(), user); err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"room": room, "owner": user, "reactivated": true})
		return
	}

	handle, err := h.manager.CreateSession(
		c.Request.Context(),
		room,
		domain.ChannelID(req.VoiceChannel),
		domain.ChannelID(req.TextChannel),
		user,
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room": handle.Room(), "owner": user})
}

func (h *handlers) playing(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	pl, err := handle.Player(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	info, err := pl.PlaybackInfo(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if info == nil {
		c.Status(http.StatusNoContent)
		return
	}

	track := info.Track()
	c.JSON(http.StatusOK, gin.H{
		"track":       track,
		"url":         track.URL(),
		"position_ms": info.CurrentPositionMS(),
		"playing":     info.Playing(),
	})
}

func (h *handlers) lyrics(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	pl, err := handle.Player(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	lyrics, err := pl.Lyrics(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if lyrics == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, lyrics)
}

func (h *handlers) playerCommand(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	pl, err := handle.Player(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	switch c.Param("cmd") {
	case "next":
		pl.Next()
	case "previous":
		pl.Previous()
	case "pause":
		pl.Pause()
	case "play":
		pl.Play()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown player command"})
		return
	}

	c.Status(http.StatusAccepted)
}

func (h *handlers) stop(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}
	handle.ShutdownPlayer()
	c.Status(http.StatusAccepted)
}

func (h *handlers) disconnect(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}
	handle.Disconnect()
	c.Status(http.StatusAccepted)
}

func (h *handlers) events(c *gin.Context) {
	room := domain.RoomID(c.Param("room"))
	if err := h.hub.Subscribe(c.Writer, c.Request, room); err != nil {
		log.Debug().Err(err).Str("module", "adapters.http").Msg("websocket upgrade failed")
	}
}

func (h *handlers) lookup(c *gin.Context) (session.Handle, bool) {
	room := domain.RoomID(c.Param("room"))
	handle, ok := h.manager.Get(room)
	if !ok || !handle.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session in this room"})
		return session.Handle{}, false
	}
	return handle, true
}

func (h *handlers) writeError(c *gin.Context, err error) {
	var (
		authErr *connect.AuthError
		joinErr *voice.JoinError
	)

	switch {
	case errors.Is(err, session.ErrAlreadyActive), errors.Is(err, session.ErrOwnerBusy), errors.Is(err, session.ErrRoomBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotLinked):
		c.JSON(http.StatusForbidden, gin.H{"error": "account not linked"})
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"error": "authentication with the music service failed"})
	case errors.As(err, &joinErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not join the voice channel"})
	case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrNoOwner):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, player.ErrClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "no active player in this room"})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
