// Package http exposes the relay's command surface to the UI
// collaborator as a REST API plus a websocket event feed.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nvoss/relay/internal/config"
	"github.com/nvoss/relay/internal/notify"
	"github.com/nvoss/relay/internal/session"
)

func SetupRouter(cfg *config.Config, manager *session.Manager, hub *notify.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &handlers{manager: manager, hub: hub}

	api := r.Group("/api")
	api.GET("/sessions", h.listSessions)

	rooms := api.Group("/rooms/:room")
	rooms.POST("/join", h.join)
	rooms.GET("/playing", h.playing)
	rooms.GET("/lyrics", h.lyrics)
	rooms.POST("/player/:cmd", h.playerCommand)
	rooms.POST("/stop", h.stop)
	rooms.DELETE("", h.disconnect)
	rooms.GET("/events", h.events)

	return r
}
