// Package notify pushes live playback notifications to room
// subscribers over websockets. This is the session's output-channel
// collaborator: it mirrors what is playing and announces inactivity
// disconnects.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/player"
)

const (
	writeWait     = 5 * time.Second
	sendQueueSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type payload struct {
	Type       string        `json:"type"`
	Track      *domain.Track `json:"track,omitempty"`
	PositionMS int64         `json:"position_ms,omitempty"`
	Playing    bool          `json:"playing,omitempty"`
	Message    string        `json:"message,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[domain.RoomID]map[*client]struct{})}
}

// Subscribe upgrades the request and streams the room's notifications
// until the peer goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, room domain.RoomID) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueueSize)}

	h.mu.Lock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[*client]struct{})
		h.rooms[room] = subs
	}
	subs[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(room, c)
	go h.readPump(room, c)

	return nil
}

func (h *Hub) writePump(room domain.RoomID, c *client) {
	defer c.conn.Close()

	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("module", "notify").Str("room", string(room)).Msg("subscriber write error")
			return
		}
	}
}

// readPump only watches for the peer closing the connection.
func (h *Hub) readPump(room domain.RoomID, c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.unregister(room, c)
			return
		}
	}
}

func (h *Hub) unregister(room domain.RoomID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.rooms[room]; ok {
		if _, ok := subs[c]; ok {
			delete(subs, c)
			close(c.send)
		}
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// PlaybackEvent implements session.Notifier.
func (h *Hub) PlaybackEvent(room domain.RoomID, ev player.Event) {
	msg := payload{}
	switch ev.Kind {
	case player.EventPlay:
		msg.Type = "play"
	case player.EventPause:
		msg.Type = "pause"
	case player.EventStopped:
		msg.Type = "stopped"
	case player.EventTrackChanged:
		msg.Type = "track_changed"
	}

	if ev.Info != nil {
		track := ev.Info.Track()
		msg.Track = &track
		msg.PositionMS = ev.Info.CurrentPositionMS()
		msg.Playing = ev.Info.Playing()
	}

	h.broadcast(room, msg)
}

// Inactive implements session.Notifier.
func (h *Hub) Inactive(room domain.RoomID) {
	h.broadcast(room, payload{
		Type:    "inactive",
		Message: "The relay has been inactive for too long, and has been disconnected.",
	})
}

// broadcast is best-effort: subscribers that cannot keep up are
// dropped rather than slowing the session down.
func (h *Hub) broadcast(room domain.RoomID, msg payload) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "notify").Msg("marshal notification")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Debug().Str("module", "notify").Str("room", string(room)).Msg("dropping slow subscriber")
		h.unregister(room, c)
	}
}
