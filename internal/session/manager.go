package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nvoss/relay/internal/connect"
	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/player"
	"github.com/nvoss/relay/internal/voice"
)

const DefaultTimeout = 5 * time.Minute

type Config struct {
	// InactivityTimeout is how long a session may go without a Play
	// event before it auto-disconnects.
	InactivityTimeout time.Duration
	BridgeCapacity    int
}

// Manager is the registry of live sessions, keyed both by room and by
// owner. The two maps are kept consistent inside a single critical
// section per mutation.
type Manager struct {
	driver    voice.Driver
	connector connect.Connector
	creds     CredentialSource
	notifier  Notifier

	timeout    time.Duration
	playerOpts player.Options

	mu     sync.RWMutex
	rooms  map[domain.RoomID]Handle
	owners map[domain.UserID]Handle
}

func NewManager(driver voice.Driver, connector connect.Connector, creds CredentialSource, notifier Notifier, cfg Config) *Manager {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = DefaultTimeout
	}
	return &Manager{
		driver:    driver,
		connector: connector,
		creds:     creds,
		notifier:  notifier,

		timeout:    cfg.InactivityTimeout,
		playerOpts: player.Options{BridgeCapacity: cfg.BridgeCapacity},

		rooms:  make(map[domain.RoomID]Handle),
		owners: make(map[domain.UserID]Handle),
	}
}

// CreateSession joins the room's voice channel and starts a playback
// engine for owner. Ownership uniqueness is checked before any voice
// join work, so a rejected call has no side effects to undo.
func (m *Manager) CreateSession(ctx context.Context, room domain.RoomID, voiceChannel, textChannel domain.ChannelID, owner domain.UserID) (Handle, error) {
	if owner == "" {
		return Handle{}, ErrNoOwner
	}
	if existing, ok := m.Find(owner); ok && existing.Valid() {
		return Handle{}, ErrOwnerBusy
	}
	if existing, ok := m.Get(room); ok && existing.Valid() {
		return Handle{}, ErrRoomBusy
	}

	handle, err := create(ctx, m, room, voiceChannel, textChannel, owner)
	if err != nil {
		return Handle{}, err
	}

	m.mu.Lock()
	m.rooms[room] = handle
	m.owners[owner] = handle
	m.mu.Unlock()

	return handle, nil
}

func (m *Manager) Get(room domain.RoomID) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.rooms[room]
	return h, ok
}

func (m *Manager) Find(owner domain.UserID) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.owners[owner]
	return h, ok
}

func (m *Manager) All() []Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Handle, 0, len(m.rooms))
	for _, h := range m.rooms {
		out = append(out, h)
	}
	return out
}

// ActiveCount reports the number of live sessions, for stats.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, h := range m.rooms {
		if h.Valid() {
			count++
		}
	}
	return count
}

// ShutdownAll disconnects every session and clears both maps. Sessions
// might still be created during shutdown; that is not an error.
func (m *Manager) ShutdownAll() {
	for _, h := range m.All() {
		h.Disconnect()
	}

	m.mu.Lock()
	m.rooms = make(map[domain.RoomID]Handle)
	m.owners = make(map[domain.UserID]Handle)
	m.mu.Unlock()

	log.Info().Str("module", "session.manager").Msg("all sessions shut down")
}

func (m *Manager) bindOwner(owner domain.UserID, h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[owner] = h
}

func (m *Manager) removeRoom(room domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, room)
	log.Debug().Str("module", "session.manager").Str("room", string(room)).Msg("removed room mapping")
}

func (m *Manager) removeOwner(owner domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, owner)
	log.Debug().Str("module", "session.manager").Str("owner", string(owner)).Msg("removed owner mapping")
}
