package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoss/relay/internal/domain"
)

func TestCreateSessionRegistersBothMappings(t *testing.T) {
	m, driver, _, _ := newTestManager(t, time.Minute)

	h := mustCreate(t, m, "room-1", "alice")

	assert.True(t, h.Valid())
	assert.Equal(t, domain.RoomID("room-1"), h.Room())
	assert.Equal(t, domain.ChannelID("voice-chan"), h.VoiceChannel())
	assert.Equal(t, domain.ChannelID("text-chan"), h.TextChannel())
	assert.Equal(t, 1, driver.joinCount())

	byRoom, ok := m.Get("room-1")
	require.True(t, ok)
	assert.True(t, byRoom.Valid())

	byOwner, ok := m.Find("alice")
	require.True(t, ok)
	assert.Equal(t, byRoom.Room(), byOwner.Room())

	owner, err := h.Owner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), owner)

	active, err := h.Active(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
}

func TestCreateSessionRequiresOwner(t *testing.T) {
	m, driver, _, _ := newTestManager(t, time.Minute)

	_, err := m.CreateSession(context.Background(), "room-1", "vc", "tc", "")
	assert.ErrorIs(t, err, ErrNoOwner)
	assert.Equal(t, 0, driver.joinCount())
}

func TestCreateSessionRejectsBusyOwner(t *testing.T) {
	m, driver, _, _ := newTestManager(t, time.Minute)

	mustCreate(t, m, "room-1", "alice")

	_, err := m.CreateSession(context.Background(), "room-2", "vc", "tc", "alice")
	assert.ErrorIs(t, err, ErrOwnerBusy)
	assert.Equal(t, 1, driver.joinCount(), "rejected create must not touch voice")
}

func TestCreateSessionRejectsBusyRoom(t *testing.T) {
	m, driver, _, _ := newTestManager(t, time.Minute)

	mustCreate(t, m, "room-1", "alice")

	_, err := m.CreateSession(context.Background(), "room-1", "vc", "tc", "bob")
	assert.ErrorIs(t, err, ErrRoomBusy)
	assert.Equal(t, 1, driver.joinCount())
}

func TestCreateSessionLeavesVoiceWhenPlayerFails(t *testing.T) {
	m, driver, connector, _ := newTestManager(t, time.Minute)
	connector.err = errors.New("decode engine unreachable")

	_, err := m.CreateSession(context.Background(), "room-1", "vc", "tc", "alice")
	require.Error(t, err)

	assert.Equal(t, 1, driver.lastConn().leaveCount(), "a failed create must not squat in the channel")

	_, ok := m.Get("room-1")
	assert.False(t, ok)
	_, ok = m.Find("alice")
	assert.False(t, ok)
}

func TestActiveCountTracksLiveSessions(t *testing.T) {
	m, _, _, _ := newTestManager(t, time.Minute)

	assert.Equal(t, 0, m.ActiveCount())

	mustCreate(t, m, "room-1", "alice")
	h2 := mustCreate(t, m, "room-2", "bob")
	assert.Equal(t, 2, m.ActiveCount())
	assert.Len(t, m.All(), 2)

	h2.Disconnect()
	assert.Eventually(t, func() bool { return m.ActiveCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestShutdownAllDisconnectsEverySession(t *testing.T) {
	m, driver, _, _ := newTestManager(t, time.Minute)

	h1 := mustCreate(t, m, "room-1", "alice")
	h2 := mustCreate(t, m, "room-2", "bob")

	m.ShutdownAll()

	assert.Eventually(t, func() bool { return !h1.Valid() && !h2.Valid() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, m.ActiveCount())

	for _, conn := range driver.conns {
		assert.Equal(t, 1, conn.leaveCount())
	}
}
