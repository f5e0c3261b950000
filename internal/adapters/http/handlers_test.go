package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoss/relay/internal/config"
	"github.com/nvoss/relay/internal/connect"
	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/notify"
	"github.com/nvoss/relay/internal/session"
	"github.com/nvoss/relay/internal/voice"
)

// --- fakes over the public collaborator interfaces ---

type fakeTrack struct{}

func (fakeTrack) Play() error  { return nil }
func (fakeTrack) Pause() error { return nil }

type fakeConn struct{}

func (fakeConn) PlayOnly(src io.Reader) (voice.Track, error) { return fakeTrack{}, nil }
func (fakeConn) Leave() error                                { return nil }
func (fakeConn) AddHandler(fn func(voice.Event))             {}

type fakeDriver struct{}

func (fakeDriver) Join(ctx context.Context, room domain.RoomID, channel domain.ChannelID) (voice.Conn, error) {
	return fakeConn{}, nil
}

type fakeRemote struct{}

func (fakeRemote) Next() error     { return nil }
func (fakeRemote) Previous() error { return nil }
func (fakeRemote) Pause() error    { return nil }
func (fakeRemote) Play() error     { return nil }
func (fakeRemote) Close() error    { return nil }

func (fakeRemote) Lyrics(ctx context.Context, id domain.TrackID) (*domain.Lyrics, error) {
	return nil, connect.ErrLyricsNotFound
}

type fakeConnector struct {
	mu     sync.Mutex
	events chan<- connect.Event
}

func (f *fakeConnector) Connect(ctx context.Context, creds connect.Credentials, deviceName string, sink connect.AudioSink, events chan<- connect.Event) (connect.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
	return fakeRemote{}, nil
}

func (f *fakeConnector) push(ev connect.Event) {
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()
	events <- ev
}

type fakeCreds struct{}

func (fakeCreds) Credentials(ctx context.Context, user domain.UserID) (connect.Credentials, string, error) {
	return connect.Credentials{Username: string(user)}, "Relay Test", nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeConnector) {
	t.Helper()

	connector := &fakeConnector{}
	hub := notify.NewHub()
	manager := session.NewManager(fakeDriver{}, connector, fakeCreds{}, hub, session.Config{
		InactivityTimeout: time.Minute,
	})
	t.Cleanup(manager.ShutdownAll)

	return SetupRouter(&config.Config{Mode: "release"}, manager, hub), connector
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func joinRoom(t *testing.T, r *gin.Engine, room, user string) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+room+"/join",
		`{"user_id":"`+user+`","voice_channel":"vc","text_channel":"tc"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// --- tests ---

func TestListSessionsEmpty(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/sessions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestJoinCreatesSession(t *testing.T) {
	r, _ := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	w := doJSON(t, r, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var views []struct {
		Room   string `json:"room"`
		Owner  string `json:"owner"`
		Active bool   `json:"active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "room-1", views[0].Room)
	assert.Equal(t, "alice", views[0].Owner)
	assert.True(t, views[0].Active)
}

func TestJoinRequiresUserID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/rooms/room-1/join", `{"voice_channel":"vc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinRejectsBusyOwner(t *testing.T) {
	r, _ := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	w := doJSON(t, r, http.MethodPost, "/api/rooms/room-2/join", `{"user_id":"alice"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJoinActiveRoomConflicts(t *testing.T) {
	r, _ := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	w := doJSON(t, r, http.MethodPost, "/api/rooms/room-1/join", `{"user_id":"bob"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJoinReactivatesInactiveSession(t *testing.T) {
	r, _ := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	w := doJSON(t, r, http.MethodPost, "/api/rooms/room-1/stop", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool {
		w := doJSON(t, r, http.MethodPost, "/api/rooms/room-1/join", `{"user_id":"bob"}`)
		return w.Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)
}

func TestPlayingWithoutSession(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/rooms/room-1/playing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayingWithoutTrack(t *testing.T) {
	r, _ := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	w := doJSON(t, r, http.MethodGet, "/api/rooms/room-1/playing", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPlayingReturnsCurrentTrack(t *testing.T) {
	r, connector := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	track := domain.Track{
		ID:         "4uLU6hMCjMI75M1A2tKUQC",
		Kind:       domain.KindTrack,
		Name:       "Song",
		Artists:    []string{"Artist"},
		DurationMS: 200_000,
	}
	connector.push(connect.Event{Kind: connect.EventTrackChanged, Track: &track})

	require.Eventually(t, func() bool {
		return doJSON(t, r, http.MethodGet, "/api/rooms/room-1/playing", "").Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	w := doJSON(t, r, http.MethodGet, "/api/rooms/room-1/playing", "")
	var body struct {
		URL        string `json:"url"`
		PositionMS int64  `json:"position_ms"`
		Playing    bool   `json:"playing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.URL, "4uLU6hMCjMI75M1A2tKUQC")
	assert.False(t, body.Playing)
}

func TestLyricsNoContentWhenServiceHasNone(t *testing.T) {
	r, connector := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	track := domain.Track{ID: "t1", Kind: domain.KindTrack, Name: "Song", DurationMS: 1000}
	connector.push(connect.Event{Kind: connect.EventTrackChanged, Track: &track})

	assert.Eventually(t, func() bool {
		w := doJSON(t, r, http.MethodGet, "/api/rooms/room-1/lyrics", "")
		return w.Code == http.StatusNoContent
	}, time.Second, 10*time.Millisecond)
}

func TestPlayerCommands(t *testing.T) {
	r, _ := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	for _, cmd := range []string{"next", "previous", "pause", "play"} {
		w := doJSON(t, r, http.MethodPost, "/api/rooms/room-1/player/"+cmd, "")
		assert.Equal(t, http.StatusAccepted, w.Code, cmd)
	}

	w := doJSON(t, r, http.MethodPost, "/api/rooms/room-1/player/louder", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoppedSessionRefusesPlaybackQueries(t *testing.T) {
	r, _ := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	w := doJSON(t, r, http.MethodPost, "/api/rooms/room-1/stop", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool {
		w := doJSON(t, r, http.MethodGet, "/api/rooms/room-1/playing", "")
		return w.Code == http.StatusConflict
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnectRemovesSession(t *testing.T) {
	r, _ := newTestRouter(t)

	joinRoom(t, r, "room-1", "alice")

	w := doJSON(t, r, http.MethodDelete, "/api/rooms/room-1", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool {
		w := doJSON(t, r, http.MethodGet, "/api/rooms/room-1/playing", "")
		return w.Code == http.StatusNotFound
	}, time.Second, 10*time.Millisecond)
}
