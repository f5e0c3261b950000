package whip

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/voice"
)

const (
	trackStatePlaying int32 = iota
	trackStatePaused
)

type conn struct {
	room  domain.RoomID
	pc    *webrtc.PeerConnection
	track *webrtc.TrackLocalStaticSample

	mu         sync.Mutex
	handlers   []func(voice.Event)
	pumpCancel context.CancelFunc

	disconnected sync.Once
}

// PlayOnly replaces the current audio source with src and starts the
// frame pump for it.
func (c *conn) PlayOnly(src io.Reader) (voice.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pumpCancel != nil {
		c.pumpCancel()
	}

	t := &outTrack{}
	ctx, cancel := context.WithCancel(context.Background())
	c.pumpCancel = cancel

	go c.pump(ctx, src, t)

	return t, nil
}

// pump pulls one fixed-size frame per tick from src and hands it to
// the sample track. src never blocks on empty (the bridge substitutes
// silence), so the cadence holds regardless of producer state.
func (c *conn) pump(ctx context.Context, src io.Reader, t *outTrack) {
	logger := log.With().Str("module", "voice.whip").Str("room", string(c.room)).Logger()

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	frame := make([]byte, frameBytes)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("frame pump stopped")
			return
		case <-ticker.C:
		}

		if atomic.LoadInt32(&t.state) == trackStatePaused {
			continue
		}

		if _, err := io.ReadFull(src, frame); err != nil {
			logger.Error().Err(err).Msg("source read failed, stopping pump")
			return
		}

		sample := media.Sample{
			Data:     append([]byte(nil), frame...),
			Duration: frameDuration,
		}
		if err := c.track.WriteSample(sample); err != nil {
			logger.Error().Err(err).Msg("sample write failed, stopping pump")
			return
		}
	}
}

func (c *conn) Leave() error {
	c.mu.Lock()
	if c.pumpCancel != nil {
		c.pumpCancel()
		c.pumpCancel = nil
	}
	c.mu.Unlock()

	return c.pc.Close()
}

func (c *conn) AddHandler(fn func(voice.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

func (c *conn) dispatchDisconnect() {
	c.disconnected.Do(func() {
		c.mu.Lock()
		handlers := append(([]func(voice.Event))(nil), c.handlers...)
		c.mu.Unlock()

		for _, fn := range handlers {
			fn(voice.Event{Kind: voice.EventDriverDisconnect})
		}
	})
}

// outTrack gates the pump. Playing by default; the engine pauses it
// right after attach and unpauses once bytes reach the bridge.
type outTrack struct {
	state int32
}

func (t *outTrack) Play() error {
	atomic.StoreInt32(&t.state, trackStatePlaying)
	return nil
}

func (t *outTrack) Pause() error {
	atomic.StoreInt32(&t.state, trackStatePaused)
	return nil
}
