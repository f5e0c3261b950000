// Package whip implements voice.Driver by publishing the relay's audio
// to a WHIP-style ingest endpoint over a pion peer connection.
package whip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/nvoss/relay/internal/domain"
	"github.com/nvoss/relay/internal/voice"
)

const (
	sampleRate    = 48000
	channelCount  = 2
	frameDuration = 20 * time.Millisecond

	// frameBytes is 20 ms of 48 kHz stereo 16-bit PCM.
	frameBytes = sampleRate / 50 * channelCount * 2
)

type Driver struct {
	endpoint string
	client   *http.Client
}

func NewDriver(endpoint string) *Driver {
	return &Driver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Join dials the ingest endpoint for the given room/channel and
// negotiates a send-only audio session.
func (d *Driver) Join(ctx context.Context, room domain.RoomID, channel domain.ChannelID) (voice.Conn, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, &voice.JoinError{Room: room, Channel: channel, Err: err}
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: sampleRate, Channels: channelCount},
		"audio", fmt.Sprintf("relay-%s", room),
	)
	if err != nil {
		_ = pc.Close()
		return nil, &voice.JoinError{Room: room, Channel: channel, Err: err}
	}
	if _, err := pc.AddTrack(track); err != nil {
		_ = pc.Close()
		return nil, &voice.JoinError{Room: room, Channel: channel, Err: err}
	}

	if err := d.negotiate(ctx, pc, room, channel); err != nil {
		_ = pc.Close()
		return nil, &voice.JoinError{Room: room, Channel: channel, Err: err}
	}

	c := &conn{
		room:  room,
		pc:    pc,
		track: track,
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			c.dispatchDisconnect()
		default:
		}
	})

	log.Info().Str("module", "voice.whip").Str("room", string(room)).Str("channel", string(channel)).Msg("joined voice")
	return c, nil
}

func (d *Driver) negotiate(ctx context.Context, pc *webrtc.PeerConnection, room domain.RoomID, channel domain.ChannelID) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	url := fmt.Sprintf("%s/%s/%s", d.endpoint, room, channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(pc.LocalDescription().SDP)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ingest rejected offer: %s", resp.Status)
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  string(answer),
	})
}
