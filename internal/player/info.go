package player

import (
	"time"

	"github.com/nvoss/relay/internal/domain"
)

// Info is a snapshot of what is currently playing. It is mutated only
// by the owning engine, in response to decode events, and handed out
// as copies.
type Info struct {
	track domain.Track

	updatedAt  time.Time
	positionMS int64
	playing    bool
}

func NewInfo(track domain.Track, positionMS int64, playing bool) *Info {
	return &Info{
		track:      track,
		updatedAt:  time.Now(),
		positionMS: positionMS,
		playing:    playing,
	}
}

func (i *Info) Track() domain.Track  { return i.track }
func (i *Info) TrackID() domain.TrackID { return i.track.ID }
func (i *Info) DurationMS() int64    { return i.track.DurationMS }
func (i *Info) Playing() bool        { return i.playing }

// CurrentPositionMS accounts for wall-clock time passed since the last
// update, so position can be queried without a ticking timer.
func (i *Info) CurrentPositionMS() int64 {
	if i.playing {
		return i.positionMS + time.Since(i.updatedAt).Milliseconds()
	}
	return i.positionMS
}

func (i *Info) UpdatePlayback(positionMS int64, playing bool) {
	i.positionMS = positionMS
	i.playing = playing
	i.updatedAt = time.Now()
}

// UpdateTrack swaps the track metadata in place, preserving position
// continuity.
func (i *Info) UpdateTrack(track domain.Track) {
	i.track = track
}
