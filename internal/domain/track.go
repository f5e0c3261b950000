package domain

import "fmt"

type TrackKind string

const (
	KindTrack   TrackKind = "track"
	KindEpisode TrackKind = "episode"
)

// Track is the metadata snapshot of a single playable item.
type Track struct {
	ID         TrackID   `json:"id"`
	Kind       TrackKind `json:"kind"`
	Name       string    `json:"name"`
	Artists    []string  `json:"artists,omitempty"`
	AlbumName  string    `json:"album_name,omitempty"`
	ShowName   string    `json:"show_name,omitempty"`
	CoverURL   string    `json:"cover_url,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

func (t Track) IsEpisode() bool { return t.Kind == KindEpisode }

// URL returns the public web link for the item.
func (t Track) URL() string {
	if t.IsEpisode() {
		return fmt.Sprintf("https://open.spotify.com/episode/%s", t.ID)
	}
	return fmt.Sprintf("https://open.spotify.com/track/%s", t.ID)
}
