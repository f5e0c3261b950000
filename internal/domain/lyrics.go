package domain

// LyricsLine is a single, optionally time-synced line of lyrics.
type LyricsLine struct {
	TimeMS int64  `json:"time_ms"`
	Words  string `json:"words"`
}

type Lyrics struct {
	TrackID  TrackID      `json:"track_id"`
	Provider string       `json:"provider,omitempty"`
	Synced   bool         `json:"synced"`
	Lines    []LyricsLine `json:"lines"`
}
