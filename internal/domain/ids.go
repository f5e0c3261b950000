// Package domain contains entities without logic, just meta-data.
package domain

type (
	// RoomID identifies a voice-connected destination. At most one
	// relay session exists per room.
	RoomID string

	// ChannelID identifies a channel inside a room (voice input or
	// text output).
	ChannelID string

	// UserID identifies the user currently authorized to issue
	// playback commands for a session.
	UserID string

	// TrackID identifies a track or episode on the remote service.
	TrackID string
)
