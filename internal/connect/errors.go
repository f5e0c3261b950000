package connect

import (
	"errors"
	"fmt"
)

// ErrLyricsNotFound means the service has no lyrics for the track.
// Callers treat this as "no lyrics", not as a failure.
var ErrLyricsNotFound = errors.New("lyrics not found")

// AuthError means the credentials are invalid or expired. Never
// retried; surfaced to the caller so they can re-link their account.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// TransientError wraps a network-level failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient connect error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
