package playback

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrClosed is returned by Play, Toggle and Restart after Close.
var ErrClosed = errors.New("playback: supervisor closed")

// NoSourceError indicates that a sound has neither a local copy nor a remote URL.
type NoSourceError struct {
	SoundID uuid.UUID
}

// Error implements the error interface.
func (e *NoSourceError) Error() string {
	return fmt.Sprintf("no playable source for sound %s", e.SoundID)
}

// SpawnFailedError indicates that the player could not be started or died
// during the startup grace period.
type SpawnFailedError struct {
	SoundID     uuid.UUID
	Executable  string
	Diagnostics string
	Err         error
}

// Error implements the error interface.
func (e *SpawnFailedError) Error() string {
	msg := fmt.Sprintf("spawn %s for sound %s: %v", e.Executable, e.SoundID, e.Err)
	if e.Diagnostics != "" {
		msg += ": " + e.Diagnostics
	}
	return msg
}

// Unwrap returns the underlying start or exit error.
func (e *SpawnFailedError) Unwrap() error {
	return e.Err
}

// NotPlayingError indicates a stop request for a sound with no live session.
// Callers normally treat it as a negative result rather than a failure.
type NotPlayingError struct {
	SoundID uuid.UUID
}

// Error implements the error interface.
func (e *NotPlayingError) Error() string {
	return fmt.Sprintf("sound %s is not currently playing", e.SoundID)
}
