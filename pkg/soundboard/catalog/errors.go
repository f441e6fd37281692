package catalog

import (
	"fmt"

	"github.com/google/uuid"
)

// SoundNotFoundError indicates that no sound exists with the given id.
type SoundNotFoundError struct {
	ID uuid.UUID
}

// Error implements the error interface.
func (e *SoundNotFoundError) Error() string {
	return fmt.Sprintf("sound not found: id=%s", e.ID)
}

// ShortcutNotFoundError indicates that no shortcut exists with the given id.
type ShortcutNotFoundError struct {
	ID uuid.UUID
}

// Error implements the error interface.
func (e *ShortcutNotFoundError) Error() string {
	return fmt.Sprintf("shortcut not found: id=%s", e.ID)
}

// NotIngestedError indicates a YouTube sound that has not been downloaded yet
// and therefore cannot be played.
type NotIngestedError struct {
	SoundID uuid.UUID
}

// Error implements the error interface.
func (e *NotIngestedError) Error() string {
	return fmt.Sprintf("youtube sound must be ingested first: id=%s", e.SoundID)
}
