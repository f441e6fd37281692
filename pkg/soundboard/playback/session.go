package playback

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// sessionStringFormat is the format used when displaying session details.
	sessionStringFormat = "<session: %s, pid: %d>"
)

// Session is one in-flight player invocation for one sound.
// It is immutable once created. The process handle belongs to the Supervisor.
type Session struct {
	soundID   uuid.UUID
	soundName string
	startedAt time.Time
	process   Process
}

func newSession(soundID uuid.UUID, soundName string, process Process, startedAt time.Time) *Session {
	return &Session{
		soundID:   soundID,
		soundName: soundName,
		startedAt: startedAt,
		process:   process,
	}
}

// SoundID returns the identity of the sound being played.
func (s *Session) SoundID() uuid.UUID {
	return s.soundID
}

// SoundName returns the display name captured at play time.
func (s *Session) SoundName() string {
	return s.soundName
}

// StartedAt returns the time the player was spawned.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// ProcessID returns the player's OS process id.
func (s *Session) ProcessID() int {
	return s.process.Pid()
}

// IsRunning probes the player process.
func (s *Session) IsRunning() bool {
	return s.process.Alive()
}

// Snapshot returns the session as plain data.
func (s *Session) Snapshot() NowPlaying {
	return NowPlaying{
		SoundID:   s.soundID,
		SoundName: s.soundName,
		StartedAt: s.startedAt,
		ProcessID: s.ProcessID(),
	}
}

// String provides a string representation of the session.
func (s *Session) String() string {
	return fmt.Sprintf(sessionStringFormat, s.soundName, s.ProcessID())
}

// NowPlaying is the plain-data view of a live session.
type NowPlaying struct {
	SoundID   uuid.UUID `json:"sound_id"`
	SoundName string    `json:"sound_name"`
	StartedAt time.Time `json:"started_at"`
	ProcessID int       `json:"process_id"`
}
