// Package catalog holds the soundboard's catalog types (sounds, shortcuts and
// global settings) and the lookup contracts the playback core consumes.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType describes where a sound's audio comes from.
type SourceType string

const (
	SourceLocalFile SourceType = "LOCAL_FILE"
	SourceDirectURL SourceType = "DIRECT_URL"
	SourceYouTube   SourceType = "YOUTUBE"
)

// ParseSourceType accepts the canonical names case-insensitively.
func ParseSourceType(s string) (SourceType, error) {
	switch t := SourceType(strings.ToUpper(strings.TrimSpace(s))); t {
	case SourceLocalFile, SourceDirectURL, SourceYouTube:
		return t, nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// IngestStatus tracks the one-time download of a remote source into local storage.
type IngestStatus string

const (
	IngestPending    IngestStatus = "PENDING"
	IngestInProgress IngestStatus = "IN_PROGRESS"
	IngestReady      IngestStatus = "READY"
	IngestFailed     IngestStatus = "FAILED"
)

// Sound is a single catalog entry.
type Sound struct {
	ID          uuid.UUID
	Name        string
	Description string
	Tags        []string
	SourceType  SourceType
	SourceURL   string
	LocalPath   string

	// Per-sound overrides. nil means "use the settings default".
	Volume       *int
	TrimStart    *float64
	TrimEnd      *float64
	OutputDevice string

	PlayCount    int
	IngestStatus IngestStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ingested reports whether a remote sound already has a downloaded local copy.
func (s Sound) Ingested() bool {
	return s.LocalPath != ""
}

// PlayableSource returns the path or URL the player should open.
// A downloaded local copy always wins over the remote URL.
func (s Sound) PlayableSource() (string, bool) {
	var source string

	switch {
	case s.SourceType == SourceLocalFile, s.SourceType == SourceYouTube && s.LocalPath != "":
		source = s.LocalPath
	case s.SourceType == SourceDirectURL, s.SourceType == SourceYouTube:
		source = s.SourceURL
	}

	return source, source != ""
}

// String keeps log lines short.
func (s Sound) String() string {
	return fmt.Sprintf("<sound: %s (%s)>", s.Name, s.ID)
}

// Action is what a shortcut does to its sound.
type Action string

const (
	ActionPlay    Action = "PLAY"
	ActionStop    Action = "STOP"
	ActionToggle  Action = "TOGGLE"
	ActionRestart Action = "RESTART"
)

// ParseAction accepts the canonical names case-insensitively.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionPlay, ActionStop, ActionToggle, ActionRestart:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Shortcut binds a hotkey to an action on a sound.
type Shortcut struct {
	ID        uuid.UUID
	SoundID   uuid.UUID
	Hotkey    string
	Action    Action
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeHotkey is the canonical form hotkeys are stored and matched in.
func NormalizeHotkey(hotkey string) string {
	return strings.ToLower(strings.TrimSpace(hotkey))
}

// Settings are the global playback settings.
type Settings struct {
	DefaultOutputDevice string
	DefaultVolume       *int
	StopPreviousOnPlay  bool
	AllowOverlapping    bool
	PlayerPath          string
	UpdatedAt           time.Time
}

// Exclusive reports whether starting a sound must stop every other one.
// Allowing overlap always wins over stop-previous.
func (s Settings) Exclusive() bool {
	return s.StopPreviousOnPlay && !s.AllowOverlapping
}

// SoundLookup resolves sounds by identity.
type SoundLookup interface {
	Sound(ctx context.Context, id uuid.UUID) (Sound, error)
	IncrementPlayCount(ctx context.Context, id uuid.UUID) error
}

// SettingsLookup returns the current global settings.
type SettingsLookup interface {
	Settings(ctx context.Context) (Settings, error)
}

// ShortcutLookup lists shortcuts for building hotkey bindings.
type ShortcutLookup interface {
	Shortcuts(ctx context.Context) ([]Shortcut, error)
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(v int) *int {
	return &v
}

// FloatPtr is a small helper for optional float fields.
func FloatPtr(v float64) *float64 {
	return &v
}
