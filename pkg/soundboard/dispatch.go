package soundboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
	"github.com/omriharel/soundboard/pkg/soundboard/playback"
)

const settingsCacheKey = "settings"

// Player is the part of the playback supervisor the dispatcher drives.
type Player interface {
	Play(ctx context.Context, sound catalog.Sound, settings catalog.Settings, restart bool) (*playback.Session, error)
	Toggle(ctx context.Context, sound catalog.Sound, settings catalog.Settings) (*playback.Session, error)
	Stop(soundID uuid.UUID) (bool, error)
}

// Dispatcher runs shortcut actions: it looks up the sound and settings, drives
// the player and keeps play counts.
type Dispatcher struct {
	logger   *zap.SugaredLogger
	sounds   catalog.SoundLookup
	settings catalog.SettingsLookup
	player   Player
	cache    *cache.Cache
}

// NewDispatcher creates a dispatcher. Settings are cached for cacheTTL.
func NewDispatcher(logger *zap.SugaredLogger, sounds catalog.SoundLookup, settings catalog.SettingsLookup, player Player, cacheTTL time.Duration) *Dispatcher {
	logger = logger.Named("dispatch")

	d := &Dispatcher{
		logger:   logger,
		sounds:   sounds,
		settings: settings,
		player:   player,
		cache:    cache.New(cacheTTL, 2*cacheTTL),
	}

	logger.Debugw("Created dispatcher instance", "settingsCacheTTL", cacheTTL)

	return d
}

// Dispatch performs action on the sound with soundID. It returns the session
// that is now playing, or nil when the action left the sound silent.
// STOP on a sound that isn't playing yields a NotPlayingError.
func (d *Dispatcher) Dispatch(ctx context.Context, action catalog.Action, soundID uuid.UUID) (*playback.Session, error) {
	if action == catalog.ActionStop {
		return nil, d.stop(soundID)
	}

	sound, err := d.sounds.Sound(ctx, soundID)
	if err != nil {
		return nil, fmt.Errorf("look up sound: %w", err)
	}

	if sound.SourceType == catalog.SourceYouTube && !sound.Ingested() {
		return nil, &catalog.NotIngestedError{SoundID: sound.ID}
	}

	settings, err := d.currentSettings(ctx)
	if err != nil {
		return nil, err
	}

	var session *playback.Session

	switch action {
	case catalog.ActionPlay:
		session, err = d.player.Play(ctx, sound, settings, false)
	case catalog.ActionRestart:
		session, err = d.player.Play(ctx, sound, settings, true)
	case catalog.ActionToggle:
		session, err = d.player.Toggle(ctx, sound, settings)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	if err != nil {
		return nil, err
	}

	if session != nil {
		d.logger.Infow("Dispatched action", "action", action, "session", session)

		if err := d.sounds.IncrementPlayCount(ctx, sound.ID); err != nil {
			d.logger.Warnw("Failed to increment play count", "sound", sound, "error", err)
		}
	} else {
		d.logger.Infow("Dispatched action, sound stopped", "action", action, "sound", sound)
	}

	return session, nil
}

// InvalidateSettings drops the cached settings so the next dispatch reads them fresh.
func (d *Dispatcher) InvalidateSettings() {
	d.cache.Flush()
}

func (d *Dispatcher) stop(soundID uuid.UUID) error {
	stopped, err := d.player.Stop(soundID)
	if err != nil {
		return err
	}

	if !stopped {
		d.logger.Debugw("Stop requested for silent sound", "soundID", soundID)
		return &playback.NotPlayingError{SoundID: soundID}
	}

	d.logger.Infow("Dispatched stop", "soundID", soundID)
	return nil
}

func (d *Dispatcher) currentSettings(ctx context.Context) (catalog.Settings, error) {
	if cached, ok := d.cache.Get(settingsCacheKey); ok {
		return cached.(catalog.Settings), nil
	}

	settings, err := d.settings.Settings(ctx)
	if err != nil {
		return catalog.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	d.cache.Set(settingsCacheKey, settings, cache.DefaultExpiration)

	return settings, nil
}

// isNegativeResult reports errors that describe a no-op rather than a failure.
func isNegativeResult(err error) bool {
	var notPlaying *playback.NotPlayingError
	return errors.As(err, &notPlaying)
}
