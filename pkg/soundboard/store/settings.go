package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

// SettingsRepository manages the singleton settings row.
type SettingsRepository struct {
	db       *sql.DB
	defaults catalog.Settings
}

var _ catalog.SettingsLookup = (*SettingsRepository)(nil)

// Settings returns the global settings, creating the row from defaults on first use.
func (r *SettingsRepository) Settings(ctx context.Context) (catalog.Settings, error) {
	if err := r.ensure(ctx); err != nil {
		return catalog.Settings{}, err
	}

	var (
		device     *string
		playerPath string
		stopPrev   bool
		overlap    bool
		volume     *int64
		updatedAt  int64
	)

	if err := r.db.QueryRowContext(ctx,
		`SELECT default_output_device, player_path, stop_previous_on_play, allow_overlapping, default_volume, updated_at
		 FROM settings WHERE id = 1`,
	).Scan(&device, &playerPath, &stopPrev, &overlap, &volume, &updatedAt); err != nil {
		return catalog.Settings{}, fmt.Errorf("read settings: %w", err)
	}

	settings := catalog.Settings{
		DefaultOutputDevice: deref(device),
		PlayerPath:          playerPath,
		StopPreviousOnPlay:  stopPrev,
		AllowOverlapping:    overlap,
		UpdatedAt:           time.UnixMilli(updatedAt),
	}

	if volume != nil {
		settings.DefaultVolume = catalog.IntPtr(int(*volume))
	}

	return settings, nil
}

// Update overwrites the settings row.
func (r *SettingsRepository) Update(ctx context.Context, settings catalog.Settings) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE settings SET default_output_device = ?, player_path = ?, stop_previous_on_play = ?,
		 allow_overlapping = ?, default_volume = ?, updated_at = ? WHERE id = 1`,
		optionalString(settings.DefaultOutputDevice), settings.PlayerPath, settings.StopPreviousOnPlay,
		settings.AllowOverlapping, optionalInt(settings.DefaultVolume), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	return nil
}

func (r *SettingsRepository) ensure(ctx context.Context) error {
	d := r.defaults

	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (id, default_output_device, player_path, stop_previous_on_play,
		 allow_overlapping, default_volume, updated_at) VALUES (1, ?, ?, ?, ?, ?, ?)`,
		optionalString(d.DefaultOutputDevice), d.PlayerPath, d.StopPreviousOnPlay,
		d.AllowOverlapping, optionalInt(d.DefaultVolume), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("create default settings: %w", err)
	}

	return nil
}

func optionalInt(v *int) *int64 {
	if v == nil {
		return nil
	}

	i := int64(*v)
	return &i
}
