package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

// SoundRepository reads and writes catalog sounds.
type SoundRepository struct {
	db *sql.DB
}

var _ catalog.SoundLookup = (*SoundRepository)(nil)

// Create inserts a new sound, assigning its id and timestamps when unset.
func (r *SoundRepository) Create(ctx context.Context, sound *catalog.Sound) error {
	if sound.ID == uuid.Nil {
		sound.ID = uuid.New()
	}

	now := time.Now()
	if sound.CreatedAt.IsZero() {
		sound.CreatedAt = now
	}
	sound.UpdatedAt = now

	if sound.IngestStatus == "" {
		sound.IngestStatus = defaultIngestStatus(*sound)
	}

	model, err := toSoundModel(*sound)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sounds (`+soundColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.ID, model.Name, model.Description, model.Tags, model.SourceType, model.SourceURL, model.LocalPath,
		model.Volume, model.TrimStart, model.TrimEnd, model.OutputDevice, model.PlayCount, model.IngestStatus,
		model.CreatedAt, model.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert sound: %w", err)
	}

	return nil
}

// Sound returns the sound with the given id, or a SoundNotFoundError.
func (r *SoundRepository) Sound(ctx context.Context, id uuid.UUID) (catalog.Sound, error) {
	var model soundModel

	err := r.db.QueryRowContext(ctx,
		`SELECT `+soundColumns+` FROM sounds WHERE id = ?`, id.String(),
	).Scan(model.fields()...)

	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Sound{}, &catalog.SoundNotFoundError{ID: id}
	}
	if err != nil {
		return catalog.Sound{}, fmt.Errorf("find sound: %w", err)
	}

	return model.toCatalog()
}

// List returns every sound ordered by name.
func (r *SoundRepository) List(ctx context.Context) ([]catalog.Sound, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+soundColumns+` FROM sounds ORDER BY name, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sounds: %w", err)
	}
	defer rows.Close()

	var sounds []catalog.Sound
	for rows.Next() {
		var model soundModel
		if err := rows.Scan(model.fields()...); err != nil {
			return nil, fmt.Errorf("scan sound: %w", err)
		}

		sound, err := model.toCatalog()
		if err != nil {
			return nil, err
		}
		sounds = append(sounds, sound)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sounds: %w", err)
	}

	return sounds, nil
}

// SetLocalPath records a downloaded local copy and marks the sound ready.
func (r *SoundRepository) SetLocalPath(ctx context.Context, id uuid.UUID, path string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sounds SET local_path = ?, ingest_status = ?, updated_at = ? WHERE id = ?`,
		optionalString(path), string(catalog.IngestReady), time.Now().UnixMilli(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("update sound local path: %w", err)
	}

	return requireAffected(result, &catalog.SoundNotFoundError{ID: id})
}

// IncrementPlayCount bumps the sound's play counter by one.
func (r *SoundRepository) IncrementPlayCount(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sounds SET play_count = play_count + 1 WHERE id = ?`, id.String(),
	)
	if err != nil {
		return fmt.Errorf("increment play count: %w", err)
	}

	return requireAffected(result, &catalog.SoundNotFoundError{ID: id})
}

// Delete removes a sound and, through the foreign key, its shortcuts.
func (r *SoundRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sounds WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete sound: %w", err)
	}

	return requireAffected(result, &catalog.SoundNotFoundError{ID: id})
}

// local files are usable immediately, remote ones wait for ingestion
func defaultIngestStatus(sound catalog.Sound) catalog.IngestStatus {
	if sound.SourceType == catalog.SourceLocalFile || sound.LocalPath != "" {
		return catalog.IngestReady
	}
	return catalog.IngestPending
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}

	if affected == 0 {
		return notFound
	}

	return nil
}
