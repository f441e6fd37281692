package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one playback, open until EndedAt is set.
type HistoryEntry struct {
	ID        int64
	SoundID   uuid.UUID
	SoundName string
	PID       int
	StartedAt time.Time
	EndedAt   *time.Time
}

// HistoryRepository records when sounds started and stopped playing.
type HistoryRepository struct {
	db *sql.DB
}

// RecordStart opens a history entry for a new playback.
func (r *HistoryRepository) RecordStart(ctx context.Context, soundID uuid.UUID, soundName string, pid int, startedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO play_history (sound_id, sound_name, pid, started_at) VALUES (?, ?, ?, ?)`,
		soundID.String(), soundName, pid, startedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert play history: %w", err)
	}

	return nil
}

// RecordEnd closes the open entry for the given playback, if any.
func (r *HistoryRepository) RecordEnd(ctx context.Context, soundID uuid.UUID, pid int, endedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE play_history SET ended_at = ? WHERE sound_id = ? AND pid = ? AND ended_at IS NULL`,
		endedAt.UnixMilli(), soundID.String(), pid,
	); err != nil {
		return fmt.Errorf("close play history: %w", err)
	}

	return nil
}

// Unfinished returns entries that never got an end time, oldest first.
// These belong to a previous run that didn't shut down cleanly.
func (r *HistoryRepository) Unfinished(ctx context.Context) ([]HistoryEntry, error) {
	return r.query(ctx,
		`SELECT id, sound_id, sound_name, pid, started_at, ended_at FROM play_history
		 WHERE ended_at IS NULL ORDER BY started_at, id`)
}

// Recent returns up to limit entries, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	return r.query(ctx,
		`SELECT id, sound_id, sound_name, pid, started_at, ended_at FROM play_history
		 ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// CloseUnfinished marks every open entry as ended at the given time.
func (r *HistoryRepository) CloseUnfinished(ctx context.Context, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE play_history SET ended_at = ? WHERE ended_at IS NULL`, at.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("close unfinished play history: %w", err)
	}

	closed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get affected rows: %w", err)
	}

	return closed, nil
}

func (r *HistoryRepository) query(ctx context.Context, query string, args ...any) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query play history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			entry     HistoryEntry
			soundID   string
			startedAt int64
			endedAt   *int64
		)

		if err := rows.Scan(&entry.ID, &soundID, &entry.SoundName, &entry.PID, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan play history: %w", err)
		}

		id, err := uuid.Parse(soundID)
		if err != nil {
			return nil, fmt.Errorf("parse sound id %q: %w", soundID, err)
		}

		entry.SoundID = id
		entry.StartedAt = time.UnixMilli(startedAt)
		if endedAt != nil {
			t := time.UnixMilli(*endedAt)
			entry.EndedAt = &t
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate play history: %w", err)
	}

	return entries, nil
}
