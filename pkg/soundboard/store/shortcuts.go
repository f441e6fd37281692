package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

// ShortcutRepository reads and writes hotkey shortcuts.
type ShortcutRepository struct {
	db *sql.DB
}

var _ catalog.ShortcutLookup = (*ShortcutRepository)(nil)

// Create inserts a shortcut. The hotkey is stored normalized.
func (r *ShortcutRepository) Create(ctx context.Context, shortcut *catalog.Shortcut) error {
	if shortcut.ID == uuid.Nil {
		shortcut.ID = uuid.New()
	}

	shortcut.Hotkey = catalog.NormalizeHotkey(shortcut.Hotkey)
	if shortcut.Hotkey == "" {
		return fmt.Errorf("shortcut hotkey must not be empty")
	}

	now := time.Now()
	if shortcut.CreatedAt.IsZero() {
		shortcut.CreatedAt = now
	}
	shortcut.UpdatedAt = now

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO shortcuts (`+shortcutColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		shortcut.ID.String(), shortcut.SoundID.String(), shortcut.Hotkey, string(shortcut.Action),
		shortcut.Enabled, shortcut.CreatedAt.UnixMilli(), shortcut.UpdatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert shortcut: %w", err)
	}

	return nil
}

// Shortcuts returns every shortcut, enabled or not, ordered by hotkey.
func (r *ShortcutRepository) Shortcuts(ctx context.Context) ([]catalog.Shortcut, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+shortcutColumns+` FROM shortcuts ORDER BY hotkey, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list shortcuts: %w", err)
	}
	defer rows.Close()

	var shortcuts []catalog.Shortcut
	for rows.Next() {
		var model shortcutModel
		if err := rows.Scan(model.fields()...); err != nil {
			return nil, fmt.Errorf("scan shortcut: %w", err)
		}

		shortcut, err := model.toCatalog()
		if err != nil {
			return nil, err
		}
		shortcuts = append(shortcuts, shortcut)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shortcuts: %w", err)
	}

	return shortcuts, nil
}

// SetEnabled turns a shortcut on or off.
func (r *ShortcutRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE shortcuts SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UnixMilli(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("update shortcut: %w", err)
	}

	return requireAffected(result, &catalog.ShortcutNotFoundError{ID: id})
}

// Delete removes a shortcut.
func (r *ShortcutRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shortcuts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete shortcut: %w", err)
	}

	return requireAffected(result, &catalog.ShortcutNotFoundError{ID: id})
}
