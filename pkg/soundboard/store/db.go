// Package store persists the soundboard catalog (sounds, shortcuts, settings
// and play history) in a local SQLite database.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schema string

// per-connection pragmas go in the DSN so every pooled connection gets them
const connectionPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// DB manages the SQLite connection and hands out the catalog repositories.
type DB struct {
	logger *zap.SugaredLogger
	conn   *sql.DB
	path   string

	defaults catalog.Settings
}

// Open opens (and if needed creates) the database at path and applies the schema.
// defaults seed the settings row the first time it's read.
func Open(logger *zap.SugaredLogger, path string, defaults catalog.Settings) (*DB, error) {
	logger = logger.Named("store")
	logger.Debugw("Opening database", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		logger.Warnw("Failed to create database directory", "error", err, "path", dir)
		return nil, fmt.Errorf("create database directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path+connectionPragmas)
	if err != nil {
		logger.Warnw("Failed to open database", "error", err, "path", path)
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		logger.Warnw("Failed to ping database", "error", err, "path", path)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		logger.Warnw("Failed to enable WAL mode", "error", err)
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		logger.Warnw("Failed to apply schema", "error", err)
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Infow("Database initialized", "path", path)

	return &DB{
		logger:   logger,
		conn:     conn,
		path:     path,
		defaults: defaults,
	}, nil
}

// Close releases database resources.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	db.logger.Debugw("Closing database", "path", db.path)
	return db.conn.Close()
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// Sounds returns the sound repository.
func (db *DB) Sounds() *SoundRepository {
	return &SoundRepository{db: db.conn}
}

// Shortcuts returns the shortcut repository.
func (db *DB) Shortcuts() *ShortcutRepository {
	return &ShortcutRepository{db: db.conn}
}

// Settings returns the settings repository.
func (db *DB) Settings() *SettingsRepository {
	return &SettingsRepository{db: db.conn, defaults: db.defaults}
}

// History returns the play history repository.
func (db *DB) History() *HistoryRepository {
	return &HistoryRepository{db: db.conn}
}
