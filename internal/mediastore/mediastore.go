package mediastore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"darkroom/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS media_items (
    location    TEXT PRIMARY KEY,
    title       TEXT,
    state       TEXT NOT NULL,
    mime_type   TEXT,
    width       INTEGER NOT NULL DEFAULT 0,
    height      INTEGER NOT NULL DEFAULT 0,
    orientation INTEGER NOT NULL DEFAULT 0,
    latitude    REAL,
    longitude   REAL,
    camera_make  TEXT,
    camera_model TEXT,
    taken_at    TEXT,
    blob_path   TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_media_items_state ON media_items(state);`

// ItemState tracks whether an item is a provisional placeholder or final media.
type ItemState string

const (
	StatePending ItemState = "pending"
	StateFinal   ItemState = "final"
)

// GeoLocation is an optional geospatial tag carried by media items.
type GeoLocation struct {
	Latitude  float64
	Longitude float64
}

// Placeholder is an opaque handle to a provisional persisted entry.
type Placeholder struct {
	OutputLocation string
}

// Item is one persisted media row.
type Item struct {
	Location    string
	Title       string
	State       ItemState
	MimeType    string
	Width       int
	Height      int
	Orientation int
	Location2D  *GeoLocation
	CameraMake  string
	CameraModel string
	TakenAt     time.Time
	BlobPath    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists media items: a SQLite index plus on-disk image blobs.
type Store struct {
	db      *sql.DB
	path    string
	blobDir string
}

// Open initializes or connects to the media database under the configured
// media directory and ensures the blob directory exists.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	blobDir := filepath.Join(cfg.Paths.MediaDir, "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.MediaDir, "media.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply media schema: %w", err)
	}

	return &Store{db: db, path: dbPath, blobDir: blobDir}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
