package errstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"darkroom/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS failed_sessions (
    identifier TEXT PRIMARY KEY,
    reason     TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

// Entry is one recorded failure reason.
type Entry struct {
	Identifier string
	Reason     string
	CreatedAt  time.Time
}

// Store persists failure reasons for capture sessions, keyed by session
// identifier. Entries outlive the Session objects that wrote them and
// survive process restarts; they are removed only by Clear.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the failure database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.MediaDir, "failures.db")
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
		return nil, fmt.Errorf("apply failure schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Set records the failure reason for an identifier, replacing any previous one.
func (s *Store) Set(ctx context.Context, identifier, reason string) error {
	if identifier == "" {
		return errors.New("identifier is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO failed_sessions (identifier, reason, created_at) VALUES (?, ?, ?)
         ON CONFLICT(identifier) DO UPDATE SET reason = excluded.reason, created_at = excluded.created_at`,
		identifier,
		reason,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// Has reports whether a failure reason exists for the identifier.
func (s *Store) Has(ctx context.Context, identifier string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM failed_sessions WHERE identifier = ?`, identifier)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup failure: %w", err)
	}
	return true, nil
}

// Get returns the failure reason for an identifier, or empty string when absent.
func (s *Store) Get(ctx context.Context, identifier string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT reason FROM failed_sessions WHERE identifier = ?`, identifier)
	var reason string
	if err := row.Scan(&reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get failure: %w", err)
	}
	return reason, nil
}

// Clear removes the failure reason for an identifier. Clearing an absent
// identifier is not an error.
func (s *Store) Clear(ctx context.Context, identifier string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failed_sessions WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("clear failure: %w", err)
	}
	return nil
}

// List returns all recorded failures ordered by recency.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identifier, reason, created_at FROM failed_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdRaw string
		if err := rows.Scan(&entry.Identifier, &entry.Reason, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
