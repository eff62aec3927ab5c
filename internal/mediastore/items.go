package mediastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"darkroom/internal/imagemeta"
)

// locationScheme prefixes every media location produced by this store.
const locationScheme = "media://"

// ErrUnknownLocation indicates a media location with no backing row.
var ErrUnknownLocation = errors.New("unknown media location")

// InsertPlaceholder persists seed bytes as a provisional entry and returns
// its handle. The output location is the identifier consumers use to
// address the in-flight item.
func (s *Store) InsertPlaceholder(ctx context.Context, title string, seed []byte, takenAt time.Time) (Placeholder, error) {
	location := locationScheme + uuid.NewString()
	blobPath := filepath.Join(s.blobDir, strings.TrimPrefix(location, locationScheme)+".jpg")

	if err := os.WriteFile(blobPath, seed, 0o644); err != nil {
		return Placeholder{}, fmt.Errorf("write placeholder blob: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media_items (location, title, state, blob_path, taken_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		location,
		nullableString(title),
		StatePending,
		blobPath,
		takenAt.UTC().Format(time.RFC3339Nano),
		now,
		now,
	)
	if err != nil {
		_ = os.Remove(blobPath)
		return Placeholder{}, fmt.Errorf("insert placeholder: %w", err)
	}
	return Placeholder{OutputLocation: location}, nil
}

// ConvertToPlaceholder flips an existing media item back into the pending
// state so a session can re-process it in place. The item's location is
// preserved as the placeholder's output location.
func (s *Store) ConvertToPlaceholder(ctx context.Context, existingLocation string) (Placeholder, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE media_items SET state = ?, updated_at = ? WHERE location = ?`,
		StatePending,
		time.Now().UTC().Format(time.RFC3339Nano),
		existingLocation,
	)
	if err != nil {
		return Placeholder{}, fmt.Errorf("convert to placeholder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Placeholder{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return Placeholder{}, fmt.Errorf("%w: %s", ErrUnknownLocation, existingLocation)
	}
	return Placeholder{OutputLocation: existingLocation}, nil
}

// ReplacePlaceholder swaps the provisional bytes of a pending item, used
// for live preview refreshes before the final save.
func (s *Store) ReplacePlaceholder(ctx context.Context, ph Placeholder, data []byte, width, height int) error {
	item, err := s.GetItem(ctx, ph.OutputLocation)
	if err != nil {
		return err
	}
	if err := os.WriteFile(item.BlobPath, data, 0o644); err != nil {
		return fmt.Errorf("write preview blob: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE media_items SET width = ?, height = ?, updated_at = ? WHERE location = ?`,
		width,
		height,
		time.Now().UTC().Format(time.RFC3339Nano),
		ph.OutputLocation,
	)
	if err != nil {
		return fmt.Errorf("update placeholder dimensions: %w", err)
	}
	return nil
}

// FinalizePlaceholder converts a pending item into final media: the blob is
// rewritten with the processed bytes and the row is promoted in place, so
// the final location equals the placeholder's output location.
func (s *Store) FinalizePlaceholder(ctx context.Context, ph Placeholder, loc *GeoLocation, orientation int, meta imagemeta.Metadata, data []byte, width, height int, mimeType string) (string, error) {
	item, err := s.GetItem(ctx, ph.OutputLocation)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(item.BlobPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write final blob: %w", err)
	}

	if orientation == 0 {
		orientation = meta.Orientation
	}
	takenAt := item.TakenAt
	if !meta.TakenAt.IsZero() {
		takenAt = meta.TakenAt
	}

	var latitude, longitude any
	if loc != nil {
		latitude = loc.Latitude
		longitude = loc.Longitude
	}

	_, err = s.db.ExecContext(
		ctx,
		`UPDATE media_items
         SET state = ?, mime_type = ?, width = ?, height = ?, orientation = ?,
             latitude = ?, longitude = ?, camera_make = ?, camera_model = ?,
             taken_at = ?, updated_at = ?
         WHERE location = ?`,
		StateFinal,
		mimeType,
		width,
		height,
		orientation,
		latitude,
		longitude,
		nullableString(meta.CameraMake),
		nullableString(meta.CameraModel),
		nullableTime(takenAt),
		time.Now().UTC().Format(time.RFC3339Nano),
		ph.OutputLocation,
	)
	if err != nil {
		return "", fmt.Errorf("finalize placeholder: %w", err)
	}
	return ph.OutputLocation, nil
}

// RemovePlaceholder deletes a pending item and its blob. Final items are
// never removed through this path.
func (s *Store) RemovePlaceholder(ctx context.Context, location string) error {
	item, err := s.GetItem(ctx, location)
	if err != nil {
		if errors.Is(err, ErrUnknownLocation) {
			return nil
		}
		return err
	}
	if item.State != StatePending {
		return fmt.Errorf("refusing to remove non-pending item %s", location)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM media_items WHERE location = ?`, location); err != nil {
		return fmt.Errorf("delete placeholder: %w", err)
	}
	_ = os.Remove(item.BlobPath)
	return nil
}

// AddImage persists an already-finished image directly, bypassing the
// placeholder flow, and returns its location.
func (s *Store) AddImage(ctx context.Context, data []byte, title string, takenAt time.Time, loc *GeoLocation, width, height, orientation int, meta imagemeta.Metadata) (string, error) {
	location := locationScheme + uuid.NewString()
	blobPath := filepath.Join(s.blobDir, strings.TrimPrefix(location, locationScheme)+".jpg")

	if err := os.WriteFile(blobPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write image blob: %w", err)
	}

	if orientation == 0 {
		orientation = meta.Orientation
	}
	var latitude, longitude any
	if loc != nil {
		latitude = loc.Latitude
		longitude = loc.Longitude
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media_items (
            location, title, state, mime_type, width, height, orientation,
            latitude, longitude, camera_make, camera_model, taken_at, blob_path,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		location,
		nullableString(title),
		StateFinal,
		imagemeta.MIMETypeJPEG,
		width,
		height,
		orientation,
		latitude,
		longitude,
		nullableString(meta.CameraMake),
		nullableString(meta.CameraModel),
		nullableTime(takenAt),
		blobPath,
		now,
		now,
	)
	if err != nil {
		_ = os.Remove(blobPath)
		return "", fmt.Errorf("insert image: %w", err)
	}
	return location, nil
}

// GetItem fetches a media item by location.
func (s *Store) GetItem(ctx context.Context, location string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT location, title, state, mime_type, width, height, orientation,
                latitude, longitude, camera_make, camera_model, taken_at, blob_path,
                created_at, updated_at
         FROM media_items WHERE location = ?`,
		location,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, location)
	}
	if err != nil {
		return nil, fmt.Errorf("get media item: %w", err)
	}
	return item, nil
}

// ReadBlob returns the current image bytes of an item.
func (s *Store) ReadBlob(ctx context.Context, location string) ([]byte, error) {
	item, err := s.GetItem(ctx, location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(item.BlobPath)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		location    string
		title       sql.NullString
		stateStr    string
		mimeType    sql.NullString
		width       int
		height      int
		orientation int
		latitude    sql.NullFloat64
		longitude   sql.NullFloat64
		cameraMake  sql.NullString
		cameraModel sql.NullString
		takenRaw    sql.NullString
		blobPath    string
		createdRaw  string
		updatedRaw  string
	)

	if err := scanner.Scan(
		&location,
		&title,
		&stateStr,
		&mimeType,
		&width,
		&height,
		&orientation,
		&latitude,
		&longitude,
		&cameraMake,
		&cameraModel,
		&takenRaw,
		&blobPath,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		Location:    location,
		Title:       title.String,
		State:       ItemState(stateStr),
		MimeType:    mimeType.String,
		Width:       width,
		Height:      height,
		Orientation: orientation,
		CameraMake:  cameraMake.String,
		CameraModel: cameraModel.String,
		BlobPath:    blobPath,
	}
	if latitude.Valid && longitude.Valid {
		item.Location2D = &GeoLocation{Latitude: latitude.Float64, Longitude: longitude.Float64}
	}
	if takenRaw.Valid {
		if taken, err := time.Parse(time.RFC3339Nano, takenRaw.String); err == nil {
			item.TakenAt = taken
		}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
