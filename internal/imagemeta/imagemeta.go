package imagemeta

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// MIMETypeJPEG is the mime type recorded for finalized capture images.
const MIMETypeJPEG = "image/jpeg"

// Metadata carries per-image embedded attributes extracted from capture bytes.
// The zero value means "no metadata available" and is always safe to persist.
type Metadata struct {
	Orientation int
	CameraMake  string
	CameraModel string
	TakenAt     time.Time
}

// IsZero reports whether no metadata fields were populated.
func (m Metadata) IsZero() bool {
	return m.Orientation == 0 && m.CameraMake == "" && m.CameraModel == "" && m.TakenAt.IsZero()
}

// DecodeBounds returns the pixel dimensions of an encoded image without
// decoding pixel data.
func DecodeBounds(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image bounds: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Extract reads EXIF attributes from the image bytes on a best-effort basis.
// Any parse failure returns the zero Metadata and the error; callers treat
// the failure as non-fatal and log it.
func Extract(data []byte) (Metadata, error) {
	parsed, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("decode exif: %w", err)
	}

	var meta Metadata
	if tag, err := parsed.Get(exif.Orientation); err == nil {
		if value, err := tag.Int(0); err == nil {
			meta.Orientation = value
		}
	}
	if tag, err := parsed.Get(exif.Make); err == nil {
		if value, err := tag.StringVal(); err == nil {
			meta.CameraMake = value
		}
	}
	if tag, err := parsed.Get(exif.Model); err == nil {
		if value, err := tag.StringVal(); err == nil {
			meta.CameraModel = value
		}
	}
	if taken, err := parsed.DateTime(); err == nil {
		meta.TakenAt = taken
	}
	return meta, nil
}
