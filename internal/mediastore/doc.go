// Package mediastore persists capture media: a SQLite index plus on-disk
// image blobs.
//
// It implements the two collaborator roles sessions depend on. The
// placeholder flow inserts a provisional pending entry whose location is
// the session identifier, lets previews replace its bytes while work is in
// flight, and promotes it to final media in place on finalization. The
// direct-save flow (AddImage) persists already-finished images without a
// session.
//
// Locations use the media:// scheme with a UUID suffix and never change
// across the placeholder-to-final transition.
package mediastore
