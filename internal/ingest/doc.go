// Package ingest feeds the capture pipeline from a spool directory. A
// filesystem watcher picks up image files as they appear, waits for writes
// to settle, and hands each file to a capture session that finalizes it
// into the media store.
package ingest
