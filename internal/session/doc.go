// Package session implements the capture session lifecycle: a Manager
// creates sessions, each session moves from created through started to
// done, failed, or cancelled, and lifecycle events fan out to registered
// listeners on a dedicated delivery goroutine.
//
// A started session is addressed by the location of its media placeholder,
// which survives finalization, so the identifier a listener saw in Queued
// is the location the finished item lives at after Done. Failure reasons
// outlive sessions in a persistent store keyed by the same identifier.
package session
