// Package errstore persists per-session failure reasons in SQLite.
//
// The store is written by session failure transitions and read or cleared
// by external callers such as a UI dismissing an error banner. Entries are
// keyed by session identifier and deliberately independent of Session
// object lifetime: they remain after the session is removed from the
// registry and across process restarts, until explicitly cleared.
package errstore
