// Package notify delivers capture processing notifications via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured
// in config.toml and gracefully degrades to a no-op when no topic is set.
// Handles track one in-flight capture each so progress and status updates
// can be throttled and correlated. Notifier failures are advisory; session
// code logs them and continues.
package notify
