// Package logging assembles structured slog loggers used across Darkroom.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attr helpers plus standardized field keys so
// components tag log lines consistently (component, session_id, title).
// A no-op logger is provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so all components
// emit data with the same shape and routing.
package logging
