package session

import (
	"context"
	"log/slog"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/imagemeta"
	"darkroom/internal/logging"
	"darkroom/internal/mediastore"
	"darkroom/internal/notify"
)

// PlaceholderStore is the media persistence surface sessions depend on.
// *mediastore.Store satisfies it.
type PlaceholderStore interface {
	InsertPlaceholder(ctx context.Context, title string, seed []byte, takenAt time.Time) (mediastore.Placeholder, error)
	ConvertToPlaceholder(ctx context.Context, existingLocation string) (mediastore.Placeholder, error)
	ReplacePlaceholder(ctx context.Context, ph mediastore.Placeholder, data []byte, width, height int) error
	FinalizePlaceholder(ctx context.Context, ph mediastore.Placeholder, loc *mediastore.GeoLocation, orientation int, meta imagemeta.Metadata, data []byte, width, height int, mimeType string) (string, error)
	AddImage(ctx context.Context, data []byte, title string, takenAt time.Time, loc *mediastore.GeoLocation, width, height, orientation int, meta imagemeta.Metadata) (string, error)
}

// DirectoryProvider resolves on-disk scratch directories for sessions.
// *sessiondir.Provider satisfies it.
type DirectoryProvider interface {
	Root() string
	SessionDirectory(sub string) (string, error)
}

// ErrorStore persists failure reasons beyond a session's lifetime.
// *errstore.Store satisfies it.
type ErrorStore interface {
	Set(ctx context.Context, identifier, reason string) error
	Has(ctx context.Context, identifier string) (bool, error)
	Get(ctx context.Context, identifier string) (string, error)
	Clear(ctx context.Context, identifier string) error
}

// Manager creates capture sessions and answers queries about in-flight
// ones. Sessions deregister themselves as they reach a terminal state, so
// queries only ever see started work.
type Manager struct {
	placeholders PlaceholderStore
	failures     ErrorStore
	dirs         DirectoryProvider
	notifier     notify.Notifier
	logger       *slog.Logger

	registry *registry
	hub      *listenerHub
	worker   *serialWorker
}

// NewManager wires a session manager from its collaborators.
func NewManager(cfg *config.Config, placeholders PlaceholderStore, failures ErrorStore, dirs DirectoryProvider, notifier notify.Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		placeholders: placeholders,
		failures:     failures,
		dirs:         dirs,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "sessions"),
		registry:     newRegistry(),
		hub:          newListenerHub(cfg.Sessions.EventQueueDepth),
		worker:       newSerialWorker(cfg.Sessions.TaskQueueDepth),
	}
}

// NewSession creates a session in the created state. The title tags the
// session's artifacts; the geospatial location may be nil.
func (m *Manager) NewSession(title string, loc *mediastore.GeoLocation) *Session {
	return &Session{
		manager:            m,
		title:              title,
		location:           loc,
		notificationHandle: notify.NoHandle,
		state:              StateCreated,
	}
}

// NewAnonymousSession creates an untitled, untagged session for captures
// whose name is only known later.
func (m *Manager) NewAnonymousSession() *Session {
	return m.NewSession("", nil)
}

// Session returns the started session registered under id, or nil.
func (m *Manager) Session(id string) *Session {
	return m.registry.lookup(id)
}

// Identifiers lists the identifiers of all started sessions, in no
// particular order.
func (m *Manager) Identifiers() []string {
	return m.registry.identifiers()
}

// Progress reports the progress percentage for the identifier, or
// ProgressUnknown when no started session is registered under it.
func (m *Manager) Progress(id string) int {
	s := m.registry.lookup(id)
	if s == nil {
		return ProgressUnknown
	}
	return s.Progress()
}

// ProgressMessage reports the status text for the identifier.
func (m *Manager) ProgressMessage(id string) (string, error) {
	s := m.registry.lookup(id)
	if s == nil {
		return "", ErrUnknownSession
	}
	return s.ProgressMessage(), nil
}

// SessionDirectory resolves a named scratch directory under the session
// root, creating it on first use.
func (m *Manager) SessionDirectory(sub string) (string, error) {
	return m.dirs.SessionDirectory(sub)
}

// SaveImage persists a finished image directly, without the placeholder
// flow. No session events are emitted.
func (m *Manager) SaveImage(ctx context.Context, data []byte, title string, takenAt time.Time, loc *mediastore.GeoLocation, width, height, orientation int, meta imagemeta.Metadata) (string, error) {
	return m.placeholders.AddImage(ctx, data, title, takenAt, loc, width, height, orientation, meta)
}

// AddListener registers a lifecycle listener. It sees events emitted after
// registration; in-flight deliveries are unaffected.
func (m *Manager) AddListener(listener Listener) {
	m.hub.add(listener)
}

// RemoveListener deregisters a lifecycle listener.
func (m *Manager) RemoveListener(listener Listener) {
	m.hub.remove(listener)
}

// HasError reports whether a failure reason is recorded for the identifier.
func (m *Manager) HasError(ctx context.Context, id string) (bool, error) {
	return m.failures.Has(ctx, id)
}

// Error returns the recorded failure reason, empty when none.
func (m *Manager) Error(ctx context.Context, id string) (string, error) {
	return m.failures.Get(ctx, id)
}

// ClearError removes the recorded failure reason for the identifier.
func (m *Manager) ClearError(ctx context.Context, id string) error {
	return m.failures.Clear(ctx, id)
}

// Close drains background tasks, then the event queue. Submissions after
// Close fail with ErrManagerClosed; registered sessions are left as they
// are.
func (m *Manager) Close() {
	m.worker.close()
	m.hub.close()
}
