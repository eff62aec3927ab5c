package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"darkroom/internal/imagemeta"
	"darkroom/internal/logging"
	"darkroom/internal/mediastore"
	"darkroom/internal/notify"
	"darkroom/internal/sessiondir"
	"darkroom/internal/textutil"
)

// Session tracks one captured item from placeholder creation through final
// save or failure. All mutable fields are guarded by a single mutex owned
// by the session, so operations on one session are linearizable with
// respect to each other and independent of other sessions.
type Session struct {
	manager *Manager

	mu                 sync.Mutex
	id                 string
	title              string
	location           *mediastore.GeoLocation
	progressPercent    int
	progressMessage    string
	notificationHandle notify.Handle
	placeholder        mediastore.Placeholder
	finalLocation      string
	state              State
}

// Title returns the immutable session title.
func (s *Session) Title() string {
	return s.title
}

// Identifier returns the session identifier, empty before start.
func (s *Session) Identifier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Location returns the session's geospatial tag, nil when untagged.
func (s *Session) Location() *mediastore.GeoLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// SetLocation updates the session's geospatial tag.
func (s *Session) SetLocation(loc *mediastore.GeoLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = loc
}

// FinalLocation returns the persisted media location, empty until the
// session is done.
func (s *Session) FinalLocation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalLocation
}

// Progress returns the current progress percentage.
func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressPercent
}

// ProgressMessage returns the current status text.
func (s *Session) ProgressMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressMessage
}

// Start transitions the session into the started state, persisting the
// seed bytes as a fresh placeholder. The placeholder's output location
// becomes the session identifier, the session is registered, and a Queued
// event is emitted. A second start fails with ErrAlreadyStarted and leaves
// the first start's effects unchanged.
func (s *Session) Start(ctx context.Context, seed []byte, message string) error {
	return s.start(ctx, message, func() (mediastore.Placeholder, error) {
		return s.manager.placeholders.InsertPlaceholder(ctx, s.title, seed, time.Now())
	})
}

// StartFromExisting starts the session by converting an already-persisted
// media item back into a placeholder, preserving its location as the
// session identifier.
func (s *Session) StartFromExisting(ctx context.Context, existingLocation, message string) error {
	return s.start(ctx, message, func() (mediastore.Placeholder, error) {
		return s.manager.placeholders.ConvertToPlaceholder(ctx, existingLocation)
	})
}

func (s *Session) start(ctx context.Context, message string, allocate func() (mediastore.Placeholder, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreated {
		return ErrAlreadyStarted
	}

	placeholder, err := allocate()
	if err != nil {
		return fmt.Errorf("allocate placeholder: %w", err)
	}
	if !s.manager.registry.insert(placeholder.OutputLocation, s) {
		return fmt.Errorf("%w: %s", ErrIdentifierInUse, placeholder.OutputLocation)
	}

	// Notify only after registration: a rejected start must not have
	// announced a capture or leaked a notification handle.
	handle, err := s.manager.notifier.NotifyStart(ctx, message)
	if err != nil {
		s.manager.logger.Warn("start notification failed",
			logging.Error(err),
			logging.String(logging.FieldTitle, s.title),
		)
	}

	s.progressMessage = message
	s.notificationHandle = handle
	s.placeholder = placeholder
	s.id = placeholder.OutputLocation
	s.state = StateStarted

	s.manager.hub.emit(event{kind: evQueued, id: s.id})
	return nil
}

// SetProgress updates the progress percentage, forwards it to the
// notifier, and emits a Progress event. Values are clamped to [0,100].
func (s *Session) SetProgress(ctx context.Context, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return ErrNotStarted
	}

	s.progressPercent = clampPercent(percent)
	if err := s.manager.notifier.SetProgress(ctx, s.progressPercent, s.notificationHandle); err != nil {
		s.manager.logger.Warn("progress notification failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, s.id),
		)
	}
	s.manager.hub.emit(event{kind: evProgress, id: s.id, percent: s.progressPercent})
	return nil
}

// SetProgressMessage updates the status text and forwards it to the notifier.
func (s *Session) SetProgressMessage(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return ErrNotStarted
	}

	s.progressMessage = message
	if err := s.manager.notifier.SetStatus(ctx, message, s.notificationHandle); err != nil {
		s.manager.logger.Warn("status notification failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, s.id),
		)
	}
	return nil
}

// Finalize converts the placeholder into the persisted media item, records
// the final location, deregisters the session, and emits a Done event.
// The emitted identifier doubles as the final location because the
// placeholder is promoted in place.
func (s *Session) Finalize(ctx context.Context, data []byte, width, height, orientation int, meta imagemeta.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return ErrNotStarted
	}

	finalLocation, err := s.manager.placeholders.FinalizePlaceholder(
		ctx, s.placeholder, s.location, orientation, meta, data, width, height, imagemeta.MIMETypeJPEG,
	)
	if err != nil {
		return fmt.Errorf("finalize placeholder: %w", err)
	}

	s.finalLocation = finalLocation
	if err := s.manager.notifier.NotifyCompletion(ctx, s.notificationHandle); err != nil {
		s.manager.logger.Warn("completion notification failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, s.id),
		)
	}

	s.manager.registry.remove(s.id)
	s.state = StateDone
	s.manager.hub.emit(event{kind: evDone, id: s.finalLocation})

	s.manager.logger.Info("capture finalized",
		logging.String(logging.FieldSessionID, s.id),
		logging.String(logging.FieldTitle, s.title),
		logging.Int("width", width),
		logging.Int("height", height),
	)
	return nil
}

// Fail records the failure reason, deregisters the session, and emits a
// Failed event. The reason outlives the session in the failure store.
func (s *Session) Fail(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return ErrNotStarted
	}

	s.progressMessage = reason
	if err := s.manager.notifier.NotifyCompletion(ctx, s.notificationHandle); err != nil {
		s.manager.logger.Warn("completion notification failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, s.id),
		)
	}

	s.manager.registry.remove(s.id)
	if err := s.manager.failures.Set(ctx, s.placeholder.OutputLocation, reason); err != nil {
		s.manager.logger.Error("recording failure reason failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, s.id),
		)
	}

	s.state = StateFailed
	s.manager.hub.emit(event{kind: evFailed, id: s.placeholder.OutputLocation, reason: reason})

	s.manager.logger.Warn("capture failed",
		logging.String(logging.FieldSessionID, s.id),
		logging.String("reason", reason),
	)
	return nil
}

// Cancel removes a started session from the registry without emitting an
// event. Placeholder cleanup is deliberately the media-store owner's call
// (see mediastore.RemovePlaceholder); cancellation only retires the
// session. Cancelled is terminal: a background finalize already in flight
// resolves as a no-op against it.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id != "" {
		s.manager.registry.remove(s.id)
	}
	if s.state == StateStarted {
		s.state = StateCancelled
	}
}

// TempFilePath returns the session's designated temp file path without
// touching the filesystem. Use EnsureTempFile to provision it.
func (s *Session) TempFilePath() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempFilePathLocked()
}

func (s *Session) tempFilePathLocked() (string, error) {
	if s.id == "" {
		return "", ErrNotStarted
	}
	name := textutil.SanitizeFileName(s.title)
	if name == "" {
		name = "capture"
	}
	return filepath.Join(s.manager.dirs.Root(), sessiondir.TempSessions, name, name+".jpg"), nil
}

// EnsureTempFile provisions the temp directory and an empty temp file for
// the session if absent, returning the file path.
func (s *Session) EnsureTempFile() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.tempFilePathLocked()
	if err != nil {
		return "", err
	}
	if _, err := s.manager.dirs.SessionDirectory(sessiondir.TempSessions); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create temp session directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("create temp session file: %w", err)
		}
		_ = file.Close()
	}
	return path, nil
}

// FinalizeFromTempFile finalizes the session from its temp file on the
// background worker: the file is read, its dimensions decoded without a
// full pixel decode, EXIF extracted best-effort, and Finalize invoked.
// A temp-file read or decode failure transitions the session to failed and
// emits a Failed event rather than aborting silently.
func (s *Session) FinalizeFromTempFile() error {
	path, err := s.TempFilePath()
	if err != nil {
		return err
	}

	submitted := s.manager.worker.submit(func() {
		ctx := context.Background()

		data, err := os.ReadFile(path)
		if err != nil {
			s.failFromBackground(ctx, fmt.Sprintf("read temp file: %v", err))
			return
		}
		width, height, err := imagemeta.DecodeBounds(data)
		if err != nil {
			s.failFromBackground(ctx, fmt.Sprintf("decode capture: %v", err))
			return
		}

		meta, err := imagemeta.Extract(data)
		if err != nil {
			s.manager.logger.Debug("metadata extraction failed, proceeding without",
				logging.Error(err),
				logging.String(logging.FieldSessionID, s.Identifier()),
			)
			meta = imagemeta.Metadata{}
		}

		if err := s.Finalize(ctx, data, width, height, meta.Orientation, meta); err != nil {
			// A session cancelled after submission lands here; nothing to emit.
			s.manager.logger.Debug("background finalize skipped",
				logging.Error(err),
				logging.String(logging.FieldSessionID, s.Identifier()),
			)
		}
	})
	if !submitted {
		return ErrManagerClosed
	}
	return nil
}

func (s *Session) failFromBackground(ctx context.Context, reason string) {
	if err := s.Fail(ctx, reason); err != nil {
		s.manager.logger.Debug("background failure skipped",
			logging.Error(err),
			logging.String(logging.FieldSessionID, s.Identifier()),
		)
	}
}

// PreviewUpdated refreshes the placeholder's provisional bytes from the
// session temp file on the background worker and emits an Updated event.
// May be called any number of times while started; read failures are
// logged and produce no event, since preview refreshes are advisory.
func (s *Session) PreviewUpdated() error {
	path, err := s.TempFilePath()
	if err != nil {
		return err
	}

	submitted := s.manager.worker.submit(func() {
		ctx := context.Background()

		data, err := os.ReadFile(path)
		if err != nil {
			s.manager.logger.Debug("preview read failed",
				logging.Error(err),
				logging.String(logging.FieldSessionID, s.Identifier()),
			)
			return
		}
		width, height, err := imagemeta.DecodeBounds(data)
		if err != nil {
			s.manager.logger.Debug("preview decode failed",
				logging.Error(err),
				logging.String(logging.FieldSessionID, s.Identifier()),
			)
			return
		}
		if err := s.applyPreview(ctx, data, width, height); err != nil {
			s.manager.logger.Debug("preview update skipped",
				logging.Error(err),
				logging.String(logging.FieldSessionID, s.Identifier()),
			)
		}
	})
	if !submitted {
		return ErrManagerClosed
	}
	return nil
}

func (s *Session) applyPreview(ctx context.Context, data []byte, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return ErrNotStarted
	}
	if err := s.manager.placeholders.ReplacePlaceholder(ctx, s.placeholder, data, width, height); err != nil {
		return fmt.Errorf("replace placeholder: %w", err)
	}
	s.manager.hub.emit(event{kind: evUpdated, id: s.id})
	return nil
}
