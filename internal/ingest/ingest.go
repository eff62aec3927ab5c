package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"darkroom/internal/config"
	"darkroom/internal/fileutil"
	"darkroom/internal/logging"
	"darkroom/internal/session"
	"darkroom/internal/textutil"
)

// progressStaged is reported once a spool file has been copied into the
// session temp file; the remaining half is the background finalize.
const progressStaged = 50

// Service watches the spool directory and runs a capture session for every
// image file dropped into it. Files are given a settle window after their
// last write before ingestion so partially-copied files are not picked up.
type Service struct {
	cfg     *config.Config
	manager *session.Manager
	logger  *slog.Logger
	settle  time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	watcher *fsnotify.Watcher
	started bool

	wg       sync.WaitGroup
	inflight sync.WaitGroup
}

// New builds a Service. The manager must outlive the service.
func New(cfg *config.Config, manager *session.Manager, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		manager: manager,
		logger:  logging.NewComponentLogger(logger, "ingest"),
		settle:  time.Duration(cfg.Ingest.SettleSeconds) * time.Second,
		timers:  make(map[string]*time.Timer),
	}
}

// Start begins watching the spool directory. Files already present are
// ingested immediately. Start is a no-op when ingest is disabled.
func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Ingest.Enabled {
		return nil
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("ingest service already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := os.MkdirAll(s.cfg.Paths.SpoolDir, 0o755); err != nil {
		return fmt.Errorf("create spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create spool watcher: %w", err)
	}
	if err := watcher.Add(s.cfg.Paths.SpoolDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch spool directory: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	entries, err := os.ReadDir(s.cfg.Paths.SpoolDir)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("scan spool directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s.schedule(ctx, filepath.Join(s.cfg.Paths.SpoolDir, entry.Name()))
	}

	s.wg.Add(1)
	go s.watch(ctx, watcher)

	s.logger.Info("spool watcher started",
		logging.String("dir", s.cfg.Paths.SpoolDir),
		logging.Duration("settle", s.settle),
	)
	return nil
}

// Stop halts watching, cancels pending settle timers, and waits for
// in-flight ingestions to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	for path, timer := range s.timers {
		if timer.Stop() {
			s.inflight.Done()
		}
		delete(s.timers, path)
	}
	s.mu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	s.wg.Wait()
	s.inflight.Wait()
}

func (s *Service) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
				s.schedule(ctx, ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("spool watcher error", logging.Error(err))
		}
	}
}

// schedule arms (or re-arms) the settle timer for a file. Each write resets
// the timer, so ingestion starts only after writes quiesce.
func (s *Service) schedule(ctx context.Context, path string) {
	if !eligible(path) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return
	}
	if timer, ok := s.timers[path]; ok {
		if timer.Stop() {
			s.inflight.Done()
		}
	}
	s.inflight.Add(1)
	s.timers[path] = time.AfterFunc(s.settle, func() {
		defer s.inflight.Done()

		s.mu.Lock()
		delete(s.timers, path)
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err := s.ingestFile(ctx, path); err != nil {
			s.logger.Error("ingest failed",
				logging.Error(err),
				logging.String("path", path),
			)
		}
	})
}

func eligible(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// ingestFile runs one file through the full session flow: the spool bytes
// seed the placeholder, land in the session temp file, and finalize on the
// background worker. The spool file is removed once handed off.
func (s *Service) ingestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read spool file: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("spool file %s is empty", path)
	}

	title := textutil.DeriveTitle(filepath.Base(path))
	sess := s.manager.NewSession(title, nil)
	if err := sess.Start(ctx, data, fmt.Sprintf("Ingesting %s", title)); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	tempPath, err := sess.EnsureTempFile()
	if err != nil {
		failErr := sess.Fail(ctx, fmt.Sprintf("provision temp file: %v", err))
		if failErr != nil {
			s.logger.Warn("failing session after temp file error", logging.Error(failErr))
		}
		return fmt.Errorf("ensure temp file: %w", err)
	}
	if err := fileutil.StageVerified(path, tempPath); err != nil {
		failErr := sess.Fail(ctx, fmt.Sprintf("stage temp file: %v", err))
		if failErr != nil {
			s.logger.Warn("failing session after staging error", logging.Error(failErr))
		}
		return fmt.Errorf("stage temp file: %w", err)
	}

	if err := sess.SetProgress(ctx, progressStaged); err != nil {
		s.logger.Warn("progress update failed", logging.Error(err))
	}

	if err := sess.FinalizeFromTempFile(); err != nil {
		return fmt.Errorf("finalize from temp file: %w", err)
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("could not remove spool file",
			logging.Error(err),
			logging.String("path", path),
		)
	}

	s.logger.Info("spool file ingested",
		logging.String("path", path),
		logging.String(logging.FieldSessionID, sess.Identifier()),
		logging.String(logging.FieldTitle, title),
	)
	return nil
}
