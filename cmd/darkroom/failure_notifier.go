package main

import (
	"context"
	"log/slog"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/logging"
	"darkroom/internal/notify"
)

// failureNotifier forwards Failed events to the push notifier. It runs on
// the event delivery goroutine, so pushes carry their own timeout instead
// of inheriting a request context.
type failureNotifier struct {
	notifier notify.Notifier
	logger   *slog.Logger
}

func newFailureNotifier(cfg *config.Config, logger *slog.Logger) *failureNotifier {
	return &failureNotifier{
		notifier: notify.NewNotifier(cfg),
		logger:   logging.NewComponentLogger(logger, "failure-notifier"),
	}
}

func (f *failureNotifier) OnQueued(string)        {}
func (f *failureNotifier) OnProgress(string, int) {}
func (f *failureNotifier) OnDone(string)          {}
func (f *failureNotifier) OnUpdated(string)       {}

func (f *failureNotifier) OnFailed(id string, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := f.notifier.NotifyError(ctx, id, reason); err != nil {
		f.logger.Warn("error notification failed",
			logging.Error(err),
			logging.String(logging.FieldSessionID, id),
		)
	}
}
