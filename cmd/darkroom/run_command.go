package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"darkroom/internal/errstore"
	"darkroom/internal/ingest"
	"darkroom/internal/logging"
	"darkroom/internal/mediastore"
	"darkroom/internal/notify"
	"darkroom/internal/session"
	"darkroom/internal/sessiondir"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the capture pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, cmd)
		},
	}
}

func runPipeline(ctx *commandContext, cmd *cobra.Command) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "darkroom.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another darkroom instance holds %s", lockPath)
	}
	defer lock.Unlock()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "darkroom.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	media, err := mediastore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open media store: %w", err)
	}
	defer media.Close()

	failures, err := errstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open failure store: %w", err)
	}
	defer failures.Close()

	manager := session.NewManager(
		cfg,
		media,
		failures,
		sessiondir.New(cfg.Paths.SessionRoot),
		notify.NewNotifier(cfg),
		logger,
	)
	defer manager.Close()

	if cfg.Notifications.Errors {
		manager.AddListener(newFailureNotifier(cfg, logger))
	}

	spool := ingest.New(cfg, manager, logger)
	if err := spool.Start(signalCtx); err != nil {
		return fmt.Errorf("start ingest: %w", err)
	}
	defer spool.Stop()

	logger.Info("darkroom pipeline running",
		logging.String("spool", cfg.Paths.SpoolDir),
		logging.String("media", cfg.Paths.MediaDir),
	)

	<-signalCtx.Done()
	logger.Info("darkroom pipeline shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
