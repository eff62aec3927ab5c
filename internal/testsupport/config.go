package testsupport

import (
	"path/filepath"
	"testing"

	"darkroom/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SessionRoot = filepath.Join(base, "sessions")
	cfg.Paths.MediaDir = filepath.Join(base, "media")
	cfg.Paths.SpoolDir = filepath.Join(base, "spool")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Notifications.NtfyTopic = ""
	cfg.Ingest.SettleSeconds = 0
	return &cfg
}
