package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SessionRoot string `toml:"session_root"`
	MediaDir    string `toml:"media_dir"`
	SpoolDir    string `toml:"spool_dir"`
	LogDir      string `toml:"log_dir"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Progress       bool   `toml:"progress"`
	ProgressStep   int    `toml:"progress_step"`
	Errors         bool   `toml:"errors"`
}

// Ingest contains configuration for the spool-directory capture watcher.
type Ingest struct {
	Enabled       bool `toml:"enabled"`
	SettleSeconds int  `toml:"settle_seconds"`
}

// Sessions contains tuning knobs for the session manager internals.
type Sessions struct {
	EventQueueDepth int `toml:"event_queue_depth"`
	TaskQueueDepth  int `toml:"task_queue_depth"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Darkroom.
//
// Configuration sections by subsystem:
//   - Paths: session, media, spool, and log directories
//   - Notifications: ntfy push notification settings
//   - Ingest: spool-directory watcher for incoming captures
//   - Sessions: queue depths for event delivery and background work
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Notifications Notifications `toml:"notifications"`
	Ingest        Ingest        `toml:"ingest"`
	Sessions      Sessions      `toml:"sessions"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/darkroom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("darkroom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ExpandPath expands a leading ~ and returns a cleaned absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates required directories for pipeline operation.
// The spool directory is created on a best-effort basis so the manager can
// run when ingest is disabled or its storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SessionRoot, c.Paths.MediaDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.SpoolDir) != "" {
		_ = os.MkdirAll(c.Paths.SpoolDir, 0o755)
	}
	return nil
}

func (c *Config) normalize() error {
	expand := func(field *string) error {
		value, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = value
		return nil
	}
	for _, field := range []*string{
		&c.Paths.SessionRoot,
		&c.Paths.MediaDir,
		&c.Paths.SpoolDir,
		&c.Paths.LogDir,
	} {
		if err := expand(field); err != nil {
			return err
		}
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
