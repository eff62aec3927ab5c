package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.SessionRoot == "" {
		return errors.New("paths.session_root must be set")
	}
	if c.Paths.MediaDir == "" {
		return errors.New("paths.media_dir must be set")
	}
	if c.Ingest.Enabled && c.Paths.SpoolDir == "" {
		return errors.New("paths.spool_dir must be set when ingest is enabled")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must not be negative")
	}
	if c.Notifications.ProgressStep < 0 || c.Notifications.ProgressStep > 100 {
		return errors.New("notifications.progress_step must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateSessions() error {
	if c.Sessions.EventQueueDepth <= 0 {
		return errors.New("sessions.event_queue_depth must be positive")
	}
	if c.Sessions.TaskQueueDepth <= 0 {
		return errors.New("sessions.task_queue_depth must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
