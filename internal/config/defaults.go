package config

const (
	defaultSessionRoot         = "~/.local/share/darkroom/sessions"
	defaultMediaDir            = "~/.local/share/darkroom/media"
	defaultSpoolDir            = "~/.local/share/darkroom/spool"
	defaultLogDir              = "~/.local/share/darkroom/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultNotifyTimeout       = 10
	defaultNotifyProgressStep  = 25
	defaultIngestSettleSeconds = 2
	defaultEventQueueDepth     = 256
	defaultTaskQueueDepth      = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SessionRoot: defaultSessionRoot,
			MediaDir:    defaultMediaDir,
			SpoolDir:    defaultSpoolDir,
			LogDir:      defaultLogDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Progress:       true,
			ProgressStep:   defaultNotifyProgressStep,
			Errors:         true,
		},
		Ingest: Ingest{
			Enabled:       true,
			SettleSeconds: defaultIngestSettleSeconds,
		},
		Sessions: Sessions{
			EventQueueDepth: defaultEventQueueDepth,
			TaskQueueDepth:  defaultTaskQueueDepth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
