package config

const (
	defaultDataDir          = "~/.local/share/previewd"
	defaultLogDir           = "~/.local/share/previewd/logs"
	defaultTmpDir           = "~/.local/share/previewd/tmp"
	defaultSocketName       = "previewd.sock"
	defaultPlexTimeout      = 60
	defaultIntervalSeconds  = 10
	defaultThumbnailWidth   = 320
	defaultThumbnailQuality = 4
	defaultStandardThreads  = 4
	defaultWebhookDelay     = 60
	defaultRetentionLimit   = 50
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			TmpDir:  defaultTmpDir,
		},
		Plex: Plex{
			TimeoutSeconds: defaultPlexTimeout,
		},
		Workers: Workers{
			StandardThreads: defaultStandardThreads,
		},
		Previews: Previews{
			IntervalSeconds:  defaultIntervalSeconds,
			ThumbnailWidth:   defaultThumbnailWidth,
			ThumbnailQuality: defaultThumbnailQuality,
		},
		Webhooks: Webhooks{
			Enabled:      true,
			DelaySeconds: defaultWebhookDelay,
		},
		Jobs: Jobs{
			RetentionLimit: defaultRetentionLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
