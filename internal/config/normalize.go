package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlex()
	c.normalizePreviews()
	c.normalizeWebhooks()
	c.normalizeJobs()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.TmpDir, err = expandPath(c.Paths.TmpDir); err != nil {
		return fmt.Errorf("paths.tmp_dir: %w", err)
	}
	if c.Paths.PlexConfigDir, err = expandPath(c.Paths.PlexConfigDir); err != nil {
		return fmt.Errorf("paths.plex_config_dir: %w", err)
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	if c.Paths.SocketPath == "" && c.Paths.DataDir != "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.DataDir, defaultSocketName)
	}
	return nil
}

func (c *Config) normalizePlex() {
	if c.Plex.Token == "" {
		if value, ok := os.LookupEnv("PLEX_TOKEN"); ok {
			c.Plex.Token = strings.TrimSpace(value)
		}
	}
	if c.Plex.URL == "" {
		if value, ok := os.LookupEnv("PLEX_URL"); ok {
			c.Plex.URL = strings.TrimSpace(value)
		}
	}
	c.Plex.URL = strings.TrimRight(strings.TrimSpace(c.Plex.URL), "/")
	c.Plex.Token = strings.TrimSpace(c.Plex.Token)
	if c.Plex.TimeoutSeconds <= 0 {
		c.Plex.TimeoutSeconds = defaultPlexTimeout
	}
}

func (c *Config) normalizePreviews() {
	if c.Previews.IntervalSeconds <= 0 {
		c.Previews.IntervalSeconds = defaultIntervalSeconds
	}
	if c.Previews.ThumbnailWidth <= 0 {
		c.Previews.ThumbnailWidth = defaultThumbnailWidth
	}
	if c.Previews.ThumbnailQuality <= 0 {
		c.Previews.ThumbnailQuality = defaultThumbnailQuality
	}
}

func (c *Config) normalizeWebhooks() {
	if c.Webhooks.DelaySeconds <= 0 {
		c.Webhooks.DelaySeconds = defaultWebhookDelay
	}
	if c.Webhooks.LibraryMappings == nil {
		c.Webhooks.LibraryMappings = map[string]string{}
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.RetentionLimit <= 0 {
		c.Jobs.RetentionLimit = defaultRetentionLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
