package config

import (
	"errors"
	"fmt"
	"strings"
)

const maxThreadsPerKind = 32

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validatePreviews(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlex() error {
	if c.Plex.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/previewd/config.toml"
		}
		return fmt.Errorf("plex.url is required. Set PLEX_URL env var or edit %s (create with 'previewd config init')", defaultPath)
	}
	if !strings.HasPrefix(c.Plex.URL, "http://") && !strings.HasPrefix(c.Plex.URL, "https://") {
		return fmt.Errorf("plex.url must start with http:// or https://, got %q", c.Plex.URL)
	}
	if c.Plex.Token == "" {
		return errors.New("plex.token is required. Set PLEX_TOKEN env var or add it to the config file")
	}
	if (c.Plex.VideosPathMapping == "") != (c.Plex.LocalVideosPathMapping == "") {
		return errors.New("plex.videos_path_mapping and plex.local_videos_path_mapping must be set together")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.AcceleratedThreads < 0 || c.Workers.AcceleratedThreads > maxThreadsPerKind {
		return fmt.Errorf("workers.accelerated_threads must be between 0 and %d", maxThreadsPerKind)
	}
	if c.Workers.StandardThreads < 0 || c.Workers.StandardThreads > maxThreadsPerKind {
		return fmt.Errorf("workers.standard_threads must be between 0 and %d", maxThreadsPerKind)
	}
	if c.TotalWorkers() == 0 {
		return errors.New("at least one worker thread must be configured")
	}
	if c.Workers.AcceleratedThreads > 0 && c.Workers.HWAccel == "" {
		return errors.New("workers.hwaccel must be set when accelerated_threads > 0")
	}
	switch c.Workers.HWAccel {
	case "", "vaapi", "cuda", "videotoolbox":
	default:
		return fmt.Errorf("workers.hwaccel: unsupported value %q", c.Workers.HWAccel)
	}
	return nil
}

func (c *Config) validatePreviews() error {
	if c.Previews.IntervalSeconds < 1 || c.Previews.IntervalSeconds > 60 {
		return errors.New("previews.interval_seconds must be between 1 and 60")
	}
	if c.Paths.PlexConfigDir == "" {
		return errors.New("paths.plex_config_dir must point at the Plex Media Server data directory")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
