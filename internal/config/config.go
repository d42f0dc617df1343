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
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	TmpDir        string `toml:"tmp_dir"`
	PlexConfigDir string `toml:"plex_config_dir"`
	SocketPath    string `toml:"socket_path"`
}

// Plex contains configuration for the Plex Media Server connection.
type Plex struct {
	URL                    string `toml:"url"`
	Token                  string `toml:"token"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	VideosPathMapping      string `toml:"videos_path_mapping"`
	LocalVideosPathMapping string `toml:"local_videos_path_mapping"`
}

// Workers contains worker pool sizing and hardware acceleration settings.
type Workers struct {
	AcceleratedThreads int    `toml:"accelerated_threads"`
	StandardThreads    int    `toml:"standard_threads"`
	HWAccel            string `toml:"hwaccel"`
	HWAccelDevice      string `toml:"hwaccel_device"`
}

// Previews contains preview artifact generation settings.
type Previews struct {
	IntervalSeconds  int  `toml:"interval_seconds"`
	ThumbnailWidth   int  `toml:"thumbnail_width"`
	ThumbnailQuality int  `toml:"thumbnail_quality"`
	Regenerate       bool `toml:"regenerate"`
}

// Webhooks contains the import-notification debounce settings.
type Webhooks struct {
	Enabled         bool              `toml:"enabled"`
	DelaySeconds    int               `toml:"delay_seconds"`
	LibraryMappings map[string]string `toml:"library_mappings"`
}

// Jobs contains job registry behavior settings.
type Jobs struct {
	RetentionLimit int `toml:"retention_limit"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root previewd configuration.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Plex     Plex     `toml:"plex"`
	Workers  Workers  `toml:"workers"`
	Previews Previews `toml:"previews"`
	Webhooks Webhooks `toml:"webhooks"`
	Jobs     Jobs     `toml:"jobs"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the canonical configuration file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "previewd", "config.toml"), nil
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. The returned config is normalized and validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved := strings.TrimSpace(path)
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		resolved = defaultPath
	}

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only; callers that require Plex credentials fail in Validate.
	default:
		return nil, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnsureDirectories creates the directories previewd writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.TmpDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// TotalWorkers returns the combined worker slot count.
func (c *Config) TotalWorkers() int {
	return c.Workers.AcceleratedThreads + c.Workers.StandardThreads
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}
