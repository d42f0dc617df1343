// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"previewd/internal/config"
	"previewd/internal/store"
)

// NewConfig returns a validated-shape config rooted in per-test temporary
// directories.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.TmpDir = filepath.Join(base, "tmp")
	cfg.Paths.PlexConfigDir = filepath.Join(base, "plex")
	cfg.Paths.SocketPath = filepath.Join(base, "previewd.sock")
	cfg.Plex.URL = "http://127.0.0.1:32400"
	cfg.Plex.Token = "test-token"
	return &cfg
}

// MustOpenStore opens a store over the config's data directory and closes it
// when the test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
