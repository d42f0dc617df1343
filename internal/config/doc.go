// Package config loads, normalizes, and validates previewd configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PLEX_URL and PLEX_TOKEN. The Config type centralizes every knob the daemon
// and CLI need: Plex connection details, worker pool sizing, preview artifact
// parameters, webhook debounce settings, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
