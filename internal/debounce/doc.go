// Package debounce coalesces media-server import notifications. A burst of
// webhook events for one library collapses into a single job trigger once
// the stream goes quiet for the configured delay.
package debounce
