// Package logging builds the slog loggers used throughout previewd.
//
// It offers console and JSON handlers, multi-destination output (stdout plus
// the daemon log file), attribute helper aliases so call sites avoid
// importing slog directly, and standardized field keys for job, worker, and
// library identifiers. The console handler colorizes output only when writing
// to a terminal.
package logging
