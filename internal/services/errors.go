package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for error classification across the engine.
var (
	// ErrValidation covers bad job or schedule input: unknown library,
	// empty selection, malformed cron expression. Surfaced to the caller.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks operations invalid for the current state, such as
	// deleting a job that is still running.
	ErrConflict = errors.New("conflict error")

	// ErrTransient marks timeouts and transient I/O failures talking to the
	// frame source. Retried once before demotion to an item failure.
	ErrTransient = errors.New("transient failure")

	// ErrItemProcessing marks single-item failures: unreadable file,
	// extraction failure, unsupported codec. Recovered locally as a failed
	// count increment.
	ErrItemProcessing = errors.New("item processing error")

	// ErrJobFatal marks conditions making a whole job unrunnable, such as the
	// catalog becoming unreachable mid-run.
	ErrJobFatal = errors.New("job fatal error")

	// ErrNotFound marks lookups of unknown jobs or schedules.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrItemProcessing
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err carries the transient marker.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsValidation reports whether err carries the validation marker.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err carries the conflict marker.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsJobFatal reports whether err carries the job-fatal marker.
func IsJobFatal(err error) bool { return errors.Is(err, ErrJobFatal) }

// IsNotFound reports whether err carries the not-found marker.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
