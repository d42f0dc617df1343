package frames

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"previewd/internal/services"
)

// transientPatterns are stderr fragments that indicate a retryable condition
// rather than a problem with the file itself.
var transientPatterns = []string{
	"resource temporarily unavailable",
	"device or resource busy",
	"connection timed out",
	"input/output error",
}

// classifyRunError maps an ffmpeg invocation failure onto the engine's error
// taxonomy: timeouts and infrastructure hiccups are transient and earn one
// retry; everything else is a permanent per-item failure.
func classifyRunError(err error, stderr []byte) error {
	detail := strings.TrimSpace(string(stderr))

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrTransient, "frames", "extract", "ffmpeg interrupted", err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A negative exit code means ffmpeg was killed by a signal, which
		// happens when the context deadline fires mid-run.
		if exitErr.ExitCode() < 0 {
			return services.Wrap(services.ErrTransient, "frames", "extract", "ffmpeg killed", err)
		}
		lowered := strings.ToLower(detail)
		for _, pattern := range transientPatterns {
			if strings.Contains(lowered, pattern) {
				return services.Wrap(services.ErrTransient, "frames", "extract", detail, err)
			}
		}
		return services.Wrap(services.ErrItemProcessing, "frames", "extract", detail, err)
	}

	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrItemProcessing, "frames", "extract", "ffmpeg binary not found", err)
	}
	return services.Wrap(services.ErrItemProcessing, "frames", "extract", detail, err)
}
