package frames

import (
	"context"
	"time"

	"previewd/internal/bif"
)

// Kind distinguishes hardware-assisted extraction from software-only.
type Kind string

const (
	KindAccelerated Kind = "accelerated"
	KindStandard    Kind = "standard"
)

// Extractor produces a finite, ordered sequence of still images from a media
// file at the given sampling interval. Implementations must honor context
// cancellation and may fail per file.
type Extractor interface {
	Extract(ctx context.Context, sourcePath string, interval time.Duration) ([]bif.Frame, error)
	Kind() Kind
}
