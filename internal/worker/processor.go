package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"previewd/internal/bif"
	"previewd/internal/config"
	"previewd/internal/frames"
	"previewd/internal/jobs"
	"previewd/internal/logging"
	"previewd/internal/services"
)

// Processor turns one media item into its preview artifact: sample frames,
// encode the index, and move it into place atomically. One processor is
// shared by all slots of the same kind.
type Processor struct {
	extractor frames.Extractor
	interval  time.Duration
	logger    *slog.Logger
}

// NewProcessor builds a processor around the given frame extractor.
func NewProcessor(cfg *config.Config, extractor frames.Extractor, logger *slog.Logger) *Processor {
	return &Processor{
		extractor: extractor,
		interval:  time.Duration(cfg.Previews.IntervalSeconds) * time.Second,
		logger:    logging.NewComponentLogger(logger, "worker"),
	}
}

// Process generates the artifact for one item and reports its outcome.
// Transient extraction failures earn exactly one retry; everything else fails
// the item without touching the rest of the job.
func (p *Processor) Process(ctx context.Context, item *jobs.Item, regenerate bool) (jobs.Outcome, error) {
	// The artifact may have appeared since the job was created, typically
	// because Plex generated it on its own schedule.
	if !regenerate && artifactExists(item.Target) {
		return jobs.OutcomeSkipped, nil
	}

	sampled, err := p.extract(ctx, item)
	if err != nil {
		return jobs.OutcomeFailed, err
	}

	if err := p.writeArtifact(sampled, item.Target); err != nil {
		return jobs.OutcomeFailed, err
	}
	return jobs.OutcomeCompleted, nil
}

func (p *Processor) extract(ctx context.Context, item *jobs.Item) ([]bif.Frame, error) {
	sampled, err := p.extractor.Extract(ctx, item.Source, p.interval)
	if err == nil || !services.IsTransient(err) {
		return sampled, err
	}

	p.logger.Warn("retrying transient extraction failure",
		logging.String(logging.FieldItem, item.Title), logging.Error(err))
	select {
	case <-ctx.Done():
		return nil, services.Wrap(services.ErrTransient, "worker", "extract", "retry interrupted", ctx.Err())
	case <-time.After(retryDelay):
	}
	return p.extractor.Extract(ctx, item.Source, p.interval)
}

// retryDelay spaces the single transient retry out from the failure.
var retryDelay = 2 * time.Second

// writeArtifact encodes the index next to its final location and renames it
// into place, so readers never observe a partial file.
func (p *Processor) writeArtifact(sampled []bif.Frame, target string) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrItemProcessing, "worker", "create bundle dir", "", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return services.Wrap(services.ErrItemProcessing, "worker", "create tmp artifact", "", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := bif.Encode(tmp, sampled, p.interval); err != nil {
		tmp.Close()
		return services.Wrap(services.ErrItemProcessing, "worker", "encode artifact", "", err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrItemProcessing, "worker", "flush artifact", "", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return services.Wrap(services.ErrItemProcessing, "worker", "publish artifact",
			fmt.Sprintf("rename to %s", target), err)
	}
	return nil
}

func artifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
