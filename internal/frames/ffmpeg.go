package frames

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"previewd/internal/bif"
	"previewd/internal/config"
	"previewd/internal/logging"
	"previewd/internal/services"
)

// FFmpegExtractor shells out to ffmpeg to sample frames from a media file.
// One instance is shared by all worker slots of the same kind.
type FFmpegExtractor struct {
	binary     string
	tmpDir     string
	width      int
	quality    int
	kind       Kind
	hwaccel    string
	hwDevice   string
	logger     *slog.Logger
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewStandard builds a software-only extractor.
func NewStandard(cfg *config.Config, logger *slog.Logger) *FFmpegExtractor {
	return newExtractor(cfg, logger, KindStandard)
}

// NewAccelerated builds a hardware-assisted extractor using the configured
// hwaccel backend.
func NewAccelerated(cfg *config.Config, logger *slog.Logger) *FFmpegExtractor {
	return newExtractor(cfg, logger, KindAccelerated)
}

func newExtractor(cfg *config.Config, logger *slog.Logger, kind Kind) *FFmpegExtractor {
	e := &FFmpegExtractor{
		binary:  "ffmpeg",
		tmpDir:  cfg.Paths.TmpDir,
		width:   cfg.Previews.ThumbnailWidth,
		quality: cfg.Previews.ThumbnailQuality,
		kind:    kind,
		logger:  logging.NewComponentLogger(logger, "frames"),
	}
	if kind == KindAccelerated {
		e.hwaccel = cfg.Workers.HWAccel
		e.hwDevice = cfg.Workers.HWAccelDevice
	}
	e.runCommand = e.execute
	return e
}

// Kind reports whether this extractor uses hardware acceleration.
func (e *FFmpegExtractor) Kind() Kind { return e.kind }

// Extract samples one frame per interval into a temporary directory, reads
// the images back in order, and returns them with timeline timestamps.
func (e *FFmpegExtractor) Extract(ctx context.Context, sourcePath string, interval time.Duration) ([]bif.Frame, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, services.Wrap(services.ErrItemProcessing, "frames", "stat source", "", err)
	}

	workDir, err := os.MkdirTemp(e.tmpDir, "extract-*")
	if err != nil {
		return nil, services.Wrap(services.ErrItemProcessing, "frames", "create tmp dir", "", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			e.logger.Warn("failed to clean extraction tmp dir",
				logging.String("dir", workDir), logging.Error(err))
		}
	}()

	args := e.buildArgs(sourcePath, workDir, interval)
	stderr, err := e.runCommand(ctx, e.binary, args...)
	if err != nil {
		return nil, classifyRunError(err, stderr)
	}

	frames, err := readFrames(workDir, interval)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrItemProcessing, "frames", "extract",
			fmt.Sprintf("no frames produced for %s", sourcePath), nil)
	}
	return frames, nil
}

func (e *FFmpegExtractor) buildArgs(sourcePath, workDir string, interval time.Duration) []string {
	args := []string{"-loglevel", "error", "-y"}
	if e.hwaccel != "" {
		args = append(args, "-hwaccel", e.hwaccel)
		if e.hwDevice != "" {
			args = append(args, "-hwaccel_device", e.hwDevice)
		}
	}
	fps := 1.0 / interval.Seconds()
	args = append(args,
		"-i", sourcePath,
		"-vf", fmt.Sprintf("fps=%s,scale=w=%d:h=-1", strconv.FormatFloat(fps, 'f', -1, 64), e.width),
		"-qscale:v", strconv.Itoa(e.quality),
		filepath.Join(workDir, "frame-%06d.jpg"),
	)
	return args
}

func (e *FFmpegExtractor) execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

func readFrames(workDir string, interval time.Duration) ([]bif.Frame, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, services.Wrap(services.ErrItemProcessing, "frames", "read tmp dir", "", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jpg" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	frames := make([]bif.Frame, 0, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(workDir, name))
		if err != nil {
			return nil, services.Wrap(services.ErrItemProcessing, "frames", "read frame", name, err)
		}
		frames = append(frames, bif.Frame{
			Timestamp: time.Duration(i) * interval,
			Data:      data,
		})
	}
	return frames, nil
}
