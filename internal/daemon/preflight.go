package daemon

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"previewd/internal/logging"
)

// minFreeBytes is the free-space floor below which startup warns; frame
// extraction writes heavily to the tmp directory.
const minFreeBytes = 1 << 30

// preflight verifies the environment before any component starts: ffmpeg on
// PATH, writable working directories, and enough scratch space. Missing
// hardware acceleration only degrades to software extraction.
func (d *Daemon) preflight() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}

	for _, dir := range []string{d.cfg.Paths.DataDir, d.cfg.Paths.LogDir, d.cfg.Paths.TmpDir} {
		if err := unix.Access(dir, unix.W_OK); err != nil {
			return fmt.Errorf("directory %s is not writable: %w", dir, err)
		}
	}
	if err := unix.Access(d.cfg.Paths.PlexConfigDir, unix.W_OK); err != nil {
		return fmt.Errorf("plex config dir %s is not writable: %w", d.cfg.Paths.PlexConfigDir, err)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(d.cfg.Paths.TmpDir, &stat); err == nil {
		free := stat.Bavail * uint64(stat.Bsize)
		if free < minFreeBytes {
			d.logger.Warn("low free space in tmp dir",
				logging.String("dir", d.cfg.Paths.TmpDir),
				logging.Int64("free_bytes", int64(free)))
		}
	}

	if d.cfg.Workers.AcceleratedThreads > 0 && d.cfg.Workers.HWAccelDevice != "" {
		if _, err := os.Stat(d.cfg.Workers.HWAccelDevice); err != nil {
			d.logger.Warn("hwaccel device unavailable, accelerated workers may fail",
				logging.String("device", d.cfg.Workers.HWAccelDevice),
				logging.Error(err))
		}
	}
	return nil
}
