package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"previewd/internal/config"
	"previewd/internal/debounce"
	"previewd/internal/jobs"
	"previewd/internal/logging"
	"previewd/internal/schedule"
	"previewd/internal/services/plex"
	"previewd/internal/store"
	"previewd/internal/worker"
)

// Daemon wires the orchestration engine together: catalog client, job
// manager, worker pool, webhook debouncer, and scheduler. One instance runs
// per host, enforced with a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lock      *flock.Flock
	store     *store.Store
	catalog   plex.Catalog
	manager   *jobs.Manager
	pool      *worker.Pool
	debouncer *debounce.Debouncer
	scheduler *schedule.Scheduler
	recorder  *recorder

	mu        sync.Mutex
	running   bool
	startedAt time.Time
}

// Status is the daemon-level state served over IPC.
type Status struct {
	Running      bool                  `json:"running"`
	PID          int                   `json:"pid"`
	StartedAt    time.Time             `json:"started_at,omitzero"`
	SocketPath   string                `json:"socket_path"`
	DatabasePath string                `json:"database_path"`
	LockPath     string                `json:"lock_path"`
	Workers      []jobs.WorkerSnapshot `json:"workers"`
	Jobs         []*jobs.Snapshot      `json:"jobs"`
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithCatalog overrides the media catalog client, primarily for tests.
func WithCatalog(catalog plex.Catalog) Option {
	return func(d *Daemon) { d.catalog = catalog }
}

// New builds a daemon from configuration. Nothing runs until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Daemon {
	d := &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start acquires the instance lock, runs preflight checks, and brings every
// component up. It returns once the daemon is serving; Stop tears it down.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	d.lock = flock.New(d.lockPath())
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another previewd instance holds %s", d.lockPath())
	}

	if err := d.preflight(); err != nil {
		d.releaseLock()
		return err
	}

	st, err := store.Open(d.cfg)
	if err != nil {
		d.releaseLock()
		return err
	}
	d.store = st

	if d.catalog == nil {
		d.catalog = plex.NewClient(d.cfg, d.logger)
	}

	d.recorder = newRecorder(st, d.logger)
	d.manager = jobs.NewManager(d.cfg, d.catalog, d.recorder, d.logger)
	d.recorder.start(d.manager)

	d.pool = worker.NewPoolFromConfig(d.cfg, d.manager, d.logger)
	d.pool.Start(ctx)

	d.debouncer = debounce.New(d.cfg, d.launchForLibrary, d.logger)

	d.scheduler = schedule.New(st, d.launchForSchedule, d.logger)
	if err := d.scheduler.Start(ctx); err != nil {
		d.stopLocked()
		return err
	}

	d.running = true
	d.startedAt = time.Now()
	d.logger.Info("daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String("socket", d.cfg.Paths.SocketPath))
	return nil
}

// Stop shuts every component down and releases the instance lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.stopLocked()
	d.running = false
	d.logger.Info("daemon stopped")
}

func (d *Daemon) stopLocked() {
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	if d.debouncer != nil {
		d.debouncer.Stop()
	}
	if d.manager != nil {
		d.manager.Close()
	}
	if d.pool != nil {
		d.pool.Stop()
	}
	if d.recorder != nil {
		d.recorder.stop()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("failed to close store", logging.Error(err))
		}
	}
	d.releaseLock()
}

func (d *Daemon) releaseLock() {
	if d.lock == nil {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.lock = nil
}

// Status reports the daemon's current state.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	status := Status{
		Running:    d.running,
		PID:        os.Getpid(),
		SocketPath: d.cfg.Paths.SocketPath,
		LockPath:   d.lockPath(),
	}
	if !d.running {
		return status
	}
	status.StartedAt = d.startedAt
	status.DatabasePath = d.store.Path()
	status.Workers = d.manager.Workers()
	status.Jobs = d.manager.List()
	return status
}

// Manager exposes the job manager to the IPC layer.
func (d *Daemon) Manager() *jobs.Manager {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.manager
}

// Scheduler exposes the schedule runner to the IPC layer.
func (d *Daemon) Scheduler() *schedule.Scheduler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scheduler
}

// Store exposes persistence to the IPC layer.
func (d *Daemon) Store() *store.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store
}

// notificationRetention bounds the persisted webhook history.
const notificationRetention = 100

// Notify feeds one import notification into the debouncer and persists it.
// The event type and title come from the upstream webhook payload; only
// import events arm a debounce window, everything else is history only.
func (d *Daemon) Notify(ctx context.Context, source, library, eventType, title string) error {
	d.mu.Lock()
	debouncer := d.debouncer
	st := d.store
	d.mu.Unlock()
	if debouncer == nil {
		return fmt.Errorf("daemon is not running")
	}

	status := debouncer.Notify(source, library, eventType, title)
	record := store.NotificationRecord{
		Source:     source,
		Library:    library,
		Resolved:   debouncer.Resolve(library),
		EventType:  eventType,
		Title:      title,
		Status:     status,
		ReceivedAt: time.Now(),
	}
	if err := st.RecordNotification(ctx, record); err != nil {
		return err
	}
	return st.PruneNotifications(ctx, notificationRetention)
}

// launchForLibrary starts a job once a debounce window elapses. An empty
// library means the notifications never resolved to a mapped section, so the
// whole catalog is scanned.
func (d *Daemon) launchForLibrary(source, library string) {
	d.mu.Lock()
	manager := d.manager
	st := d.store
	d.mu.Unlock()
	if manager == nil {
		return
	}
	sel := jobs.Selection{AllLibraries: true}
	if library != "" {
		sel = jobs.Selection{LibraryIDs: []string{library}}
	}
	if _, err := manager.CreateJob(context.Background(), sel, jobs.SortNewest, false); err != nil {
		d.logger.Warn("debounced job launch failed",
			logging.String(logging.FieldLibrary, library), logging.Error(err))
		return
	}
	record := store.NotificationRecord{
		Source:     source,
		Library:    library,
		Resolved:   library,
		EventType:  debounce.EventTypeImport,
		Status:     debounce.StatusTriggered,
		ReceivedAt: time.Now(),
	}
	if err := st.RecordNotification(context.Background(), record); err != nil {
		d.logger.Warn("recording triggered notification failed", logging.Error(err))
	}
}

// launchForSchedule starts the job a fired schedule describes.
func (d *Daemon) launchForSchedule(sched store.Schedule) {
	d.mu.Lock()
	manager := d.manager
	d.mu.Unlock()
	if manager == nil {
		return
	}
	sel := jobs.Selection{LibraryIDs: sched.Libraries, AllLibraries: sched.AllLibraries}
	if _, err := manager.CreateJob(context.Background(), sel, jobs.SortNewest, sched.Regenerate); err != nil {
		d.logger.Warn("scheduled job launch failed",
			logging.String(logging.FieldSchedule, sched.Name), logging.Error(err))
	}
}

func (d *Daemon) lockPath() string {
	return filepath.Join(d.cfg.Paths.DataDir, "previewd.lock")
}
