package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"previewd/internal/config"
	"previewd/internal/logging"
	"previewd/internal/services"
	"previewd/internal/services/plex"
)

// Manager owns the job registry and is the single source of truth for job
// state and progress counters. Workers pull assignments from its shared feed
// and report item outcomes back; every mutation of a job happens under the
// manager's mutex.
type Manager struct {
	cfg       *config.Config
	catalog   plex.Catalog
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	byID    map[string]*Job
	order   []*Job
	workers map[string]*WorkerSnapshot

	feedCh     chan Assignment
	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewManager builds a manager over the given media catalog. The publisher may
// be nil when nobody listens for progress events.
func NewManager(cfg *config.Config, catalog plex.Catalog, publisher Publisher, logger *slog.Logger) *Manager {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Manager{
		cfg:        cfg,
		catalog:    catalog,
		publisher:  publisher,
		logger:     logging.NewComponentLogger(logger, "jobs"),
		byID:       make(map[string]*Job),
		workers:    make(map[string]*WorkerSnapshot),
		feedCh:     make(chan Assignment),
		shutdownCh: make(chan struct{}),
	}
}

// Feed exposes the shared assignment stream both worker kinds consume.
func (m *Manager) Feed() <-chan Assignment { return m.feedCh }

// Close stops every job feeder. Call once, during daemon shutdown, after the
// worker pool has drained.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.shutdownCh) })
}

// CreateJob resolves the library selection against the catalog, builds the
// ordered item list, pre-marks items whose artifact already exists, and
// registers the job. The job starts running as soon as at least one worker is
// attached; with no workers it stays pending.
func (m *Manager) CreateJob(ctx context.Context, sel Selection, order SortOrder, regenerate bool) (*Snapshot, error) {
	libraries, err := m.resolveSelection(ctx, sel)
	if err != nil {
		return nil, err
	}

	items, skipped, err := m.collectItems(ctx, libraries, regenerate)
	if err != nil {
		return nil, err
	}
	if len(items)+len(skipped) == 0 {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create",
			"selected libraries contain no media items", nil)
	}

	sortItems(items, order)

	ids := make([]string, len(libraries))
	names := make([]string, len(libraries))
	for i, lib := range libraries {
		ids[i] = lib.ID
		names[i] = lib.Name
	}

	job := &Job{
		id:          uuid.NewString(),
		libraryID:   strings.Join(ids, ","),
		libraryName: strings.Join(names, ", "),
		regenerate:  regenerate,
		status:      StatusPending,
		queue:       items,
		total:       len(items) + len(skipped),
		skipped:     len(skipped),
		createdAt:   time.Now(),
		stopCh:      make(chan struct{}),
	}
	job.items = make([]*Item, 0, job.total)
	job.items = append(job.items, skipped...)
	job.items = append(job.items, items...)

	m.mu.Lock()
	m.byID[job.id] = job
	m.order = append(m.order, job)
	m.evictLocked()

	m.publishLocked(Event{Type: EventJobCreated, JobID: job.id, Status: job.status,
		Skipped: job.skipped, Total: job.total})
	m.logger.Info("job created",
		logging.String(logging.FieldJobID, job.id),
		logging.String(logging.FieldLibrary, job.libraryName),
		logging.Int("total", job.total),
		logging.Int("skipped", job.skipped))

	if len(job.queue) == 0 {
		// Every item already has an up-to-date artifact.
		m.finalizeLocked(job, StatusCompleted, "")
	} else if len(m.workers) > 0 {
		m.startLocked(job)
	}
	snap := m.snapshotLocked(job)
	m.mu.Unlock()
	return snap, nil
}

// Get returns the snapshot for one job.
func (m *Manager) Get(id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("no job %s", id), nil)
	}
	return m.snapshotLocked(job), nil
}

// List returns snapshots for every registered job, newest first.
func (m *Manager) List() []*Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := make([]*Snapshot, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		snaps = append(snaps, m.snapshotLocked(m.order[i]))
	}
	return snaps
}

// Cancel requests cancellation of a running or pending job. In-flight items
// are allowed to finish and are counted; queued items are dropped. Cancelling
// a terminal job is a conflict.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[id]
	if !ok {
		return services.Wrap(services.ErrNotFound, "jobs", "cancel", fmt.Sprintf("no job %s", id), nil)
	}
	if job.status.Terminal() {
		return services.Wrap(services.ErrConflict, "jobs", "cancel",
			fmt.Sprintf("job is already %s", job.status), nil)
	}

	job.stop()
	m.logger.Info("job cancellation requested", logging.String(logging.FieldJobID, id))
	m.maybeFinalizeLocked(job)
	return nil
}

// Delete removes a terminal job from the registry. Running and pending jobs
// must be cancelled first.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[id]
	if !ok {
		return services.Wrap(services.ErrNotFound, "jobs", "delete", fmt.Sprintf("no job %s", id), nil)
	}
	if !job.status.Terminal() {
		return services.Wrap(services.ErrConflict, "jobs", "delete",
			fmt.Sprintf("job is %s; cancel it first", job.status), nil)
	}
	m.removeLocked(job)
	return nil
}

// FailJob marks a job failed after an unrecoverable error. Queued items are
// dropped; in-flight items finish and are counted.
func (m *Manager) FailJob(job *Job, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.status.Terminal() {
		return
	}
	job.stop()
	job.errMsg = cause.Error()
	m.logger.Error("job failed",
		logging.String(logging.FieldJobID, job.id), logging.Error(cause))
	m.maybeFinalizeLocked(job)
}

// ItemStarted moves an assignment into flight and reflects it on the worker's
// state. It reports false when the job stopped after the assignment was
// handed out; the worker must then drop the item without reporting an
// outcome.
func (m *Manager) ItemStarted(job *Job, item *Item, workerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.Stopped() || job.status.Terminal() {
		return false
	}
	job.inFlight++
	m.setWorkerLocked(workerID, "working", item.Title, job.id)
	return true
}

// ReportOutcome records the terminal outcome of one in-flight item, updates
// progress counters and the ETA sample set, and finalizes the job when every
// item is accounted for.
func (m *Manager) ReportOutcome(job *Job, item *Item, outcome Outcome, elapsed time.Duration, workerID string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.status.Terminal() {
		return
	}
	job.inFlight--
	switch outcome {
	case OutcomeCompleted:
		job.completed++
	case OutcomeFailed:
		job.failed++
		if cause != nil {
			m.logger.Warn("item failed",
				logging.String(logging.FieldJobID, job.id),
				logging.String(logging.FieldItem, item.Title),
				logging.Error(cause))
		}
	case OutcomeSkipped:
		job.skipped++
	}
	if outcome != OutcomeSkipped && job.eta != nil {
		job.eta.AddSample(elapsed)
	}
	m.setWorkerLocked(workerID, "idle", "", "")

	eta, etaOK := m.etaLocked(job)
	m.publishLocked(Event{
		Type:       EventJobProgress,
		JobID:      job.id,
		Status:     job.status,
		Completed:  job.completed,
		Failed:     job.failed,
		Skipped:    job.skipped,
		Total:      job.total,
		Percent:    percent(job),
		ETASeconds: int64(eta.Seconds()),
		ETAKnown:   etaOK,
	})
	m.maybeFinalizeLocked(job)
}

// RegisterWorker attaches a worker slot; pending jobs begin running once the
// first slot attaches.
func (m *Manager) RegisterWorker(id, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[id] = &WorkerSnapshot{ID: id, Kind: kind, Status: "idle"}
	for _, job := range m.order {
		if job.status == StatusPending && len(job.queue) > 0 && !job.Stopped() {
			m.startLocked(job)
		}
	}
}

// UnregisterWorker detaches a worker slot during pool shutdown.
func (m *Manager) UnregisterWorker(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workers, id)
}

// Workers returns the current state of every attached worker slot, ordered
// by id.
func (m *Manager) Workers() []WorkerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := make([]WorkerSnapshot, 0, len(m.workers))
	for _, w := range m.workers {
		snaps = append(snaps, *w)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}

func (m *Manager) resolveSelection(ctx context.Context, sel Selection) ([]plex.Library, error) {
	all, err := m.catalog.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	if sel.AllLibraries {
		if len(all) == 0 {
			return nil, services.Wrap(services.ErrValidation, "jobs", "create",
				"server reports no libraries", nil)
		}
		return all, nil
	}
	if len(sel.LibraryIDs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create",
			"no libraries selected", nil)
	}
	byID := make(map[string]plex.Library, len(all))
	for _, lib := range all {
		byID[lib.ID] = lib
	}
	resolved := make([]plex.Library, 0, len(sel.LibraryIDs))
	for _, id := range sel.LibraryIDs {
		lib, ok := byID[id]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "jobs", "create",
				fmt.Sprintf("unknown library %q", id), nil)
		}
		resolved = append(resolved, lib)
	}
	return resolved, nil
}

// collectItems maps catalog entries to job items and splits off the ones
// whose artifact is already present (unless regeneration was requested).
func (m *Manager) collectItems(ctx context.Context, libraries []plex.Library, regenerate bool) (queued, skipped []*Item, err error) {
	for _, lib := range libraries {
		media, err := m.catalog.Items(ctx, lib.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, entry := range media {
			target, err := plex.BundleIndexPath(m.cfg.Paths.PlexConfigDir, entry.BundleHash)
			if err != nil {
				m.logger.Warn("skipping item with unusable bundle hash",
					logging.String(logging.FieldLibrary, lib.Name),
					logging.String(logging.FieldItem, entry.Title),
					logging.Error(err))
				continue
			}
			item := &Item{
				Source:  entry.File,
				Target:  target,
				Title:   entry.Title,
				Size:    entry.Size,
				AddedAt: entry.AddedAt,
			}
			if !regenerate && artifactExists(target) {
				skipped = append(skipped, item)
				continue
			}
			queued = append(queued, item)
		}
	}
	return queued, skipped, nil
}

func artifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func sortItems(items []*Item, order SortOrder) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.AddedAt.Equal(b.AddedAt) {
			if order == SortOldest {
				return a.AddedAt.Before(b.AddedAt)
			}
			return a.AddedAt.After(b.AddedAt)
		}
		// Equal add times fall back to the size hint, largest first.
		return a.Size > b.Size
	})
}

// startLocked transitions a pending job to running and launches its feeder.
func (m *Manager) startLocked(job *Job) {
	job.status = StatusRunning
	job.startedAt = time.Now()
	job.started = true
	job.eta = NewEstimator(job.startedAt)
	go m.feed(job)
}

// feed streams a job's queued items into the shared feed in order. One feeder
// runs per job; interleaving across concurrent jobs is whatever the channel
// gives us.
func (m *Manager) feed(job *Job) {
	defer func() {
		m.mu.Lock()
		job.feederDone = true
		m.maybeFinalizeLocked(job)
		m.mu.Unlock()
	}()
	for _, item := range job.queue {
		if job.Stopped() {
			return
		}
		select {
		case m.feedCh <- Assignment{Job: job, Item: item}:
		case <-job.stopCh:
			return
		case <-m.shutdownCh:
			return
		}
	}
}

// maybeFinalizeLocked settles a job into its terminal status once nothing
// remains outstanding.
func (m *Manager) maybeFinalizeLocked(job *Job) {
	if job.status.Terminal() {
		return
	}
	if job.accounted() == job.total {
		m.finalizeLocked(job, StatusCompleted, "")
		return
	}
	if job.Stopped() && job.inFlight == 0 && (!job.started || job.feederDone) {
		if job.errMsg != "" {
			m.finalizeLocked(job, StatusFailed, job.errMsg)
		} else {
			m.finalizeLocked(job, StatusCancelled, "")
		}
	}
}

func (m *Manager) finalizeLocked(job *Job, status Status, errMsg string) {
	job.status = status
	job.errMsg = errMsg
	job.endedAt = time.Now()
	job.stop()

	eventType := EventJobComplete
	if status == StatusFailed {
		eventType = EventJobError
	}
	m.publishLocked(Event{
		Type:      eventType,
		JobID:     job.id,
		Status:    status,
		Completed: job.completed,
		Failed:    job.failed,
		Skipped:   job.skipped,
		Total:     job.total,
		Percent:   percent(job),
		Error:     errMsg,
	})
	m.logger.Info("job finished",
		logging.String(logging.FieldJobID, job.id),
		logging.String("status", string(status)),
		logging.Int("completed", job.completed),
		logging.Int("failed", job.failed),
		logging.Int("skipped", job.skipped))
}

// evictLocked trims the oldest terminal jobs once the registry exceeds the
// configured retention. Active jobs are never evicted.
func (m *Manager) evictLocked() {
	retention := m.cfg.Jobs.RetentionLimit
	if retention <= 0 {
		return
	}
	for i := 0; i < len(m.order) && len(m.order) > retention; {
		job := m.order[i]
		if !job.status.Terminal() {
			i++
			continue
		}
		m.removeLocked(job)
	}
}

func (m *Manager) removeLocked(job *Job) {
	delete(m.byID, job.id)
	for i, j := range m.order {
		if j == job {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Manager) setWorkerLocked(workerID, status, currentItem, jobID string) {
	w, ok := m.workers[workerID]
	if !ok {
		return
	}
	w.Status = status
	w.CurrentItem = currentItem
	w.JobID = jobID
	snap := *w
	m.publishLocked(Event{Type: EventWorkerUpdate, JobID: jobID, Worker: &snap})
}

func (m *Manager) etaLocked(job *Job) (time.Duration, bool) {
	if job.eta == nil || job.status != StatusRunning {
		return 0, false
	}
	remaining := job.total - job.accounted() - job.inFlight
	return job.eta.Estimate(remaining)
}

func percent(job *Job) float64 {
	if job.total == 0 {
		return 0
	}
	return float64(job.accounted()) / float64(job.total) * 100
}

func (m *Manager) publishLocked(event Event) {
	m.publisher.Publish(event)
}

func (m *Manager) snapshotLocked(job *Job) *Snapshot {
	eta, etaOK := m.etaLocked(job)
	snap := &Snapshot{
		ID:              job.id,
		Status:          job.status,
		LibraryID:       job.libraryID,
		LibraryName:     job.libraryName,
		TotalItems:      job.total,
		CompletedItems:  job.completed,
		FailedItems:     job.failed,
		SkippedItems:    job.skipped,
		ProgressPercent: percent(job),
		ETASeconds:      int64(eta.Seconds()),
		ETAKnown:        etaOK,
		Error:           job.errMsg,
		CreatedAt:       job.createdAt,
		StartedAt:       job.startedAt,
		EndedAt:         job.endedAt,
	}
	for _, w := range m.workers {
		if w.JobID == job.id {
			snap.Workers = append(snap.Workers, *w)
		}
	}
	sort.Slice(snap.Workers, func(i, j int) bool { return snap.Workers[i].ID < snap.Workers[j].ID })
	return snap
}
