package daemon

import (
	"context"
	"log/slog"
	"sync"

	"previewd/internal/jobs"
	"previewd/internal/logging"
	"previewd/internal/store"
)

// recorder subscribes to manager events and persists finished jobs. Events
// arrive on the manager's goroutines, so they are queued and handled on a
// dedicated one; when the queue is full events are dropped rather than
// blocking the manager.
type recorder struct {
	store  *store.Store
	logger *slog.Logger

	manager *jobs.Manager
	events  chan jobs.Event
	done    chan struct{}
	once    sync.Once
}

func newRecorder(st *store.Store, logger *slog.Logger) *recorder {
	return &recorder{
		store:  st,
		logger: logging.NewComponentLogger(logger, "recorder"),
		events: make(chan jobs.Event, 256),
		done:   make(chan struct{}),
	}
}

// start begins consuming events. The manager reference is needed to resolve
// full snapshots, so it is attached after construction.
func (r *recorder) start(manager *jobs.Manager) {
	r.manager = manager
	go r.run()
}

func (r *recorder) stop() {
	r.once.Do(func() { close(r.done) })
}

// Publish implements jobs.Publisher.
func (r *recorder) Publish(event jobs.Event) {
	select {
	case r.events <- event:
	default:
		r.logger.Warn("event queue full, dropping event",
			logging.String(logging.FieldEventType, string(event.Type)))
	}
}

func (r *recorder) run() {
	for {
		select {
		case <-r.done:
			return
		case event := <-r.events:
			r.handle(event)
		}
	}
}

func (r *recorder) handle(event jobs.Event) {
	if event.Type != jobs.EventJobComplete && event.Type != jobs.EventJobError {
		return
	}
	snap, err := r.manager.Get(event.JobID)
	if err != nil {
		// Evicted between finishing and recording; fall back to event data.
		snap = &jobs.Snapshot{
			ID:             event.JobID,
			Status:         event.Status,
			CompletedItems: event.Completed,
			FailedItems:    event.Failed,
			SkippedItems:   event.Skipped,
			TotalItems:     event.Total,
			Error:          event.Error,
		}
	}
	record := store.JobRecord{
		JobID:     snap.ID,
		Library:   snap.LibraryName,
		Status:    string(snap.Status),
		Completed: snap.CompletedItems,
		Failed:    snap.FailedItems,
		Skipped:   snap.SkippedItems,
		Total:     snap.TotalItems,
		Error:     snap.Error,
		CreatedAt: snap.CreatedAt,
		EndedAt:   snap.EndedAt,
	}
	if err := r.store.RecordJobResult(context.Background(), record); err != nil {
		r.logger.Warn("failed to persist job result",
			logging.String(logging.FieldJobID, snap.ID), logging.Error(err))
	}
}
