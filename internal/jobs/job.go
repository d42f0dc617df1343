package jobs

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// SortOrder controls item ordering within a job.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ParseSortOrder converts a string into a known SortOrder.
func ParseSortOrder(value string) (SortOrder, bool) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(value))) {
	case SortNewest, "":
		return SortNewest, true
	case SortOldest:
		return SortOldest, true
	default:
		return "", false
	}
}

// Selection names the libraries a job covers.
type Selection struct {
	LibraryIDs   []string
	AllLibraries bool
}

// Outcome is the terminal classification of one item.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Item is one media file mapped to one target artifact. Immutable once
// enqueued.
type Item struct {
	Source  string
	Target  string
	Title   string
	Size    int64
	AddedAt time.Time
}

// Job is the unit of orchestrated work for one library selection. All mutable
// fields are guarded by the owning Manager's mutex; the exported accessors
// below touch only immutable or atomic state and are safe from worker
// goroutines.
type Job struct {
	id          string
	libraryID   string
	libraryName string
	regenerate  bool

	status    Status
	items     []*Item
	queue     []*Item
	total     int
	completed int
	failed    int
	skipped   int
	inFlight  int
	errMsg    string

	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	started    bool
	feederDone bool
	stopped    atomic.Bool
	stopOnce   sync.Once
	stopCh     chan struct{}

	eta *Estimator
}

// ID returns the job's opaque identifier.
func (j *Job) ID() string { return j.id }

// Regenerate reports whether existing artifacts should be rebuilt.
func (j *Job) Regenerate() bool { return j.regenerate }

// Stopped reports whether the job has been cancelled or failed; workers
// observe this between items and stop pulling.
func (j *Job) Stopped() bool { return j.stopped.Load() }

func (j *Job) stop() {
	j.stopped.Store(true)
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *Job) accounted() int {
	return j.completed + j.failed + j.skipped
}

// Assignment pairs a job with one of its queued items; the worker pool
// consumes these from the manager's shared feed.
type Assignment struct {
	Job  *Job
	Item *Item
}

// WorkerSnapshot is the externally visible state of one worker slot.
type WorkerSnapshot struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	CurrentItem string `json:"current_item,omitempty"`
	JobID       string `json:"job_id,omitempty"`
}

// Snapshot is the externally visible state of a job, served as ground truth
// to the transport layer.
type Snapshot struct {
	ID              string           `json:"id"`
	Status          Status           `json:"status"`
	LibraryID       string           `json:"library_id"`
	LibraryName     string           `json:"library_name"`
	TotalItems      int              `json:"total_items"`
	CompletedItems  int              `json:"completed_items"`
	FailedItems     int              `json:"failed_items"`
	SkippedItems    int              `json:"skipped_items"`
	ProgressPercent float64          `json:"progress_percent"`
	ETASeconds      int64            `json:"eta_seconds"`
	ETAKnown        bool             `json:"eta_known"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       time.Time        `json:"started_at,omitzero"`
	EndedAt         time.Time        `json:"ended_at,omitzero"`
	Workers         []WorkerSnapshot `json:"workers,omitempty"`
}
