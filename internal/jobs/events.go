package jobs

// EventType labels the progress notifications the manager emits.
type EventType string

const (
	EventJobCreated   EventType = "job_created"
	EventJobProgress  EventType = "job_progress"
	EventJobComplete  EventType = "job_complete"
	EventJobError     EventType = "job_error"
	EventWorkerUpdate EventType = "worker_update"
)

// Event is a single progress notification. Counter fields are populated for
// job-scoped events; Worker is populated for worker_update.
type Event struct {
	Type       EventType       `json:"type"`
	JobID      string          `json:"job_id,omitempty"`
	Status     Status          `json:"status,omitempty"`
	Completed  int             `json:"completed"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Total      int             `json:"total"`
	Percent    float64         `json:"percent"`
	ETASeconds int64           `json:"eta_seconds"`
	ETAKnown   bool            `json:"eta_known"`
	Error      string          `json:"error,omitempty"`
	Worker     *WorkerSnapshot `json:"worker,omitempty"`
}

// Publisher receives manager events. Implementations must not block; the
// manager calls Publish from its own goroutines.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(Event) {}
