package ipc

import (
	"previewd/internal/daemon"
	"previewd/internal/jobs"
	"previewd/internal/store"
)

// StatusRequest asks for daemon-level state.
type StatusRequest struct{}

// StatusResponse carries the daemon status snapshot.
type StatusResponse struct {
	Status daemon.Status `json:"status"`
}

// JobListRequest asks for every registered job.
type JobListRequest struct{}

// JobListResponse carries job snapshots, newest first.
type JobListResponse struct {
	Jobs []*jobs.Snapshot `json:"jobs"`
}

// JobDescribeRequest asks for one job by id.
type JobDescribeRequest struct {
	ID string `json:"id"`
}

// JobDescribeResponse carries a single job snapshot.
type JobDescribeResponse struct {
	Job *jobs.Snapshot `json:"job"`
}

// CreateJobRequest starts a new preview job.
type CreateJobRequest struct {
	Libraries    []string `json:"libraries"`
	AllLibraries bool     `json:"all_libraries"`
	Sort         string   `json:"sort"`
	Regenerate   bool     `json:"regenerate"`
}

// CreateJobResponse carries the created job's snapshot.
type CreateJobResponse struct {
	Job *jobs.Snapshot `json:"job"`
}

// CancelJobRequest cancels a job by id.
type CancelJobRequest struct {
	ID string `json:"id"`
}

// CancelJobResponse acknowledges a cancellation request.
type CancelJobResponse struct {
	Cancelled bool `json:"cancelled"`
}

// DeleteJobRequest removes a terminal job by id.
type DeleteJobRequest struct {
	ID string `json:"id"`
}

// DeleteJobResponse acknowledges a deletion.
type DeleteJobResponse struct {
	Deleted bool `json:"deleted"`
}

// NotifyRequest delivers one import notification. EventType defaults to the
// import event when empty.
type NotifyRequest struct {
	Source    string `json:"source"`
	Library   string `json:"library"`
	EventType string `json:"event_type"`
	Title     string `json:"title"`
}

// NotifyResponse acknowledges a notification.
type NotifyResponse struct {
	Accepted bool `json:"accepted"`
}

// ScheduleListRequest asks for every persisted schedule.
type ScheduleListRequest struct{}

// ScheduleListResponse carries schedule definitions.
type ScheduleListResponse struct {
	Schedules []store.Schedule `json:"schedules"`
}

// ScheduleAddRequest persists a new schedule.
type ScheduleAddRequest struct {
	Schedule store.Schedule `json:"schedule"`
}

// ScheduleAddResponse acknowledges the addition.
type ScheduleAddResponse struct {
	Added bool `json:"added"`
}

// ScheduleRemoveRequest deletes a schedule by name.
type ScheduleRemoveRequest struct {
	Name string `json:"name"`
}

// ScheduleRemoveResponse acknowledges the removal.
type ScheduleRemoveResponse struct {
	Removed bool `json:"removed"`
}

// ScheduleEnableRequest toggles a schedule by name.
type ScheduleEnableRequest struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// ScheduleEnableResponse acknowledges the toggle.
type ScheduleEnableResponse struct {
	Enabled bool `json:"enabled"`
}

// ScheduleRunRequest fires a schedule immediately.
type ScheduleRunRequest struct {
	Name string `json:"name"`
}

// ScheduleRunResponse acknowledges the manual run.
type ScheduleRunResponse struct {
	Fired bool `json:"fired"`
}

// HistoryRequest asks for recent finished jobs and notifications.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse carries persisted history.
type HistoryResponse struct {
	Jobs          []store.JobRecord          `json:"jobs"`
	Notifications []store.NotificationRecord `json:"notifications"`
}
