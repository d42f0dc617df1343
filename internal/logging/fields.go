package logging

// Standardized attribute keys shared across components.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldLibrary   = "library"
	FieldItem      = "item"
	FieldWorkerID  = "worker_id"
	FieldEventType = "event_type"
	FieldSource    = "source"
	FieldSchedule  = "schedule"
)
