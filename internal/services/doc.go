// Package services defines the shared error taxonomy for previewd components
// and hosts clients for external collaborators in subpackages.
//
// Errors are classified by wrapping sentinel markers: validation and conflict
// errors propagate to callers, transient errors earn one retry, item
// processing errors become failed-count increments, and job-fatal errors fail
// the owning job. Use Wrap to tag an error and the Is* helpers to classify.
package services
