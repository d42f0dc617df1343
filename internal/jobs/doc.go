// Package jobs implements the job orchestration core: the registry of
// preview-generation jobs, their lifecycle state machine, progress
// accounting, and remaining-time estimation.
//
// The Manager is the single owner of all job state. It resolves a library
// selection against the media catalog into an ordered item list, streams
// assignments to the worker pool over a shared feed channel, and folds item
// outcomes back into counters. Observers receive change notifications
// through the Publisher interface.
package jobs
