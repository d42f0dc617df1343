// Package frames implements the frame-source collaborator: sampling still
// images from a media file at a fixed interval by shelling out to ffmpeg.
//
// Two extractor variants exist, hardware-assisted and software-only; both
// satisfy the Extractor interface the worker pool consumes. Invocation
// failures are classified into transient errors (retried once upstream) and
// permanent per-item failures.
package frames
