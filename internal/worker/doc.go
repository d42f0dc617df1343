// Package worker runs the heterogeneous pool of preview-generation slots.
//
// The pool owns two processor kinds, hardware-assisted and software-only,
// each fanned out over its configured thread count. All slots consume the
// job manager's shared assignment feed and report item outcomes back to it;
// the manager stays the only writer of job state.
package worker
