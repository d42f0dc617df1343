// Package daemon assembles and runs the preview orchestration service: it
// owns component lifecycles, enforces single-instance operation through a
// lock file, and performs environment preflight checks at startup.
package daemon
