// Package ipc implements daemon control over JSON-RPC on a Unix domain
// socket: job creation and inspection, webhook notification delivery, and
// schedule management.
package ipc
