// Package daemon coordinates the long-running webvideo process.
//
// It owns the recording orchestrator lifecycle with flock-based locking to
// prevent multiple instances, journals session transitions into the history
// store, forwards them to notifications, and exposes the facade used by the
// IPC server and the optional HTTP API.
//
// Keep orchestration logic here: session semantics live in the orchestrator
// package while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
