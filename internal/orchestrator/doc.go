// Package orchestrator owns the recording session lifecycle.
//
// A single owner goroutine (Run) holds all session state. Public methods and
// scheduler callbacks post closures onto its inbox, so transitions are
// serialized without locks around the state itself. The session moves
// Idle -> CountingDown -> Configuring -> Recording -> Idle, with at most one
// non-idle session per orchestrator. Recurring tasks are re-armed when a
// recording ends.
//
// Collaborators (browser, encoder, keep-alive pulse, task store) are narrow
// interfaces so the state machine can be driven with fakes and a fake clock.
package orchestrator
