// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates orchestrator snapshots, history rows, and
// dependency checks into transport-friendly DTOs that the CLI and other
// consumers can render without coupling to internal types.
//
// # Key Types
//
// Session: the recording session state, armed jobs, and timing.
//
// HistoryEntry: one journaled recording cycle.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (orchestrator.State, history.Outcome)
// are exposed as lowercase strings. Timestamps use RFC3339 with milliseconds
// and are omitted when unset.
package api
