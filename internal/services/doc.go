// Package services defines shared utilities consumed by the orchestrator and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp recording session IDs, schedule generations,
//     triggers, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures keep a
//     classifiable sentinel alongside human-readable detail.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error classification, observability) stays uniform across the daemon.
package services
