// Package logging assembles structured slog loggers and formatting helpers used
// across the webvideo daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator code can tag log
// lines with recording session IDs, schedule generations, and triggers. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail, a fan-out handler, and log retention pruning.
package logging
