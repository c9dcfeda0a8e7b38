// Package logs reads the daemon log file for the CLI.
//
// Tail returns the last N lines (negative offset) or everything written after
// a byte offset, optionally waiting for new lines. Follow builds on Tail to
// stream lines until the context ends, which backs `webvideo logs --follow`.
// Reads go through afero so tests can run against an in-memory filesystem.
package logs
