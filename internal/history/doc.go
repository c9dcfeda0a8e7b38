// Package history keeps a SQLite journal of recording sessions.
//
// Each row is one recording cycle keyed by its session id: when and why it
// started, where the output went, and how it ended. Rows left in the
// "recording" outcome by a crashed daemon are marked interrupted on startup.
package history
