// Package notifications delivers recording session events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Enumerated event types cover the session milestones so the daemon journal
// can emit consistent messages without duplicating HTTP glue.
package notifications
