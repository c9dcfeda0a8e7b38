// Package main hosts the webvideo CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon: scheduling and controlling the recording session,
// reading the session history, and scaffolding configuration. It centralizes
// configuration resolution and socket discovery so subcommands can focus on
// presentation.
//
// Add new functionality by extending the internal packages first, then
// surface it through dedicated commands or flags here.
package main
