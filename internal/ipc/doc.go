// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between orchestrator snapshots and lightweight wire representations. Session
// control calls are forwarded to the daemon facade, which in turn posts them
// to the orchestrator owner loop.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
