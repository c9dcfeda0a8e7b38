// Package browser drives Chrome through the DevTools protocol.
//
// The driver launches (or attaches to) a Chrome instance with remote
// debugging enabled, places its window on the monitor being recorded,
// navigates to the stream, and replays the task's key sequence. It also
// exposes the synthetic click used by the keep-alive pulse.
package browser
