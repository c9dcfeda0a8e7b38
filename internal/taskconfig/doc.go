// Package taskconfig persists the recording task record.
//
// The record keeps the key names of the desktop tool it replaces so existing
// task files stay readable. Saves always replace the whole record through a
// temp file and rename, and loads verify that every required key is present.
// Storage goes through an afero filesystem so tests can run in memory.
package taskconfig
