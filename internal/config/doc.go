// Package config loads, normalizes, and validates the daemon configuration.
//
// It merges TOML files with environment overrides, expands user paths, and
// exposes helpers to create directories and sample configs. The per-task
// recording record lives in its own file handled by the taskconfig package;
// this package only decides where that file is stored.
package config
