// Package scheduler runs one-shot jobs at wall-clock instants.
//
// Jobs are keyed by caller-chosen ids and kept in a min-heap ordered by
// trigger instant, with insertion order breaking ties. A single goroutine
// sleeps until the earliest job (never longer than a minute at a time so
// suspend/resume drift is corrected), removes every job that has become due,
// and invokes their callbacks in instant order. Jobs missed while the host
// slept therefore fire once each on wake.
package scheduler
