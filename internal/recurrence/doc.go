// Package recurrence computes when a recurring recording task should run
// next.
//
// Rules come in three shapes: no recurrence, daily (the previous start plus
// 24 hours), and a weekday set. Weekday sets are anchored to the moment the
// calculation runs rather than to the previous start, so the next run always
// lands on a selected day strictly after today. Cron rendering and calendar
// previews are provided for status output.
package recurrence
