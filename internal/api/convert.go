package api

import (
	"time"

	"webvideo/internal/deps"
	"webvideo/internal/history"
	"webvideo/internal/orchestrator"
)

// FromSnapshot converts an orchestrator snapshot to its API representation.
// now drives the remaining-time field.
func FromSnapshot(snap orchestrator.Snapshot, now time.Time) Session {
	dto := Session{
		State:            snap.State.String(),
		Generation:       snap.Generation,
		SessionID:        snap.SessionID,
		Trigger:          string(snap.Trigger),
		URL:              snap.Task.URL,
		StartTime:        snap.Task.StartTime,
		DurationMinutes:  snap.Task.DurationMinutes,
		Recurrence:       snap.Task.Rule().String(),
		NextStart:        formatTime(snap.NextStart),
		StartedAt:        formatTime(snap.StartedAt),
		EndsAt:           formatTime(snap.EndsAt),
		RemainingSeconds: int64(snap.Remaining(now).Round(time.Second) / time.Second),
		Output:           snap.Output,
		Silent:           snap.Silent,
		BrowserOpen:      snap.BrowserOpen,
		Stopping:         snap.Stopping,
		LastError:        snap.LastError,
		LastErrorKind:    snap.LastErrorKind,
		Pending:          make([]PendingJob, 0, len(snap.Pending)),
	}
	for _, job := range snap.Pending {
		dto.Pending = append(dto.Pending, PendingJob{ID: job.ID, At: formatTime(job.At)})
	}
	return dto
}

// FromHistoryEntry converts a history row to its API representation.
func FromHistoryEntry(entry history.Entry) HistoryEntry {
	return HistoryEntry{
		ID:              entry.ID,
		SessionID:       entry.SessionID,
		Generation:      entry.Generation,
		Trigger:         entry.Trigger,
		URL:             entry.URL,
		OutputPath:      entry.OutputPath,
		Silent:          entry.Silent,
		StartedAt:       formatTime(entry.StartedAt),
		EndedAt:         formatTime(entry.EndedAt),
		DurationSeconds: int64(entry.Duration() / time.Second),
		Outcome:         string(entry.Outcome),
		ErrorKind:       entry.ErrorKind,
		ErrorMessage:    entry.ErrorMessage,
	}
}

// FromHistoryEntries converts a slice of history rows.
func FromHistoryEntries(entries []history.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromHistoryEntry(entry))
	}
	return out
}

// FromDependencies converts dependency checks to their API representation.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// ParseTime parses an API timestamp. Empty strings yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}
