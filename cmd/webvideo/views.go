package main

import (
	"fmt"
	"strings"
	"time"

	"webvideo/internal/api"
	"webvideo/internal/ipc"
)

const displayLayout = "2006-01-02 15:04"

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t := api.ParseTime(value); !t.IsZero() {
		return t.Local().Format(displayLayout)
	}
	return value
}

func formatSeconds(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}

func sessionRows(session ipc.Session) [][]string {
	rows := [][]string{
		{"State", formatStatusLabel(session.State)},
		{"URL", session.URL},
		{"Start time", session.StartTime},
		{"Duration", fmt.Sprintf("%d min", session.DurationMinutes)},
		{"Recurrence", session.Recurrence},
	}
	if session.NextStart != "" {
		rows = append(rows, []string{"Next start", formatDisplayTime(session.NextStart)})
	}
	if session.StartedAt != "" {
		rows = append(rows,
			[]string{"Started", formatDisplayTime(session.StartedAt)},
			[]string{"Ends", formatDisplayTime(session.EndsAt)},
			[]string{"Remaining", formatSeconds(session.RemainingSeconds)},
			[]string{"Output", session.Output},
			[]string{"Silent", yesNo(session.Silent)},
			[]string{"Browser open", yesNo(session.BrowserOpen)},
		)
	}
	if session.LastError != "" {
		rows = append(rows, []string{"Last error", fmt.Sprintf("%s (%s)", session.LastError, session.LastErrorKind)})
	}
	for _, job := range session.Pending {
		rows = append(rows, []string{"Job " + job.ID, formatDisplayTime(job.At)})
	}
	return rows
}

func historyRows(entries []ipc.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		outcome := formatStatusLabel(entry.Outcome)
		if entry.Silent {
			outcome += " (silent)"
		}
		rows = append(rows, []string{
			formatDisplayTime(entry.StartedAt),
			formatSeconds(entry.DurationSeconds),
			outcome,
			entry.Trigger,
			entry.OutputPath,
			entry.ErrorKind,
		})
	}
	return rows
}
