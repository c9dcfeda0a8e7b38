package ipc

import (
	"fmt"
	"strings"
	"time"

	"webvideo/internal/api"
	"webvideo/internal/recurrence"
	"webvideo/internal/services"
	"webvideo/internal/taskconfig"
)

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// Session mirrors the HTTP API session DTO for internal IPC callers.
type Session = api.Session

// HistoryEntry mirrors the HTTP API history DTO.
type HistoryEntry = api.HistoryEntry

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StatusResponse represents combined daemon and session status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockPath     string             `json:"lock_path"`
	HistoryPath  string             `json:"history_path"`
	TaskPath     string             `json:"task_path"`
	Session      Session            `json:"session"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// TaskOverrides replaces selected fields of the stored task. Empty fields
// keep the stored value.
type TaskOverrides struct {
	URL             string `json:"url,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Recurrence      string `json:"recurrence,omitempty"`
	Silent          *bool  `json:"silent,omitempty"`
}

// Apply returns task with the overrides applied.
func (o TaskOverrides) Apply(task taskconfig.Task) (taskconfig.Task, error) {
	if url := strings.TrimSpace(o.URL); url != "" {
		task.URL = url
	}
	if start := strings.TrimSpace(o.StartTime); start != "" {
		if _, err := time.ParseInLocation(taskconfig.TimeLayout, start, time.Local); err != nil {
			return task, services.Wrap(services.ErrValidation, "ipc", "parse start time",
				fmt.Sprintf("expected %q", taskconfig.TimeLayout), err)
		}
		task.StartTime = start
	}
	if o.DurationMinutes < 0 {
		return task, services.Wrap(services.ErrValidation, "ipc", "apply overrides", "duration must be positive", nil)
	}
	if o.DurationMinutes > 0 {
		task.DurationMinutes = o.DurationMinutes
	}
	if strings.TrimSpace(o.Recurrence) != "" {
		rule, err := recurrence.ParseRule(o.Recurrence)
		if err != nil {
			return task, services.Wrap(services.ErrValidation, "ipc", "parse recurrence", "", err)
		}
		task = task.WithRule(rule)
	}
	if o.Silent != nil {
		task.SilentMode = *o.Silent
	}
	return task, nil
}

// ScheduleRequest arms the stored task, optionally with overrides.
type ScheduleRequest struct {
	Overrides TaskOverrides `json:"overrides"`
}

// SessionRequest carries no arguments.
type SessionRequest struct{}

// SessionResponse contains the session after the call completed.
type SessionResponse struct {
	Session Session `json:"session"`
}

// ExtendRequest pushes the end of the active recording out.
type ExtendRequest struct{}

// ExtendResponse reports the new end instant.
type ExtendResponse struct {
	EndsAt  string  `json:"ends_at"`
	Session Session `json:"session"`
}

// HistoryRequest lists journaled sessions.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains journaled sessions, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// PreviewRequest lists upcoming start instants of the stored task.
type PreviewRequest struct {
	Count int `json:"count"`
}

// PreviewResponse contains upcoming start instants in TimeLayout.
type PreviewResponse struct {
	Starts []string `json:"starts"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
