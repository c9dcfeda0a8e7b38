package orchestrator

import (
	"time"

	"webvideo/internal/taskconfig"
)

// State is the recording session state.
type State int

const (
	StateIdle State = iota
	StateCountingDown
	StateConfiguring
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateCountingDown:
		return "counting_down"
	case StateConfiguring:
		return "configuring"
	case StateRecording:
		return "recording"
	default:
		return "idle"
	}
}

// Trigger names what started a transition.
type Trigger string

const (
	TriggerTimer       Trigger = "timer"
	TriggerManual      Trigger = "manual"
	TriggerDoublePress Trigger = "double_press"
	TriggerResume      Trigger = "resume"
	TriggerRecurrence  Trigger = "recurrence"
	TriggerShutdown    Trigger = "shutdown"
)

// EventKind classifies a Transition.
type EventKind string

const (
	EventScheduled   EventKind = "scheduled"
	EventCancelled   EventKind = "cancelled"
	EventConfiguring EventKind = "configuring"
	EventDegraded    EventKind = "automation_degraded"
	EventStarted     EventKind = "recording_started"
	EventStartFailed EventKind = "start_failed"
	EventExtended    EventKind = "extended"
	EventStopping    EventKind = "stopping"
	EventCompleted   EventKind = "recording_completed"
)

// Transition is delivered to subscribers after each notable change.
type Transition struct {
	Kind       EventKind
	From       State
	To         State
	At         time.Time
	SessionID  string
	Generation uint64
	Trigger    Trigger
	Task       taskconfig.Task
	Output     string
	Silent     bool
	StartedAt  time.Time
	EndsAt     time.Time
	NextStart  time.Time
	Err        error
}

// PendingJob is an armed scheduler job.
type PendingJob struct {
	ID string
	At time.Time
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State         State
	Generation    uint64
	SessionID     string
	Trigger       Trigger
	Task          taskconfig.Task
	NextStart     time.Time
	StartedAt     time.Time
	EndsAt        time.Time
	Output        string
	Silent        bool
	BrowserOpen   bool
	Stopping      bool
	LastError     string
	LastErrorKind string
	Pending       []PendingJob
}

// Remaining returns the time left in the current recording.
func (s Snapshot) Remaining(now time.Time) time.Duration {
	if s.State != StateRecording || s.EndsAt.IsZero() {
		return 0
	}
	if d := s.EndsAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
