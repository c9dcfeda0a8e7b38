package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session describes the recording session in a transport-friendly format.
type Session struct {
	State            string       `json:"state"`
	Generation       uint64       `json:"generation"`
	SessionID        string       `json:"sessionId,omitempty"`
	Trigger          string       `json:"trigger,omitempty"`
	URL              string       `json:"url"`
	StartTime        string       `json:"startTime"`
	DurationMinutes  int          `json:"durationMinutes"`
	Recurrence       string       `json:"recurrence"`
	NextStart        string       `json:"nextStart,omitempty"`
	StartedAt        string       `json:"startedAt,omitempty"`
	EndsAt           string       `json:"endsAt,omitempty"`
	RemainingSeconds int64        `json:"remainingSeconds"`
	Output           string       `json:"output,omitempty"`
	Silent           bool         `json:"silent"`
	BrowserOpen      bool         `json:"browserOpen"`
	Stopping         bool         `json:"stopping"`
	LastError        string       `json:"lastError,omitempty"`
	LastErrorKind    string       `json:"lastErrorKind,omitempty"`
	Pending          []PendingJob `json:"pending"`
}

// PendingJob is an armed scheduler job.
type PendingJob struct {
	ID string `json:"id"`
	At string `json:"at"`
}

// HistoryEntry describes one recording cycle.
type HistoryEntry struct {
	ID              int64  `json:"id"`
	SessionID       string `json:"sessionId"`
	Generation      uint64 `json:"generation"`
	Trigger         string `json:"trigger"`
	URL             string `json:"url,omitempty"`
	OutputPath      string `json:"outputPath,omitempty"`
	Silent          bool   `json:"silent"`
	StartedAt       string `json:"startedAt"`
	EndedAt         string `json:"endedAt,omitempty"`
	DurationSeconds int64  `json:"durationSeconds"`
	Outcome         string `json:"outcome"`
	ErrorKind       string `json:"errorKind,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	HistoryDBPath string             `json:"historyDbPath"`
	LockFilePath  string             `json:"lockFilePath"`
	TaskFilePath  string             `json:"taskFilePath"`
	Session       Session            `json:"session"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// SessionResponse wraps a session snapshot.
type SessionResponse struct {
	Session Session `json:"session"`
}

// HistoryListResponse wraps a collection of history entries.
type HistoryListResponse struct {
	Entries []HistoryEntry `json:"entries"`
}
