package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeRecording   Outcome = "recording"
	OutcomeCompleted   Outcome = "completed"
	OutcomeStartFailed Outcome = "start_failed"
	OutcomeStopTimeout Outcome = "stop_timeout"
	OutcomeInterrupted Outcome = "interrupted"
)

// Entry is one journal row.
type Entry struct {
	ID           int64
	SessionID    string
	Generation   uint64
	Trigger      string
	URL          string
	OutputPath   string
	Silent       bool
	StartedAt    time.Time
	EndedAt      time.Time
	Outcome      Outcome
	ErrorKind    string
	ErrorMessage string
}

// Duration returns the recorded span, or zero while still recording.
func (e Entry) Duration() time.Duration {
	if e.EndedAt.IsZero() {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}

const selectColumns = `id, session_id, generation, trigger, url, output_path, silent,
    started_at, ended_at, outcome, error_kind, error_message`

// Insert adds a session row. Entries without an outcome are stored as
// recording.
func (s *Store) Insert(ctx context.Context, e Entry) (int64, error) {
	if e.SessionID == "" {
		return 0, errors.New("history: session id required")
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeRecording
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO sessions (
            session_id, generation, trigger, url, output_path, silent,
            started_at, ended_at, outcome, error_kind, error_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID,
		int64(e.Generation),
		e.Trigger,
		nullableString(e.URL),
		nullableString(e.OutputPath),
		boolToInt(e.Silent),
		formatTime(e.StartedAt),
		nullableTime(e.EndedAt),
		string(e.Outcome),
		nullableString(e.ErrorKind),
		nullableString(e.ErrorMessage),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// Finish records the end of a session.
func (s *Store) Finish(ctx context.Context, sessionID string, endedAt time.Time, outcome Outcome, errKind, errMsg string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions SET ended_at = ?, outcome = ?, error_kind = COALESCE(?, error_kind),
            error_message = COALESCE(?, error_message)
        WHERE session_id = ?`,
		formatTime(endedAt),
		string(outcome),
		nullableString(errKind),
		nullableString(errMsg),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish session %s: %w", sessionID, sql.ErrNoRows)
	}
	return nil
}

// Annotate stores a non-fatal error against a running session.
func (s *Store) Annotate(ctx context.Context, sessionID, errKind, errMsg string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE sessions SET error_kind = ?, error_message = ? WHERE session_id = ?`,
		nullableString(errKind), nullableString(errMsg), sessionID,
	)
	if err != nil {
		return fmt.Errorf("annotate session: %w", err)
	}
	return nil
}

// Get returns the session with the given id, or nil when absent.
func (s *Store) Get(ctx context.Context, sessionID string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+selectColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return entry, nil
}

// List returns up to limit sessions, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM sessions ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// MarkInterrupted closes rows a previous process left in the recording
// outcome and returns how many were updated.
func (s *Store) MarkInterrupted(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions SET outcome = ?, ended_at = COALESCE(ended_at, ?) WHERE outcome = ?`,
		string(OutcomeInterrupted), formatTime(at), string(OutcomeRecording),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes finished sessions that started before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM sessions WHERE started_at < ? AND outcome != ?`,
		formatTime(cutoff), string(OutcomeRecording),
	)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

// Counts groups sessions by outcome.
func (s *Store) Counts(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT outcome, COUNT(1) FROM sessions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("session counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome Outcome
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e          Entry
		generation int64
		url        sql.NullString
		output     sql.NullString
		ended      sql.NullString
		errKind    sql.NullString
		errMsg     sql.NullString
		started    string
		outcome    string
		silent     int
	)
	if err := row.Scan(&e.ID, &e.SessionID, &generation, &e.Trigger, &url, &output, &silent,
		&started, &ended, &outcome, &errKind, &errMsg); err != nil {
		return nil, err
	}
	e.Generation = uint64(generation)
	e.URL = url.String
	e.OutputPath = output.String
	e.Silent = silent != 0
	e.Outcome = Outcome(outcome)
	e.ErrorKind = errKind.String
	e.ErrorMessage = errMsg.String
	e.StartedAt = parseTime(started)
	if ended.Valid {
		e.EndedAt = parseTime(ended.String)
	}
	return &e, nil
}

// timeLayout is fixed width so stored instants sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.ParseInLocation(timeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
