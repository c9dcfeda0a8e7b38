package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"webvideo/internal/history"
	"webvideo/internal/testsupport"
)

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestInsertAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if got := store.Path(); got != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected path %q", got)
	}

	id, err := store.Insert(ctx, history.Entry{
		SessionID:  "s-1",
		Generation: 3,
		Trigger:    "timer",
		URL:        "https://example.com/live",
		OutputPath: "/videos/webVideos_2026-03-02_10-00.mp4",
		Silent:     true,
		StartedAt:  baseTime,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	entry, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.Outcome != history.OutcomeRecording {
		t.Fatalf("expected recording outcome, got %q", entry.Outcome)
	}
	if entry.Generation != 3 || entry.Trigger != "timer" || !entry.Silent {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if !entry.StartedAt.Equal(baseTime) {
		t.Fatalf("started at %v, want %v", entry.StartedAt, baseTime)
	}
	if !entry.EndedAt.IsZero() || entry.Duration() != 0 {
		t.Fatalf("expected open session, got ended=%v", entry.EndedAt)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing session, got %+v", missing)
	}
}

func TestInsertRequiresSessionID(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if _, err := store.Insert(context.Background(), history.Entry{}); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestInsertRejectsDuplicateSession(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := store.Insert(ctx, history.Entry{SessionID: "dup", StartedAt: baseTime}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Insert(ctx, history.Entry{SessionID: "dup", StartedAt: baseTime}); err == nil {
		t.Fatal("expected unique constraint error")
	}
}

func TestFinishAndAnnotate(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.Insert(ctx, history.Entry{SessionID: "s-1", StartedAt: baseTime}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Annotate(ctx, "s-1", "automation_failed", "chrome missing"); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	end := baseTime.Add(90 * time.Minute)
	if err := store.Finish(ctx, "s-1", end, history.OutcomeCompleted, "", ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	entry, err := store.Get(ctx, "s-1")
	if err != nil || entry == nil {
		t.Fatalf("Get: %v %v", entry, err)
	}
	if entry.Outcome != history.OutcomeCompleted {
		t.Fatalf("expected completed, got %q", entry.Outcome)
	}
	if entry.Duration() != 90*time.Minute {
		t.Fatalf("duration %v", entry.Duration())
	}
	if entry.ErrorKind != "automation_failed" || entry.ErrorMessage != "chrome missing" {
		t.Fatalf("annotation lost on finish: %+v", entry)
	}

	if err := store.Finish(ctx, "s-1", end, history.OutcomeStopTimeout, "stop_timeout", "killed"); err != nil {
		t.Fatalf("Finish overwrite: %v", err)
	}
	entry, _ = store.Get(ctx, "s-1")
	if entry.ErrorKind != "stop_timeout" || entry.ErrorMessage != "killed" {
		t.Fatalf("expected overwritten error, got %+v", entry)
	}

	err = store.Finish(ctx, "missing", end, history.OutcomeCompleted, "", "")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for missing session, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		if _, err := store.Insert(ctx, history.Entry{
			SessionID: id,
			StartedAt: baseTime.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].SessionID != "c" || all[2].SessionID != "a" {
		t.Fatalf("unexpected order: %s %s %s", all[0].SessionID, all[1].SessionID, all[2].SessionID)
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 2 || limited[0].SessionID != "c" {
		t.Fatalf("unexpected limited list %+v", limited)
	}
}

func TestMarkInterruptedAndCounts(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.Insert(ctx, history.Entry{SessionID: "open", StartedAt: baseTime}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Insert(ctx, history.Entry{
		SessionID: "done",
		StartedAt: baseTime,
		EndedAt:   baseTime.Add(time.Minute),
		Outcome:   history.OutcomeCompleted,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	restart := baseTime.Add(2 * time.Hour)
	n, err := store.MarkInterrupted(ctx, restart)
	if err != nil {
		t.Fatalf("MarkInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 interrupted row, got %d", n)
	}
	entry, _ := store.Get(ctx, "open")
	if entry.Outcome != history.OutcomeInterrupted || !entry.EndedAt.Equal(restart) {
		t.Fatalf("unexpected interrupted entry %+v", entry)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[history.OutcomeInterrupted] != 1 || counts[history.OutcomeCompleted] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestPruneKeepsRecentAndOpenSessions(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	old := baseTime.Add(-48 * time.Hour)
	entries := []history.Entry{
		{SessionID: "old-done", StartedAt: old, Outcome: history.OutcomeCompleted},
		{SessionID: "old-open", StartedAt: old},
		{SessionID: "new-done", StartedAt: baseTime, Outcome: history.OutcomeCompleted},
	}
	for _, e := range entries {
		if _, err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert %s: %v", e.SessionID, err)
		}
	}

	n, err := store.Prune(ctx, baseTime.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned row, got %d", n)
	}
	if e, _ := store.Get(ctx, "old-done"); e != nil {
		t.Fatal("old finished session should be pruned")
	}
	if e, _ := store.Get(ctx, "old-open"); e == nil {
		t.Fatal("open session should survive prune")
	}
}

func TestReopenDetectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	_, err = history.OpenPath(path)
	if !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestReopenPreservesEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Insert(context.Background(), history.Entry{SessionID: "keep", StartedAt: baseTime}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_ = store.Close()

	reopened := testsupport.MustOpenHistory(t, cfg)
	if e, err := reopened.Get(context.Background(), "keep"); err != nil || e == nil {
		t.Fatalf("expected entry after reopen, got %v %v", e, err)
	}
}
