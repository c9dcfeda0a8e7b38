package daemonctl

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"webvideo/internal/config"
	"webvideo/internal/history"
	"webvideo/internal/ipc"
	"webvideo/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	summary := BuildDependencySummary(nil)
	if summary.Severity != "info" {
		t.Fatalf("expected info for empty deps, got %s", summary.Severity)
	}

	summary = BuildDependencySummary([]ipc.DependencyStatus{
		{Name: "FFmpeg", Available: true},
		{Name: "Chrome", Optional: true},
	})
	if summary.Severity != "warn" || summary.MissingOptional != 1 || summary.Available != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	summary = BuildDependencySummary([]ipc.DependencyStatus{{Name: "FFmpeg"}})
	if summary.Severity != "error" || !strings.Contains(summary.Detail, "1 required") {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestDependencySeverity(t *testing.T) {
	cases := map[string]ipc.DependencyStatus{
		"ok":    {Available: true},
		"warn":  {Optional: true},
		"error": {},
	}
	for want, dep := range cases {
		if got := DependencySeverity(dep); got != want {
			t.Fatalf("want %s, got %s", want, got)
		}
	}
}

func TestBuildSystemChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic("webvideo-test"))
	cfg.API.Bind = "127.0.0.1:8787"
	cfg.Capture.Monitors = []config.Monitor{{Width: 1920, Height: 1080}}

	lines := BuildSystemChecks(cfg, true, &ipc.StatusResponse{
		Running: true,
		PID:     42,
		Session: ipc.Session{State: "recording", EndsAt: "2031-01-01T10:00:00.000Z", Silent: true},
	})
	byLabel := make(map[string]StatusLine, len(lines))
	for _, line := range lines {
		byLabel[line.Label] = line
	}
	if byLabel["WebVideo"].Detail != "Running (pid 42)" {
		t.Fatalf("unexpected daemon line %+v", byLabel["WebVideo"])
	}
	if !strings.HasSuffix(byLabel["Session"].Detail, "(silent)") {
		t.Fatalf("unexpected session line %+v", byLabel["Session"])
	}
	if byLabel["Notifications"].Severity != "ok" || !strings.Contains(byLabel["HTTP API"].Detail, "no token") {
		t.Fatalf("unexpected config lines %+v", lines)
	}
	if byLabel["Monitors"].Severity != "ok" {
		t.Fatalf("unexpected monitors line %+v", byLabel["Monitors"])
	}

	lines = BuildSystemChecks(testsupport.NewConfig(t), false, &ipc.StatusResponse{})
	if lines[0].Severity != "warn" || lines[1].Detail != "Idle" {
		t.Fatalf("unexpected offline lines %+v", lines)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenHistory(t, cfg)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i, outcome := range []history.Outcome{history.OutcomeCompleted, history.OutcomeCompleted, history.OutcomeStartFailed} {
		entry := history.Entry{SessionID: "s" + string(rune('a'+i)), StartedAt: start, Outcome: outcome}
		if _, err := store.Insert(context.Background(), entry); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	socket := filepath.Join(cfg.Paths.StateDir, "missing.sock")
	snapshot, err := BuildStatusSnapshot(context.Background(), socket, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Running {
		t.Fatal("expected offline snapshot")
	}
	if snapshot.HistoryCounts["completed"] != 2 || snapshot.HistoryCounts["start_failed"] != 1 {
		t.Fatalf("unexpected counts %v", snapshot.HistoryCounts)
	}
	if len(snapshot.Dependencies) == 0 || snapshot.DependencySummary.Total != len(snapshot.Dependencies) {
		t.Fatalf("expected dependency checks, got %+v", snapshot.DependencySummary)
	}
	rows := SortedCounts(snapshot.HistoryCounts)
	if len(rows) != 2 || rows[0][0] != "completed" || rows[1][1] != "1" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := StopAndTerminate(filepath.Join(t.TempDir(), "none.sock"), cfg, 100*time.Millisecond)
	if err != ErrDaemonNotRunning {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestRuntimePaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pid, lock := runtimePaths("/var/lib/webvideo/webvideo.lock", cfg)
	if pid != "/var/lib/webvideo/webvideo.pid" || lock != "/var/lib/webvideo/webvideo.lock" {
		t.Fatalf("unexpected paths %s %s", pid, lock)
	}
	pid, lock = runtimePaths("", cfg)
	if pid != cfg.PIDPath() || lock != cfg.LockPath() {
		t.Fatalf("unexpected fallback paths %s %s", pid, lock)
	}
}
