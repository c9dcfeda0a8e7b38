package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"webvideo/internal/ipc"
	"webvideo/internal/taskconfig"
)

func TestRecordLifecycleCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"record", "show"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected record show to fail before the daemon is started")
	}

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon started")

	start := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	out, _, err = runCLI(t, []string{
		"record", "schedule",
		"--url", "https://live.example.com/room/5",
		"--start", start.Format(taskconfig.TimeLayout),
		"--duration", "20",
		"--repeat", "everyday",
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record schedule: %v", err)
	}
	requireContains(t, out, "Recording scheduled for "+start.Format(displayLayout))

	out, _, err = runCLI(t, []string{"record", "show", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record show: %v", err)
	}
	var session ipc.Session
	if err := json.Unmarshal([]byte(out), &session); err != nil {
		t.Fatalf("decode session: %v (%s)", err, out)
	}
	if session.State != "counting_down" || session.Recurrence != "everyday" || session.DurationMinutes != 20 {
		t.Fatalf("unexpected session %+v", session)
	}

	out, _, err = runCLI(t, []string{"record", "next", "-n", "3"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record next: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || lines[0] != start.Format(taskconfig.TimeLayout) {
		t.Fatalf("unexpected preview %q", out)
	}

	out, _, err = runCLI(t, []string{"record", "now"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record now: %v", err)
	}
	requireContains(t, out, "Session: Recording")

	out, _, err = runCLI(t, []string{"record", "extend"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record extend: %v", err)
	}
	requireContains(t, out, "Recording now ends at")

	out, _, err = runCLI(t, []string{"record", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record show table: %v", err)
	}
	requireContains(t, out, "cli.mkv")

	out, _, err = runCLI(t, []string{"record", "stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record stop: %v", err)
	}
	requireContains(t, out, "Session: ")

	waitFor(t, 5*time.Second, func() bool {
		entries, err := env.store.List(context.Background(), 10)
		return err == nil && len(entries) == 1 && entries[0].Outcome == "completed"
	})

	out, _, err = runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "manual")

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Recording History")
	requireContains(t, out, "Running (pid")
}

func TestRecordScheduleRejectsBadStart(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _, err := runCLI(t, []string{"record", "schedule", "--start", "next tuesday"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Fatalf("expected validation error, got %v", err)
	}

	past := time.Now().Add(-time.Hour).Format(taskconfig.TimeLayout)
	_, _, err = runCLI(t, []string{"record", "schedule", "--start", past}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid start time") {
		t.Fatalf("expected invalid start time, got %v", err)
	}
}
