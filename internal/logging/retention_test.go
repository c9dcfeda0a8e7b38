package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCleanupOldLogsPrunesMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "webvideo-old.log")
	fresh := filepath.Join(dir, "webvideo-new.log")
	current := filepath.Join(dir, "webvideo-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, current, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if n := CleanupOldLogs(NewNop(), 5, RetentionTarget{Dir: dir, Pattern: "webvideo-*.log", Exclude: []string{current}}); n != 1 {
		t.Fatalf("expected one pruned file, got %d", n)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log to be removed, err=%v", err)
	}
	for _, path := range []string{fresh, current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webvideo-old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().AddDate(0, 0, -100)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	CleanupOldLogs(nil, 0, RetentionTarget{Dir: dir, Pattern: "*.log"})
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to remain when retention disabled: %v", err)
	}
}
