package logs_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"

	"webvideo/internal/logs"
)

func TestTailLastLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/logs/webvideo.log"
	if err := afero.WriteFile(fs, path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.NewTailer(fs).Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", result.Offset)
	}
}

func TestTailMatchFiltersLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/logs/webvideo.log"
	content := "session=a start\nsession=b start\nsession=a stop\n"
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.NewTailer(fs).Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, Match: "session=a"})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[1] != "session=a stop" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
}

func TestTailFromOffsetHoldsPartialLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/logs/webvideo.log"
	if err := afero.WriteFile(fs, path, []byte("one\ntw"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	tailer := logs.NewTailer(fs)

	result, err := tailer.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Offset != 4 {
		t.Fatalf("unexpected result %#v", result)
	}

	if err := afero.WriteFile(fs, path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatalf("rewrite log: %v", err)
	}
	result, err = tailer.Tail(context.Background(), path, logs.TailOptions{Offset: result.Offset})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "two" {
		t.Fatalf("unexpected lines %#v", result.Lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.NewTailer(afero.NewMemMapFs()).Tail(context.Background(), "/nope.log", logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail missing: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/logs/webvideo.log"
	if err := afero.WriteFile(fs, path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- logs.NewTailer(fs).Follow(ctx, path, 1, "", func(line string) { got <- line })
	}()

	if line := <-got; line != "start" {
		t.Fatalf("expected initial line, got %q", line)
	}

	f, err := fs.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case line := <-got:
		if line != "later" {
			t.Fatalf("unexpected follow line %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not emit appended line")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("follow returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
}
