package browser

import (
	"slices"
	"testing"

	"webvideo/internal/taskconfig"
)

func TestLookupKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		code    string
		keyCode int
	}{
		{"h", "h", "KeyH", 72},
		{"P", "P", "KeyP", 80},
		{"7", "7", "Digit7", 55},
		{"F11", "F11", "F11", 122},
		{"f1", "F1", "F1", 112},
		{"space", " ", "Space", 32},
		{"Escape", "Escape", "Escape", 27},
	}
	for _, tt := range tests {
		got, err := LookupKey(tt.name)
		if err != nil {
			t.Fatalf("LookupKey(%q): %v", tt.name, err)
		}
		if got.Key != tt.key || got.Code != tt.code || got.KeyCode != tt.keyCode {
			t.Fatalf("LookupKey(%q) = %+v", tt.name, got)
		}
	}
	for _, bad := range []string{"", "F13", "ctrl+a"} {
		if _, err := LookupKey(bad); err == nil {
			t.Fatalf("LookupKey(%q) should fail", bad)
		}
	}
}

func TestKeySequenceOrderAndGating(t *testing.T) {
	task := taskconfig.Default()
	task.EnableBrowserFullscreen = true
	task.EnableBilibiliFullscreen = true
	task.CustomKey1Enabled = true
	task.CustomKey1 = "m"
	task.CustomKey2Enabled = true
	task.CustomKey2 = " "
	got := KeySequence(task)
	want := []string{"h", "p", "F11", "f", "m"}
	if !slices.Equal(got, want) {
		t.Fatalf("KeySequence = %v, want %v", got, want)
	}

	task = taskconfig.Default()
	task.EnableFullscreen = false
	task.EnableUnmute = false
	if got := KeySequence(task); len(got) != 0 {
		t.Fatalf("expected no keys, got %v", got)
	}
}
