package browser

import (
	"fmt"
	"strings"

	"webvideo/internal/taskconfig"
)

// Key is a DevTools key event description.
type Key struct {
	Name    string
	Key     string
	Code    string
	KeyCode int
	Text    string
}

// KeyBrowserFullscreen is handled through window bounds because Chrome
// ignores accelerator keys sent as page input.
const KeyBrowserFullscreen = "F11"

var namedKeys = map[string]Key{
	"enter":     {Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"},
	"escape":    {Key: "Escape", Code: "Escape", KeyCode: 27},
	"esc":       {Key: "Escape", Code: "Escape", KeyCode: 27},
	"space":     {Key: " ", Code: "Space", KeyCode: 32, Text: " "},
	"tab":       {Key: "Tab", Code: "Tab", KeyCode: 9},
	"left":      {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"up":        {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"right":     {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"down":      {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"backspace": {Key: "Backspace", Code: "Backspace", KeyCode: 8},
}

// LookupKey resolves a single character, F1..F12 or a named key such as
// "space" or "escape".
func LookupKey(name string) (Key, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Key{}, fmt.Errorf("empty key name")
	}
	if key, ok := namedKeys[strings.ToLower(trimmed)]; ok {
		key.Name = trimmed
		return key, nil
	}
	upper := strings.ToUpper(trimmed)
	if len(upper) >= 2 && upper[0] == 'F' {
		var n int
		if _, err := fmt.Sscanf(upper[1:], "%d", &n); err == nil && n >= 1 && n <= 12 && fmt.Sprintf("F%d", n) == upper {
			return Key{Name: upper, Key: upper, Code: upper, KeyCode: 111 + n}, nil
		}
	}
	runes := []rune(trimmed)
	if len(runes) != 1 {
		return Key{}, fmt.Errorf("unsupported key %q", name)
	}
	r := runes[0]
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		lower := strings.ToLower(string(r))
		return Key{
			Name:    string(r),
			Key:     string(r),
			Code:    "Key" + strings.ToUpper(lower),
			KeyCode: int(strings.ToUpper(lower)[0]),
			Text:    string(r),
		}, nil
	case r >= '0' && r <= '9':
		return Key{Name: string(r), Key: string(r), Code: "Digit" + string(r), KeyCode: int(r), Text: string(r)}, nil
	default:
		return Key{Name: string(r), Key: string(r), Text: string(r)}, nil
	}
}

// KeySequence lists the keys to press after the page loads, in order.
func KeySequence(task taskconfig.Task) []string {
	var keys []string
	if task.EnableFullscreen {
		keys = append(keys, "h")
	}
	if task.EnableUnmute {
		keys = append(keys, "p")
	}
	if task.EnableBrowserFullscreen {
		keys = append(keys, KeyBrowserFullscreen)
	}
	if task.EnableBilibiliFullscreen {
		keys = append(keys, "f")
	}
	if task.CustomKey1Enabled && strings.TrimSpace(task.CustomKey1) != "" {
		keys = append(keys, strings.TrimSpace(task.CustomKey1))
	}
	if task.CustomKey2Enabled && strings.TrimSpace(task.CustomKey2) != "" {
		keys = append(keys, strings.TrimSpace(task.CustomKey2))
	}
	return keys
}
