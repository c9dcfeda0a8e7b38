package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// grabDevices maps a capture platform to the ffmpeg input device it uses.
var grabDevices = map[string]string{
	"windows": "gdigrab",
	"linux":   "x11grab",
	"darwin":  "avfoundation",
}

// DeviceLister returns the output of `ffmpeg -hide_banner -devices`.
type DeviceLister func(ctx context.Context, binary string) (string, error)

func listDevices(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-devices").Output()
	return string(out), err
}

// CheckFFmpegDevice reports whether the ffmpeg build supports the screen grab
// device for platform. A nil lister runs the binary.
func CheckFFmpegDevice(ctx context.Context, binary, platform string, lister DeviceLister) Status {
	platform = platformFor(platform)
	device := grabDevices[platform]
	result := Status{
		Name:        "FFmpeg " + device,
		Command:     strings.TrimSpace(binary),
		Description: "Screen grab input device",
	}
	if device == "" {
		result.Name = "FFmpeg"
		result.Detail = fmt.Sprintf("platform %q has no screen grab device", platform)
		return result
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}
	if lister == nil {
		lister = listDevices
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := lister(ctx, result.Command)
	if err != nil {
		result.Detail = fmt.Sprintf("list devices: %v", err)
		return result
	}
	if !hasDevice(out, device) {
		result.Detail = fmt.Sprintf("ffmpeg build lacks %s support", device)
		return result
	}
	result.Available = true
	return result
}

// hasDevice scans ffmpeg's device table, whose rows look like " D  x11grab  X11 screen capture".
func hasDevice(output, device string) bool {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if !strings.Contains(fields[0], "D") {
			continue
		}
		if fields[1] == device {
			return true
		}
	}
	return false
}
