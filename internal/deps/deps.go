package deps

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"webvideo/internal/config"
)

// Requirement defines an external dependency webvideo relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Requirements lists the external binaries the daemon needs for cfg. The
// xrandr probe is only relevant to x11grab captures and is optional because
// explicit monitors in config.toml bypass it.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Capture.FFmpegBinary,
			Description: "Captures the screen and audio",
		},
		{
			Name:        "Chrome",
			Command:     cfg.Browser.ChromeBinary,
			Description: "Plays the page being recorded",
			Optional:    true,
		},
	}
	if platformFor(cfg.Capture.Platform) == "linux" {
		reqs = append(reqs, Requirement{
			Name:        "xrandr",
			Command:     cfg.Capture.XrandrBinary,
			Description: "Locates the secondary monitor",
			Optional:    len(cfg.Capture.Monitors) > 0,
		})
	}
	return reqs
}

func platformFor(configured string) string {
	configured = strings.ToLower(strings.TrimSpace(configured))
	if configured == "" || configured == "auto" {
		return runtime.GOOS
	}
	return configured
}
