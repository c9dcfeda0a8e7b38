package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"webvideo/internal/api"
	"webvideo/internal/config"
	"webvideo/internal/deps"
	"webvideo/internal/history"
	"webvideo/internal/ipc"
)

// StatusLine is one labelled row of the status report.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// StatusSnapshot is everything `webvideo status` renders.
type StatusSnapshot struct {
	*ipc.StatusResponse
	HistoryCounts     map[string]int
	SystemChecks      []StatusLine
	DependencySummary DependencySummary
}

// BuildStatusSnapshot collects daemon status and falls back to reading the
// history database and probing dependencies directly when the daemon is
// unreachable.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	statusResp := &ipc.StatusResponse{Session: ipc.Session{State: "idle"}}
	reachable := false

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			statusResp = resp
			reachable = true
		}
	}

	if len(statusResp.Dependencies) == 0 {
		statusResp.Dependencies = ResolveDependencies(ctx, cfg)
	}

	snapshot := &StatusSnapshot{StatusResponse: statusResp}
	snapshot.HistoryCounts = historyCounts(ctx, cfg)
	snapshot.SystemChecks = BuildSystemChecks(cfg, reachable, statusResp)
	snapshot.DependencySummary = BuildDependencySummary(statusResp.Dependencies)
	return snapshot, nil
}

func historyCounts(ctx context.Context, cfg *config.Config) map[string]int {
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	store, err := history.Open(cfg)
	if err != nil {
		return nil
	}
	defer store.Close()
	counts, err := store.Counts(queryCtx)
	if err != nil {
		return nil
	}
	out := make(map[string]int, len(counts))
	for outcome, n := range counts {
		out[string(outcome)] = n
	}
	return out
}

// ResolveDependencies returns current dependency availability for status output.
func ResolveDependencies(ctx context.Context, cfg *config.Config) []ipc.DependencyStatus {
	if cfg == nil {
		return nil
	}
	checks := deps.CheckBinaries(deps.Requirements(cfg))
	checks = append(checks, deps.CheckFFmpegDevice(ctx, cfg.Capture.FFmpegBinary, cfg.Capture.Platform, nil))
	return api.FromDependencies(checks)
}

// DependencySeverity grades a dependency row.
func DependencySeverity(dep ipc.DependencyStatus) string {
	switch {
	case dep.Available:
		return "ok"
	case dep.Optional:
		return "warn"
	default:
		return "error"
	}
}

// BuildSystemChecks resolves status lines that combine runtime state and config checks.
func BuildSystemChecks(cfg *config.Config, daemonReachable bool, status *ipc.StatusResponse) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	switch {
	case !daemonReachable:
		lines = append(lines, StatusLine{Label: "WebVideo", Severity: "warn", Detail: "Not running (run `webvideo start`)"})
	case status.Running:
		lines = append(lines, StatusLine{Label: "WebVideo", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
	default:
		lines = append(lines, StatusLine{Label: "WebVideo", Severity: "warn", Detail: "Process up, orchestrator stopped"})
	}

	lines = append(lines, sessionLine(status.Session))

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "warn", Detail: "Not configured"})
	}

	if bind := strings.TrimSpace(cfg.API.Bind); bind != "" {
		detail := "Listening on " + bind
		if strings.TrimSpace(cfg.API.Token) == "" {
			detail += " (no token)"
		}
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "ok", Detail: detail})
	} else {
		lines = append(lines, StatusLine{Label: "HTTP API", Severity: "info", Detail: "Disabled"})
	}

	if len(cfg.Capture.Monitors) > 0 {
		lines = append(lines, StatusLine{Label: "Monitors", Severity: "ok", Detail: fmt.Sprintf("%d pinned in config", len(cfg.Capture.Monitors))})
	} else {
		lines = append(lines, StatusLine{Label: "Monitors", Severity: "info", Detail: "Probed at record time"})
	}
	return lines
}

func sessionLine(session ipc.Session) StatusLine {
	switch session.State {
	case "counting_down":
		return StatusLine{Label: "Session", Severity: "ok", Detail: "Counting down to " + session.NextStart}
	case "configuring":
		return StatusLine{Label: "Session", Severity: "ok", Detail: "Opening browser"}
	case "recording":
		detail := "Recording until " + session.EndsAt
		if session.Silent {
			detail += " (silent)"
		}
		return StatusLine{Label: "Session", Severity: "ok", Detail: detail}
	default:
		if session.LastError != "" {
			return StatusLine{Label: "Session", Severity: "warn", Detail: "Idle, last error: " + session.LastError}
		}
		return StatusLine{Label: "Session", Severity: "info", Detail: "Idle"}
	}
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(statuses []ipc.DependencyStatus) DependencySummary {
	if len(statuses) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range statuses {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(statuses) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(statuses), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(statuses))
	}

	return DependencySummary{
		Total:           len(statuses),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}

// SortedCounts returns history outcome counts ordered by outcome name.
func SortedCounts(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprintf("%d", counts[k])})
	}
	return rows
}
