package capture

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Geometry is a capture rectangle in virtual desktop coordinates.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", g.Width, g.Height, g.X, g.Y)
}

// FallbackGeometry assumes 1080p monitors placed side by side.
func FallbackGeometry(index int) Geometry {
	if index == 0 {
		return Geometry{X: 0, Y: 0, Width: 1920, Height: 1080}
	}
	return Geometry{X: 1920, Y: 0, Width: 1920, Height: 1080}
}

// MonitorProber lists attached monitors.
type MonitorProber interface {
	Monitors(ctx context.Context) ([]Geometry, error)
}

// StaticMonitors serves a fixed monitor list.
type StaticMonitors []Geometry

func (s StaticMonitors) Monitors(context.Context) ([]Geometry, error) {
	return append([]Geometry(nil), s...), nil
}

// Runner executes a command and returns its standard output.
type Runner interface {
	Output(ctx context.Context, binary string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).Output() //nolint:gosec
}

// XrandrProber reads monitors from `xrandr --listmonitors`.
type XrandrProber struct {
	Binary  string
	Display string
	Runner  Runner
}

var xrandrMonitorPattern = regexp.MustCompile(`(\d+)/\d+x(\d+)/\d+\+(-?\d+)\+(-?\d+)`)

func (p XrandrProber) Monitors(ctx context.Context) ([]Geometry, error) {
	runner := p.Runner
	if runner == nil {
		runner = execRunner{}
	}
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "xrandr"
	}
	args := []string{"--listmonitors"}
	if display := strings.TrimSpace(p.Display); display != "" {
		args = append([]string{"-display", display}, args...)
	}
	out, err := runner.Output(ctx, binary, args...)
	if err != nil {
		return nil, fmt.Errorf("xrandr --listmonitors: %w", err)
	}
	return parseXrandrMonitors(string(out)), nil
}

func parseXrandrMonitors(output string) []Geometry {
	var monitors []Geometry
	for _, line := range strings.Split(output, "\n") {
		match := xrandrMonitorPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		width, _ := strconv.Atoi(match[1])
		height, _ := strconv.Atoi(match[2])
		x, _ := strconv.Atoi(match[3])
		y, _ := strconv.Atoi(match[4])
		monitors = append(monitors, Geometry{X: x, Y: y, Width: width, Height: height})
	}
	return monitors
}

// ResolveGeometry picks monitor index from the left-to-right ordered list,
// falling back to FallbackGeometry when probing fails or the index is out
// of range.
func ResolveGeometry(ctx context.Context, prober MonitorProber, index int) (Geometry, error) {
	if prober == nil {
		return FallbackGeometry(index), nil
	}
	monitors, err := prober.Monitors(ctx)
	if err != nil {
		return FallbackGeometry(index), err
	}
	sort.SliceStable(monitors, func(i, j int) bool { return monitors[i].X < monitors[j].X })
	if index >= 0 && index < len(monitors) {
		return monitors[index], nil
	}
	return FallbackGeometry(index), nil
}
