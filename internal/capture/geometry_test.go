package capture

import (
	"context"
	"errors"
	"testing"
)

type stubRunner struct {
	out  string
	err  error
	args []string
}

func (s *stubRunner) Output(_ context.Context, binary string, args ...string) ([]byte, error) {
	s.args = append([]string{binary}, args...)
	return []byte(s.out), s.err
}

const xrandrOutput = `Monitors: 2
 0: +*HDMI-1 2560/597x1440/336+1920+0  HDMI-1
 1: +DP-1 1920/527x1080/296+0+0  DP-1
`

func TestXrandrProberSortsLeftToRight(t *testing.T) {
	runner := &stubRunner{out: xrandrOutput}
	prober := XrandrProber{Binary: "xrandr", Display: ":0", Runner: runner}

	geom, err := ResolveGeometry(context.Background(), prober, 0)
	if err != nil {
		t.Fatalf("ResolveGeometry: %v", err)
	}
	if geom != (Geometry{X: 0, Y: 0, Width: 1920, Height: 1080}) {
		t.Fatalf("monitor 0 = %v", geom)
	}
	geom, _ = ResolveGeometry(context.Background(), prober, 1)
	if geom != (Geometry{X: 1920, Y: 0, Width: 2560, Height: 1440}) {
		t.Fatalf("monitor 1 = %v", geom)
	}
	if runner.args[1] != "-display" || runner.args[2] != ":0" {
		t.Fatalf("display flag not passed: %v", runner.args)
	}
}

func TestResolveGeometryFallbacks(t *testing.T) {
	failing := XrandrProber{Runner: &stubRunner{err: errors.New("no display")}}
	geom, err := ResolveGeometry(context.Background(), failing, 0)
	if err == nil {
		t.Fatal("expected probe error")
	}
	if geom != FallbackGeometry(0) {
		t.Fatalf("expected fallback, got %v", geom)
	}

	geom, err = ResolveGeometry(context.Background(), StaticMonitors{{Width: 800, Height: 600}}, 3)
	if err != nil {
		t.Fatalf("ResolveGeometry: %v", err)
	}
	if geom != (Geometry{X: 1920, Y: 0, Width: 1920, Height: 1080}) {
		t.Fatalf("expected secondary fallback, got %v", geom)
	}

	if geom, _ := ResolveGeometry(context.Background(), nil, 0); geom != FallbackGeometry(0) {
		t.Fatalf("nil prober should fall back, got %v", geom)
	}
}
