package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"webvideo/internal/logging"
	"webvideo/internal/services"
	"webvideo/internal/taskconfig"
)

const (
	defaultStopTimeout = 5 * time.Second
	defaultStartGrace  = time.Second
	stderrTailLines    = 20
)

// Process is a running encoder.
type Process interface {
	PID() int
	// Quit asks the encoder to finalize the file and exit.
	Quit() error
	Kill() error
	// Wait blocks until the process exits.
	Wait() error
	// Tail returns the last lines the process wrote to stderr.
	Tail() []string
}

// Launcher starts encoder processes.
type Launcher interface {
	Launch(binary string, args []string) (Process, error)
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLauncher overrides process creation (primarily for tests).
func WithLauncher(l Launcher) Option {
	return func(e *Encoder) {
		if l != nil {
			e.launcher = l
		}
	}
}

// WithMonitorProber overrides monitor discovery.
func WithMonitorProber(p MonitorProber) Option {
	return func(e *Encoder) { e.prober = p }
}

// WithStopTimeout bounds the graceful quit before the encoder is killed.
func WithStopTimeout(d time.Duration) Option {
	return func(e *Encoder) {
		if d > 0 {
			e.stopTimeout = d
		}
	}
}

// WithStartGrace sets how long Start waits for an immediate encoder exit.
func WithStartGrace(d time.Duration) Option {
	return func(e *Encoder) {
		if d >= 0 {
			e.startGrace = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) { e.logger = logging.NewComponentLogger(logger, "capture") }
}

// Encoder launches and stops ffmpeg recordings.
type Encoder struct {
	binary      string
	platform    string
	display     string
	prober      MonitorProber
	launcher    Launcher
	stopTimeout time.Duration
	startGrace  time.Duration
	logger      *slog.Logger
}

// NewEncoder constructs an encoder for the given platform.
func NewEncoder(binary, platform, display string, opts ...Option) *Encoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	e := &Encoder{
		binary:      binary,
		platform:    platform,
		display:     display,
		launcher:    execLauncher{},
		stopTimeout: defaultStopTimeout,
		startGrace:  defaultStartGrace,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recording is a handle on one encoder run.
type Recording struct {
	Output    string
	Args      []string
	Geometry  Geometry
	StartedAt time.Time

	proc     Process
	exited   chan struct{}
	mu       sync.Mutex
	waitErr  error
	stopping bool
}

// PID returns the encoder process id.
func (r *Recording) PID() int {
	if r == nil || r.proc == nil {
		return 0
	}
	return r.proc.PID()
}

// Exited is closed once the encoder process has exited.
func (r *Recording) Exited() <-chan struct{} {
	return r.exited
}

// Err reports the encoder exit status after Exited closes.
func (r *Recording) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitErr
}

func (r *Recording) watch() {
	err := r.proc.Wait()
	r.mu.Lock()
	r.waitErr = err
	r.mu.Unlock()
	close(r.exited)
}

func (r *Recording) hasExited() bool {
	select {
	case <-r.exited:
		return true
	default:
		return false
	}
}

// Start creates the output directory, resolves the capture rectangle and
// launches ffmpeg. An encoder that exits within the start grace period is
// reported as ErrRecordingStartFailed.
func (e *Encoder) Start(ctx context.Context, task taskconfig.Task) (*Recording, error) {
	output := uniquePath(OutputPath(task))
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, services.Wrap(services.ErrRecordingStartFailed, "capture", "create save dir", filepath.Dir(output), err)
	}

	geom, err := ResolveGeometry(ctx, e.prober, task.MonitorIndex)
	if err != nil {
		logging.WarnWithContext(e.logger, "monitor probe failed; using fallback geometry", "monitor_probe_failed",
			logging.Int("monitor_index", task.MonitorIndex),
			logging.String("geometry", geom.String()),
			logging.String(logging.FieldErrorHint, "check xrandr availability or set capture.monitors"),
			logging.String(logging.FieldImpact, "recording may capture the wrong screen region"),
			logging.Error(err),
		)
	}

	args, err := BuildArgs(task, Input{Platform: e.platform, Display: e.display, Geometry: geom}, output)
	if err != nil {
		return nil, services.Wrap(services.ErrRecordingStartFailed, "capture", "build args", "", err)
	}

	proc, err := e.launcher.Launch(e.binary, args)
	if err != nil {
		return nil, services.Wrap(services.ErrRecordingStartFailed, "capture", "launch ffmpeg", e.binary, err)
	}
	rec := &Recording{
		Output:    output,
		Args:      args,
		Geometry:  geom,
		StartedAt: time.Now(),
		proc:      proc,
		exited:    make(chan struct{}),
	}
	go rec.watch()

	if e.startGrace > 0 {
		grace := time.NewTimer(e.startGrace)
		defer grace.Stop()
		select {
		case <-rec.exited:
			return nil, services.Wrap(services.ErrRecordingStartFailed, "capture", "launch ffmpeg",
				"encoder exited immediately: "+strings.Join(proc.Tail(), " | "), rec.Err())
		case <-ctx.Done():
			_ = proc.Kill()
			return nil, services.Wrap(services.ErrRecordingStartFailed, "capture", "launch ffmpeg", "cancelled", ctx.Err())
		case <-grace.C:
		}
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Info("encoder started",
		logging.String(logging.FieldEventType, "encoder_started"),
		logging.Int("pid", proc.PID()),
		logging.String("output", output),
		logging.String("geometry", geom.String()),
	)
	logger.Debug("encoder command", logging.String("args", strings.Join(args, " ")))
	return rec, nil
}

// Stop asks the encoder to quit and waits up to the stop timeout before
// killing it. Stop on an exited or already stopping recording is a no-op.
func (e *Encoder) Stop(ctx context.Context, rec *Recording) error {
	if rec == nil || rec.proc == nil {
		return nil
	}
	rec.mu.Lock()
	already := rec.stopping
	rec.stopping = true
	rec.mu.Unlock()
	if already || rec.hasExited() {
		return nil
	}

	logger := logging.WithContext(ctx, e.logger)
	if err := rec.proc.Quit(); err != nil {
		logger.Debug("encoder quit request failed", logging.Error(err))
	}

	timer := time.NewTimer(e.stopTimeout)
	defer timer.Stop()
	select {
	case <-rec.exited:
		logger.Info("encoder stopped",
			logging.String(logging.FieldEventType, "encoder_stopped"),
			logging.String("output", rec.Output),
		)
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}

	killErr := rec.proc.Kill()
	<-rec.exited
	msg := fmt.Sprintf("encoder did not exit within %s; killed", e.stopTimeout)
	if killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
		return services.Wrap(services.ErrStopTimeout, "capture", "stop", msg, killErr)
	}
	return services.Wrap(services.ErrStopTimeout, "capture", "stop", msg, nil)
}

// uniquePath appends _2, _3, ... when path already exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

type execLauncher struct{}

func (execLauncher) Launch(binary string, args []string) (Process, error) {
	cmd := exec.Command(binary, args...) //nolint:gosec
	configureProcess(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	tail := &tailWriter{max: stderrTailLines}
	cmd.Stdout = io.Discard
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdin: stdin, tail: tail}, nil
}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	tail  *tailWriter
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Quit() error {
	if _, err := p.stdin.Write([]byte("q")); err != nil {
		return err
	}
	return p.stdin.Close()
}

func (p *execProcess) Kill() error { return killProcess(p.cmd) }

func (p *execProcess) Wait() error { return p.cmd.Wait() }

func (p *execProcess) Tail() []string { return p.tail.Lines() }

// tailWriter keeps the last max lines written to it.
type tailWriter struct {
	mu      sync.Mutex
	max     int
	partial string
	lines   []string
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data := w.partial + strings.ReplaceAll(string(p), "\r", "\n")
	parts := strings.Split(data, "\n")
	w.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		w.lines = append(w.lines, line)
		if len(w.lines) > w.max {
			w.lines = w.lines[len(w.lines)-w.max:]
		}
	}
	return len(p), nil
}

func (w *tailWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := append([]string(nil), w.lines...)
	if tail := strings.TrimSpace(w.partial); tail != "" {
		out = append(out, tail)
	}
	return out
}
