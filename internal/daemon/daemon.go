package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"webvideo/internal/config"
	"webvideo/internal/deps"
	"webvideo/internal/history"
	"webvideo/internal/logging"
	"webvideo/internal/notifications"
	"webvideo/internal/orchestrator"
	"webvideo/internal/recurrence"
	"webvideo/internal/taskconfig"
)

// ErrStopped is returned by session calls while the orchestrator is stopped.
var ErrStopped = errors.New("recording orchestrator is stopped; run `webvideo start`")

// Factory builds a fresh orchestrator for each Start.
type Factory func() *orchestrator.Orchestrator

// Daemon coordinates the recording orchestrator and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	history  *history.Store
	notifier notifications.Service
	build    Factory
	depCheck func() []deps.Status
	now      func() time.Time

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu          sync.Mutex
	running     atomic.Bool
	orch        *orchestrator.Orchestrator
	cancel      context.CancelFunc
	journalDone chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Session       orchestrator.Snapshot
	HistoryDBPath string
	LockFilePath  string
	TaskFilePath  string
	Dependencies  []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *history.Store, notifier notifications.Service, logger *slog.Logger, build Factory) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || build == nil {
		return nil, errors.New("daemon requires config, history store, logger, and orchestrator factory")
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		history:  store,
		notifier: notifier,
		build:    build,
		now:      time.Now,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.depCheck = func() []deps.Status {
		statuses := deps.CheckBinaries(deps.Requirements(cfg))
		return append(statuses, deps.CheckFFmpegDevice(context.Background(), cfg.Capture.FFmpegBinary, cfg.Capture.Platform, nil))
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, closes history rows a crash left open,
// and launches the orchestrator.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another webvideo daemon instance is already running")
	}

	now := d.now()
	if n, err := d.history.MarkInterrupted(ctx, now); err != nil {
		logging.WarnWithContext(d.logger, "failed to close interrupted sessions", "history_repair_failed",
			logging.String(logging.FieldImpact, "history may show stale recording rows"),
			logging.Error(err),
		)
	} else if n > 0 {
		d.logger.Info("interrupted sessions closed", logging.Int64("count", n))
	}
	if days := d.cfg.Logging.RetentionDays; days > 0 {
		if _, err := d.history.Prune(ctx, now.AddDate(0, 0, -days)); err != nil {
			d.logger.Debug("history prune failed", logging.Error(err))
		}
	}

	orch := d.build()
	transitions, _ := orch.Subscribe()
	runCtx, cancel := context.WithCancel(ctx)

	j := newJournal(d.history, d.notifier, d.logger)
	journalDone := make(chan struct{})
	go func() {
		defer close(journalDone)
		j.run(transitions)
	}()
	go func() {
		if err := orch.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "orchestrator exited", "orchestrator_failed", logging.Error(err))
		}
	}()

	if err := d.api.start(); err != nil {
		logging.WarnWithContext(d.logger, "http api unavailable", "api_start_failed",
			logging.String(logging.FieldErrorHint, "check api.bind in config.toml"),
			logging.String(logging.FieldImpact, "status is only available over the socket"),
			logging.Error(err),
		)
	}

	d.orch = orch
	d.cancel = cancel
	d.journalDone = journalDone
	d.running.Store(true)
	d.logger.Info("webvideo daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the orchestrator, stopping an active recording, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.orch != nil {
		<-d.orch.Done()
	}
	if d.journalDone != nil {
		<-d.journalDone
		d.journalDone = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("webvideo daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

func (d *Daemon) current() (*orchestrator.Orchestrator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() || d.orch == nil {
		return nil, ErrStopped
	}
	return d.orch, nil
}

// Schedule arms task.
func (d *Daemon) Schedule(ctx context.Context, task taskconfig.Task) error {
	orch, err := d.current()
	if err != nil {
		return err
	}
	return orch.Schedule(ctx, task)
}

// BeginNow starts recording the stored task immediately.
func (d *Daemon) BeginNow(ctx context.Context) error {
	orch, err := d.current()
	if err != nil {
		return err
	}
	return orch.BeginNow(ctx)
}

// StopRecording cancels a countdown or stops the active recording.
func (d *Daemon) StopRecording(ctx context.Context) error {
	orch, err := d.current()
	if err != nil {
		return err
	}
	return orch.Stop(ctx)
}

// Extend pushes the end of the active recording out by one step.
func (d *Daemon) Extend(ctx context.Context) (time.Time, error) {
	orch, err := d.current()
	if err != nil {
		return time.Time{}, err
	}
	return orch.Extend(ctx)
}

// Press forwards a manual start control press.
func (d *Daemon) Press(ctx context.Context) error {
	orch, err := d.current()
	if err != nil {
		return err
	}
	return orch.Press(ctx)
}

// Task returns the stored task.
func (d *Daemon) Task(ctx context.Context) (taskconfig.Task, error) {
	orch, err := d.current()
	if err != nil {
		return taskconfig.Task{}, err
	}
	return orch.Task(ctx)
}

// UpdateTask replaces the stored task without arming it.
func (d *Daemon) UpdateTask(ctx context.Context, task taskconfig.Task) error {
	orch, err := d.current()
	if err != nil {
		return err
	}
	return orch.UpdateTask(ctx, task)
}

// Session returns the current session snapshot. A stopped daemon reports
// an idle snapshot.
func (d *Daemon) Session() orchestrator.Snapshot {
	orch, err := d.current()
	if err != nil {
		return orchestrator.Snapshot{}
	}
	return orch.Snapshot()
}

// History returns up to limit journaled sessions, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return d.history.List(ctx, limit)
}

// Preview lists the next n start instants of the stored task.
func (d *Daemon) Preview(ctx context.Context, n int) ([]time.Time, error) {
	task, err := d.Task(ctx)
	if err != nil {
		return nil, err
	}
	return PreviewTask(task, d.now(), n)
}

// PreviewTask lists the next n start instants of task as seen at now. A
// future start_time is the first entry; later entries follow the task's
// recurrence rule.
func PreviewTask(task taskconfig.Task, now time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	start, err := task.Start(now.Location())
	if err != nil {
		return nil, err
	}
	rule := task.Rule()
	if start.After(now) {
		rest, err := recurrence.Preview(start, rule, start, n-1)
		if err != nil {
			return nil, err
		}
		return append([]time.Time{start}, rest...), nil
	}
	return recurrence.Preview(start, rule, now, n)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Session:       d.Session(),
		HistoryDBPath: d.history.Path(),
		LockFilePath:  d.lockPath,
		TaskFilePath:  d.cfg.Paths.TaskFile,
	}
	if d.depCheck != nil {
		status.Dependencies = d.depCheck()
	}
	return status
}

// Now returns the daemon's wall clock reading.
func (d *Daemon) Now() time.Time {
	return d.now()
}
