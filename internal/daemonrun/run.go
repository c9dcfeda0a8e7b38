package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"webvideo/internal/browser"
	"webvideo/internal/capture"
	"webvideo/internal/config"
	"webvideo/internal/daemon"
	"webvideo/internal/history"
	"webvideo/internal/ipc"
	"webvideo/internal/keepalive"
	"webvideo/internal/logging"
	"webvideo/internal/notifications"
	"webvideo/internal/orchestrator"
	"webvideo/internal/taskconfig"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool

	// SocketPath overrides the IPC socket location from config.
	SocketPath string
}

// Run starts the webvideo daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("webvideo-%s.log", stamp))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		RunID:            runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var debugLogPath string
	if opts.Diagnostic {
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		if err := os.MkdirAll(debugDir, 0o755); err != nil {
			return fmt.Errorf("create debug log directory: %w", err)
		}
		debugLogPath = filepath.Join(debugDir, fmt.Sprintf("webvideo-%s.log", stamp))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:            "debug",
			Format:           "json",
			OutputPaths:      []string{debugLogPath},
			ErrorOutputPaths: []string{debugLogPath},
			Development:      true,
			RunID:            runID,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
		}
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String("debug_log_path", debugLogPath),
		)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update webvideo.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "webvideo-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "webvideo-*.log", Exclude: []string{debugLogPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := history.Open(cfg)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	tasks := taskconfig.NewStore(afero.NewOsFs(), cfg.Paths.TaskFile)

	d, err := daemon.New(cfg, store, notifier, logger, NewFactory(cfg, tasks, logger))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the lock file and history database access"),
			logging.String(logging.FieldImpact, "scheduled recordings will not fire"),
		)
	}

	<-signalCtx.Done()
	logger.Info("webvideo daemon shutting down")
	return nil
}

// NewFactory returns a daemon.Factory that assembles a fresh orchestrator
// with its browser, encoder and keep-alive collaborators on every call.
func NewFactory(cfg *config.Config, tasks orchestrator.TaskStore, logger *slog.Logger) daemon.Factory {
	return func() *orchestrator.Orchestrator {
		prober := MonitorProber(cfg)
		encoder := capture.NewEncoder(cfg.Capture.FFmpegBinary, cfg.Capture.Platform, cfg.Capture.Display,
			capture.WithMonitorProber(prober),
			capture.WithStopTimeout(time.Duration(cfg.Capture.StopTimeoutSeconds)*time.Second),
			capture.WithLogger(logger),
		)
		driver := browser.New(cfg.Browser,
			browser.WithMonitorProber(prober),
			browser.WithLogger(logger),
		)
		pulser := keepalive.New(time.Duration(cfg.Browser.KeepAliveIntervalSeconds)*time.Second, logger)

		return orchestrator.New(orchestrator.Deps{
			Browser:   driver,
			Encoder:   encoder,
			KeepAlive: pulser,
			Store:     tasks,
		},
			orchestrator.WithLogger(logger),
			orchestrator.WithExtendStep(time.Duration(cfg.Orchestrator.ExtendMinutes)*time.Minute),
			orchestrator.WithDebounceWindow(time.Duration(cfg.Orchestrator.DebounceMillis)*time.Millisecond),
		)
	}
}

// MonitorProber prefers monitors pinned in config and falls back to xrandr.
func MonitorProber(cfg *config.Config) capture.MonitorProber {
	if len(cfg.Capture.Monitors) > 0 {
		monitors := make(capture.StaticMonitors, 0, len(cfg.Capture.Monitors))
		for _, m := range cfg.Capture.Monitors {
			monitors = append(monitors, capture.Geometry{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height})
		}
		return monitors
	}
	return capture.XrandrProber{Binary: cfg.Capture.XrandrBinary, Display: cfg.Capture.Display}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "webvideo.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := cfg.Capture.FFmpegBinary
	chrome := cfg.Browser.ChromeBinary
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.Bool("chrome_available", binaryAvailable(chrome)),
		logging.String("chrome_binary", chrome),
		logging.String("capture_platform", cfg.Capture.Platform),
		logging.Int("pinned_monitors", len(cfg.Capture.Monitors)),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("api_enabled", strings.TrimSpace(cfg.API.Bind) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
