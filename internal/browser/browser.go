package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"webvideo/internal/capture"
	"webvideo/internal/config"
	"webvideo/internal/logging"
	"webvideo/internal/services"
	"webvideo/internal/taskconfig"
)

const (
	closeGrace        = 3 * time.Second
	keepAliveOffset   = 10
	defaultHTTPWindow = 5 * time.Second
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logging.NewComponentLogger(logger, "browser") }
}

// WithLauncher overrides how Chrome is started.
func WithLauncher(l Launcher) Option {
	return func(d *Driver) {
		if l != nil {
			d.launcher = l
		}
	}
}

// WithEndpoint points the driver at a DevTools HTTP endpoint other than
// http://127.0.0.1:<debug_port>.
func WithEndpoint(endpoint string) Option {
	return func(d *Driver) {
		if strings.TrimSpace(endpoint) != "" {
			d.endpoint = strings.TrimSpace(endpoint)
		}
	}
}

// WithMonitorProber sets the monitor source used for window placement.
func WithMonitorProber(p capture.MonitorProber) Option {
	return func(d *Driver) { d.prober = p }
}

// Driver owns at most one automated browser session.
type Driver struct {
	binary         string
	userDataDir    string
	port           int
	pageLoadWait   time.Duration
	keyDelay       time.Duration
	startupTimeout time.Duration
	endpoint       string
	httpClient     *http.Client
	launcher       Launcher
	prober         capture.MonitorProber
	logger         *slog.Logger

	mu   sync.Mutex
	sess *session
}

type session struct {
	conn     *cdpConn
	proc     Process
	targetID string
	windowID int
}

// New builds a driver from the browser configuration section.
func New(cfg config.Browser, opts ...Option) *Driver {
	d := &Driver{
		binary:         cfg.ChromeBinary,
		userDataDir:    cfg.UserDataDir,
		port:           cfg.DebugPort,
		pageLoadWait:   time.Duration(cfg.PageLoadWaitSeconds) * time.Second,
		keyDelay:       time.Duration(cfg.KeyDelayMillis) * time.Millisecond,
		startupTimeout: time.Duration(cfg.StartupTimeoutSeconds) * time.Second,
		endpoint:       fmt.Sprintf("http://127.0.0.1:%d", cfg.DebugPort),
		httpClient:     &http.Client{Timeout: defaultHTTPWindow},
		launcher:       execLauncher{},
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open launches or attaches to Chrome, places the window on the task's
// monitor, loads the task URL and presses the task's key sequence. Any
// failure is reported as ErrAutomationFailed and leaves no session open.
func (d *Driver) Open(ctx context.Context, task taskconfig.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sess != nil {
		d.closeLocked(ctx)
	}

	geom, err := capture.ResolveGeometry(ctx, d.prober, task.MonitorIndex)
	if err != nil {
		d.logger.Debug("monitor probe failed; using fallback placement", logging.Error(err))
	}

	sess, err := d.connect(ctx, geom)
	if err != nil {
		return services.Wrap(services.ErrAutomationFailed, "browser", "connect", "", err)
	}
	d.sess = sess

	if err := d.prepare(ctx, task, geom); err != nil {
		d.closeLocked(ctx)
		return services.Wrap(services.ErrAutomationFailed, "browser", "open page", task.URL, err)
	}
	logging.WithContext(ctx, d.logger).Info("browser ready",
		logging.String(logging.FieldEventType, "browser_opened"),
		logging.String("url", task.URL),
		logging.String("geometry", geom.String()),
	)
	return nil
}

func (d *Driver) connect(ctx context.Context, geom capture.Geometry) (*session, error) {
	sess := &session{}
	if _, err := d.version(ctx); err != nil {
		if strings.TrimSpace(d.binary) == "" {
			return nil, fmt.Errorf("devtools endpoint unavailable and no chrome binary configured: %w", err)
		}
		if d.userDataDir != "" {
			if err := os.MkdirAll(d.userDataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create chrome profile dir: %w", err)
			}
		}
		args := chromeArgs(d.port, d.userDataDir, geom.X, geom.Y, geom.Width, geom.Height)
		proc, err := d.launcher.Launch(d.binary, args)
		if err != nil {
			return nil, fmt.Errorf("launch %s: %w", d.binary, err)
		}
		sess.proc = proc
		d.logger.Debug("chrome launched", logging.String("binary", d.binary), logging.Int("port", d.port))
		if _, err := d.waitForEndpoint(ctx, d.startupTimeout); err != nil {
			_ = proc.Kill()
			return nil, err
		}
	}

	target, err := d.pageTarget(ctx)
	if err != nil {
		d.killProcess(sess)
		return nil, err
	}
	conn, err := dialCDP(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		d.killProcess(sess)
		return nil, err
	}
	sess.conn = conn
	sess.targetID = target.ID
	return sess, nil
}

func (d *Driver) prepare(ctx context.Context, task taskconfig.Task, geom capture.Geometry) error {
	conn := d.sess.conn
	var window struct {
		WindowID int `json:"windowId"`
	}
	if err := conn.Call(ctx, "Browser.getWindowForTarget", map[string]any{"targetId": d.sess.targetID}, &window); err != nil {
		d.logger.Debug("window lookup failed; skipping placement", logging.Error(err))
	} else {
		d.sess.windowID = window.WindowID
		d.placeWindow(ctx, geom)
	}

	if err := conn.Call(ctx, "Page.navigate", map[string]any{"url": task.URL}, nil); err != nil {
		return err
	}
	if err := sleepCtx(ctx, d.pageLoadWait); err != nil {
		return err
	}
	// Page loads can move the window; place it again before maximizing.
	d.placeWindow(ctx, geom)
	d.setWindowState(ctx, "maximized")

	for i, name := range KeySequence(task) {
		if i > 0 {
			if err := sleepCtx(ctx, d.keyDelay); err != nil {
				return err
			}
		}
		if err := d.sendKeyLocked(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) placeWindow(ctx context.Context, geom capture.Geometry) {
	if d.sess == nil || d.sess.windowID == 0 {
		return
	}
	d.setWindowState(ctx, "normal")
	bounds := map[string]any{"left": geom.X, "top": geom.Y, "width": geom.Width, "height": geom.Height}
	if err := d.sess.conn.Call(ctx, "Browser.setWindowBounds", map[string]any{"windowId": d.sess.windowID, "bounds": bounds}, nil); err != nil {
		d.logger.Debug("window placement failed", logging.Error(err))
	}
}

func (d *Driver) setWindowState(ctx context.Context, state string) {
	if d.sess == nil || d.sess.windowID == 0 {
		return
	}
	params := map[string]any{"windowId": d.sess.windowID, "bounds": map[string]any{"windowState": state}}
	if err := d.sess.conn.Call(ctx, "Browser.setWindowBounds", params, nil); err != nil {
		d.logger.Debug("window state change failed", logging.String("state", state), logging.Error(err))
	}
}

// SendKey presses and releases one key in the open page.
func (d *Driver) SendKey(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sess == nil {
		return services.Wrap(services.ErrAutomationFailed, "browser", "send key", "no browser session", nil)
	}
	if err := d.sendKeyLocked(ctx, name); err != nil {
		return services.Wrap(services.ErrAutomationFailed, "browser", "send key", name, err)
	}
	return nil
}

func (d *Driver) sendKeyLocked(ctx context.Context, name string) error {
	if strings.EqualFold(strings.TrimSpace(name), KeyBrowserFullscreen) && d.sess.windowID != 0 {
		d.setWindowState(ctx, "fullscreen")
		return nil
	}
	key, err := LookupKey(name)
	if err != nil {
		return err
	}
	down := map[string]any{
		"type":                  "keyDown",
		"key":                   key.Key,
		"code":                  key.Code,
		"windowsVirtualKeyCode": key.KeyCode,
		"nativeVirtualKeyCode":  key.KeyCode,
	}
	if key.Text != "" {
		down["text"] = key.Text
	}
	if err := d.sess.conn.Call(ctx, "Input.dispatchKeyEvent", down, nil); err != nil {
		return err
	}
	up := map[string]any{
		"type":                  "keyUp",
		"key":                   key.Key,
		"code":                  key.Code,
		"windowsVirtualKeyCode": key.KeyCode,
		"nativeVirtualKeyCode":  key.KeyCode,
	}
	if err := d.sess.conn.Call(ctx, "Input.dispatchKeyEvent", up, nil); err != nil {
		return err
	}
	d.logger.Debug("key sent", logging.String("key", key.Name))
	return nil
}

// Poke clicks near the top-left corner of the page so the stream does not
// treat the viewer as idle.
func (d *Driver) Poke(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sess == nil {
		return services.Wrap(services.ErrAutomationFailed, "browser", "poke", "no browser session", nil)
	}
	for _, event := range []string{"mouseMoved", "mousePressed", "mouseReleased"} {
		params := map[string]any{"type": event, "x": keepAliveOffset, "y": keepAliveOffset}
		if event != "mouseMoved" {
			params["button"] = "left"
			params["clickCount"] = 1
		}
		if err := d.sess.conn.Call(ctx, "Input.dispatchMouseEvent", params, nil); err != nil {
			return services.Wrap(services.ErrAutomationFailed, "browser", "poke", event, err)
		}
	}
	return nil
}

// IsOpen reports whether a browser session is active.
func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sess != nil
}

// Close leaves page fullscreen, closes the browser and releases the
// session. Closing without a session is a no-op.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sess == nil {
		return nil
	}
	if err := d.sendKeyLocked(ctx, "h"); err != nil {
		d.logger.Debug("exit fullscreen key failed", logging.Error(err))
	}
	d.closeLocked(ctx)
	return nil
}

func (d *Driver) closeLocked(ctx context.Context) {
	sess := d.sess
	d.sess = nil
	if sess == nil {
		return
	}
	if sess.conn != nil {
		method, params := "Target.closeTarget", map[string]any{"targetId": sess.targetID}
		if sess.proc != nil {
			method, params = "Browser.close", nil
		}
		callCtx, cancel := context.WithTimeout(ctx, closeGrace)
		if err := sess.conn.Call(callCtx, method, params, nil); err != nil {
			d.logger.Debug("browser close command failed", logging.String("method", method), logging.Error(err))
		}
		cancel()
		_ = sess.conn.Close()
	}
	if sess.proc != nil {
		select {
		case <-sess.proc.Done():
		case <-time.After(closeGrace):
			d.killProcess(sess)
		}
	}
	d.logger.Info("browser closed", logging.String(logging.FieldEventType, "browser_closed"))
}

func (d *Driver) killProcess(sess *session) {
	if sess == nil || sess.proc == nil {
		return
	}
	if err := sess.proc.Kill(); err != nil {
		d.logger.Debug("chrome kill failed", logging.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
