package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"
)

const endpointPollInterval = 200 * time.Millisecond

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type targetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (d *Driver) getJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(d.endpoint, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("devtools %s %s: status %s", method, path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (d *Driver) version(ctx context.Context) (versionInfo, error) {
	var info versionInfo
	err := d.getJSON(ctx, http.MethodGet, "/json/version", &info)
	return info, err
}

// waitForEndpoint polls /json/version until it answers or timeout passes.
func (d *Driver) waitForEndpoint(ctx context.Context, timeout time.Duration) (versionInfo, error) {
	deadline := time.Now().Add(timeout)
	for {
		info, err := d.version(ctx)
		if err == nil {
			return info, nil
		}
		if time.Now().After(deadline) {
			return versionInfo{}, fmt.Errorf("devtools endpoint %s not ready after %s: %w", d.endpoint, timeout, err)
		}
		select {
		case <-ctx.Done():
			return versionInfo{}, ctx.Err()
		case <-time.After(endpointPollInterval):
		}
	}
}

// pageTarget returns the first page target, opening one when none exist.
func (d *Driver) pageTarget(ctx context.Context) (targetInfo, error) {
	var targets []targetInfo
	if err := d.getJSON(ctx, http.MethodGet, "/json/list", &targets); err != nil {
		return targetInfo{}, fmt.Errorf("list targets: %w", err)
	}
	for _, target := range targets {
		if target.Type == "page" && target.WebSocketDebuggerURL != "" {
			return target, nil
		}
	}
	var created targetInfo
	if err := d.getJSON(ctx, http.MethodPut, "/json/new?"+url.QueryEscape("about:blank"), &created); err != nil {
		return targetInfo{}, fmt.Errorf("open target: %w", err)
	}
	return created, nil
}

// Process is a launched browser.
type Process interface {
	Kill() error
	Done() <-chan struct{}
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(binary string, args []string) (Process, error)
}

type execLauncher struct{}

func (execLauncher) Launch(binary string, args []string) (Process, error) {
	cmd := exec.Command(binary, args...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	proc := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(proc.done)
	}()
	return proc, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }

func (p *execProcess) Done() <-chan struct{} { return p.done }

func chromeArgs(port int, userDataDir string, x, y, width, height int) []string {
	return []string{
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--user-data-dir=" + userDataDir,
		"--profile-directory=Default",
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-extensions",
		"--autoplay-policy=no-user-gesture-required",
		fmt.Sprintf("--window-position=%d,%d", x, y),
		fmt.Sprintf("--window-size=%d,%d", width, height),
		"--start-maximized",
		"about:blank",
	}
}
