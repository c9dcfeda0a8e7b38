package browser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"webvideo/internal/capture"
	"webvideo/internal/config"
	"webvideo/internal/services"
	"webvideo/internal/taskconfig"
)

// fakeDevTools serves the DevTools HTTP discovery endpoints and a page
// websocket that acknowledges every command.
type fakeDevTools struct {
	t      *testing.T
	srv    *httptest.Server
	failOn string

	mu    sync.Mutex
	calls []recordedCall
}

type recordedCall struct {
	Method string
	Params map[string]any
}

func newFakeDevTools(t *testing.T) *fakeDevTools {
	t.Helper()
	f := &fakeDevTools{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"Browser": "Chrome/130", "webSocketDebuggerUrl": f.wsURL()})
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"id": "svc", "type": "service_worker", "webSocketDebuggerUrl": f.wsURL()},
			{"id": "page-1", "type": "page", "url": "about:blank", "webSocketDebuggerUrl": f.wsURL()},
		})
	})
	mux.HandleFunc("/devtools/page/1", f.serveWS)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeDevTools) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/devtools/page/1"
}

func (f *fakeDevTools) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req struct {
			ID     int64          `json:"id"`
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Method: req.Method, Params: req.Params})
		f.mu.Unlock()

		reply := map[string]any{"id": req.ID, "result": map[string]any{}}
		switch {
		case req.Method == f.failOn:
			reply = map[string]any{"id": req.ID, "error": map[string]any{"code": -32000, "message": "boom"}}
		case req.Method == "Browser.getWindowForTarget":
			reply["result"] = map[string]any{"windowId": 7}
		}
		// Interleave an event to exercise event skipping.
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"method":"Page.frameNavigated","params":{}}`))
		out, _ := json.Marshal(reply)
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			return
		}
	}
}

func (f *fakeDevTools) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeDevTools) keyEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, c := range f.calls {
		if c.Method == "Input.dispatchKeyEvent" && c.Params["type"] == "keyDown" {
			keys = append(keys, c.Params["key"].(string))
		}
	}
	return keys
}

type panicLauncher struct{ t *testing.T }

func (l panicLauncher) Launch(string, []string) (Process, error) {
	l.t.Fatal("chrome should not be launched when the endpoint is reachable")
	return nil, nil
}

func newTestDriver(t *testing.T, f *fakeDevTools) *Driver {
	cfg := config.Default().Browser
	cfg.PageLoadWaitSeconds = 0
	cfg.KeyDelayMillis = 0
	return New(cfg,
		WithEndpoint(f.srv.URL),
		WithLauncher(panicLauncher{t: t}),
		WithMonitorProber(capture.StaticMonitors{{X: 0, Y: 0, Width: 1920, Height: 1080}}),
	)
}

func TestOpenNavigatesAndPressesKeys(t *testing.T) {
	f := newFakeDevTools(t)
	d := newTestDriver(t, f)
	task := taskconfig.Default()
	task.URL = "https://live.example.com/room"
	task.EnableBrowserFullscreen = true
	task.CustomKey1Enabled = true
	task.CustomKey1 = "m"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Open(ctx, task); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !d.IsOpen() {
		t.Fatal("expected open session")
	}
	methods := f.methods()
	if !slices.Contains(methods, "Page.navigate") {
		t.Fatalf("Page.navigate not called: %v", methods)
	}
	if got := f.keyEvents(); !slices.Equal(got, []string{"h", "p", "m"}) {
		t.Fatalf("key events = %v", got)
	}

	if err := d.Poke(ctx); err != nil {
		t.Fatalf("Poke: %v", err)
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.IsOpen() {
		t.Fatal("session should be released")
	}
	methods = f.methods()
	if methods[len(methods)-1] != "Target.closeTarget" {
		t.Fatalf("attached sessions close their target, got %v", methods[len(methods)-1])
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
}

func TestOpenFailureIsAutomationFailed(t *testing.T) {
	f := newFakeDevTools(t)
	f.failOn = "Page.navigate"
	d := newTestDriver(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.Open(ctx, taskconfig.Default())
	if !errors.Is(err, services.ErrAutomationFailed) {
		t.Fatalf("expected automation failure, got %v", err)
	}
	if d.IsOpen() {
		t.Fatal("failed open must not leave a session")
	}
}

func TestOpenWithoutEndpointOrBinary(t *testing.T) {
	cfg := config.Default().Browser
	cfg.ChromeBinary = ""
	d := New(cfg, WithEndpoint("http://127.0.0.1:1"))
	err := d.Open(context.Background(), taskconfig.Default())
	if !errors.Is(err, services.ErrAutomationFailed) {
		t.Fatalf("expected automation failure, got %v", err)
	}
}

func TestPokeWithoutSession(t *testing.T) {
	d := New(config.Default().Browser)
	if err := d.Poke(context.Background()); !errors.Is(err, services.ErrAutomationFailed) {
		t.Fatalf("expected automation failure, got %v", err)
	}
}
