package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"webvideo/internal/api"
	"webvideo/internal/history"
	"webvideo/internal/logging"
	"webvideo/internal/orchestrator"
	"webvideo/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) (http.Handler, *history.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = token
	store := testsupport.MustOpenHistory(t, cfg)
	d, err := New(cfg, store, nil, logging.NewNop(), func() *orchestrator.Orchestrator {
		return orchestrator.New(orchestrator.Deps{})
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.api == nil {
		t.Fatal("expected api server when bind is configured")
	}
	d.depCheck = nil
	return d.api.handler, store
}

func TestAPIServerRequiresToken(t *testing.T) {
	handler, _ := newTestAPI(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected auth challenge and request id headers, got %v", w.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Request-ID", "req-42")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	var resp api.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session.State != "idle" {
		t.Fatalf("expected idle session, got %q", resp.Session.State)
	}
}

func TestAPIServerStatusAndHistory(t *testing.T) {
	handler, store := newTestAPI(t, "")
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if _, err := store.Insert(context.Background(), history.Entry{SessionID: "h1", StartedAt: start, Outcome: history.OutcomeCompleted, EndedAt: start.Add(time.Hour)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Running || status.HistoryDBPath == "" {
		t.Fatalf("unexpected status %+v", status)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	var list api.HistoryListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(list.Entries) != 1 || list.Entries[0].DurationSeconds != 3600 {
		t.Fatalf("unexpected history %+v", list.Entries)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestAPIServerActionsWhileStopped(t *testing.T) {
	handler, _ := newTestAPI(t, "")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/session/press", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while stopped, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/session/dance", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session/press", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET action, got %d", w.Code)
	}
}
