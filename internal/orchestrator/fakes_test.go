package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"webvideo/internal/capture"
	"webvideo/internal/clock"
	"webvideo/internal/keepalive"
	"webvideo/internal/taskconfig"
)

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local) // a Monday

type fakeBrowser struct {
	mu        sync.Mutex
	openErr   error
	opens     int
	closes    int
	pokes     int
	open      bool
	maxActive int
	active    int
}

func (b *fakeBrowser) Open(context.Context, taskconfig.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	if b.openErr != nil {
		return b.openErr
	}
	b.open = true
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	return nil
}

func (b *fakeBrowser) Poke(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pokes++
	return nil
}

func (b *fakeBrowser) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	if b.open {
		b.open = false
		b.active--
	}
	return nil
}

func (b *fakeBrowser) counts() (opens, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens, b.closes
}

type fakeEncoder struct {
	mu        sync.Mutex
	startErr  error
	stopErr   error
	starts    int
	stops     int
	active    int
	maxActive int
	tasks     []taskconfig.Task
}

func (e *fakeEncoder) Start(_ context.Context, task taskconfig.Task) (*capture.Recording, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	e.tasks = append(e.tasks, task)
	if e.startErr != nil {
		return nil, e.startErr
	}
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	return &capture.Recording{Output: fmt.Sprintf("/videos/rec-%d.mkv", e.starts)}, nil
}

func (e *fakeEncoder) Stop(context.Context, *capture.Recording) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	e.active--
	return e.stopErr
}

func (e *fakeEncoder) snapshot() (starts, stops, active, maxActive int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts, e.stops, e.active, e.maxActive
}

type fakeKeepAlive struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

func (k *fakeKeepAlive) Start(keepalive.Target) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.starts++
	k.running = true
}

func (k *fakeKeepAlive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stops++
	k.running = false
}

func (k *fakeKeepAlive) isRunning() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

type memStore struct {
	mu    sync.Mutex
	task  taskconfig.Task
	saves int
}

func (s *memStore) Load() (taskconfig.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task, nil
}

func (s *memStore) Save(task taskconfig.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.task = task
	s.saves++
	return nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) current() taskconfig.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

type harness struct {
	t       testing.TB
	clk     *clock.Fake
	o       *Orchestrator
	browser *fakeBrowser
	encoder *fakeEncoder
	pulse   *fakeKeepAlive
	store   *memStore
	cancel  context.CancelFunc
	closed  bool
}

func newHarness(t testing.TB, task taskconfig.Task, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clk:     clock.NewFake(baseTime),
		browser: &fakeBrowser{},
		encoder: &fakeEncoder{},
		pulse:   &fakeKeepAlive{},
		store:   &memStore{task: task},
	}
	ids := 0
	all := append([]Option{
		WithClock(h.clk),
		WithSessionIDs(func() string {
			ids++
			return fmt.Sprintf("session-%d", ids)
		}),
	}, opts...)
	h.o = New(Deps{Browser: h.browser, Encoder: h.encoder, KeepAlive: h.pulse, Store: h.store}, all...)
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { _ = h.o.Run(ctx) }()
	<-h.o.started
	t.Cleanup(h.close)
	return h
}

func (h *harness) close() {
	if h.closed {
		return
	}
	h.closed = true
	h.cancel()
	<-h.o.Done()
}

// settleErr waits until no armed job is due and no stop is in flight.
func (h *harness) settleErr() error {
	deadline := time.Now().Add(3 * time.Second)
	for {
		busy := false
		err := h.o.call(context.Background(), func() error {
			now := h.clk.Now()
			for _, at := range h.o.jobs {
				if !at.After(now) {
					busy = true
				}
			}
			busy = busy || h.o.stopping
			return nil
		})
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("orchestrator did not settle")
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) settle() Snapshot {
	h.t.Helper()
	if err := h.settleErr(); err != nil {
		h.t.Fatalf("settle: %v", err)
	}
	return h.o.Snapshot()
}

func (h *harness) advance(d time.Duration) Snapshot {
	h.t.Helper()
	h.clk.Advance(d)
	return h.settle()
}

func taskAt(start time.Time, minutes int) taskconfig.Task {
	task := taskconfig.Default()
	task.URL = "https://live.example.com/room"
	task.DurationMinutes = minutes
	return task.WithStart(start)
}

func pendingIDs(s Snapshot) []string {
	ids := make([]string, 0, len(s.Pending))
	for _, p := range s.Pending {
		ids = append(ids, p.ID)
	}
	return ids
}
