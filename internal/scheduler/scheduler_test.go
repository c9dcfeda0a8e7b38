package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"webvideo/internal/clock"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *recorder) fn(id string) func() {
	return func() {
		r.mu.Lock()
		r.fired = append(r.fired, id)
		r.mu.Unlock()
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newFakeScheduler(t *testing.T) (*Scheduler, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, WithClock(clk))
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s, clk
}

func TestScheduleAndFire(t *testing.T) {
	s, clk := newFakeScheduler(t)
	rec := &recorder{}

	if err := s.Schedule("a", epoch.Add(10*time.Second), rec.fn("a")); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	clk.Advance(9 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("job fired early: %v", got)
	}

	clk.Advance(time.Second)
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
	if s.Len() != 0 {
		t.Fatalf("expected fired job to be removed, %d pending", s.Len())
	}
}

func TestScheduleDuplicateID(t *testing.T) {
	s, _ := newFakeScheduler(t)
	if err := s.Schedule("start-1", epoch.Add(time.Minute), func() {}); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	err := s.Schedule("start-1", epoch.Add(2*time.Minute), func() {})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if at, ok := s.When("start-1"); !ok || !at.Equal(epoch.Add(time.Minute)) {
		t.Fatalf("expected original job to remain, got %v %v", at, ok)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s, clk := newFakeScheduler(t)
	rec := &recorder{}
	if err := s.Schedule("x", epoch.Add(time.Second), rec.fn("x")); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	s.Cancel("x")
	s.Cancel("x")
	s.Cancel("never-scheduled")

	clk.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("cancelled job fired: %v", got)
	}
	if err := s.Schedule("x", epoch.Add(2*time.Minute), rec.fn("x")); err != nil {
		t.Fatalf("expected id to be reusable after cancel: %v", err)
	}
}

func TestMissedJobsFireOnceInInstantOrder(t *testing.T) {
	s, clk := newFakeScheduler(t)
	rec := &recorder{}
	for _, job := range []struct {
		id string
		at time.Duration
	}{
		{"stop-1", 70 * time.Second},
		{"start-1", 10 * time.Second},
		{"tie-b", 40 * time.Second},
		{"later", 10 * time.Minute},
	} {
		if err := s.Schedule(job.id, epoch.Add(job.at), rec.fn(job.id)); err != nil {
			t.Fatalf("Schedule %s: %v", job.id, err)
		}
	}
	if err := s.Schedule("tie-c", epoch.Add(40*time.Second), rec.fn("tie-c")); err != nil {
		t.Fatalf("Schedule tie-c: %v", err)
	}

	clk.Advance(5 * time.Minute)
	waitFor(t, func() bool { return len(rec.snapshot()) == 4 })
	time.Sleep(20 * time.Millisecond)

	want := []string{"start-1", "tie-b", "tie-c", "stop-1"}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("fired %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fired %v, want %v", got, want)
		}
	}
	if pending := s.Pending(); len(pending) != 1 || pending[0].ID != "later" {
		t.Fatalf("unexpected pending jobs %+v", pending)
	}
}

func TestShutdownDropsJobs(t *testing.T) {
	s, clk := newFakeScheduler(t)
	rec := &recorder{}
	if err := s.Schedule("a", epoch.Add(time.Second), rec.fn("a")); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	s.Shutdown()
	s.Shutdown()
	<-s.Done()

	clk.Advance(time.Minute)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("job fired after shutdown: %v", got)
	}
	if err := s.Schedule("b", epoch.Add(time.Minute), rec.fn("b")); !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", err)
	}
}

func TestCallbackMayCancelAndSchedule(t *testing.T) {
	s, clk := newFakeScheduler(t)
	rec := &recorder{}
	err := s.Schedule("first", epoch.Add(time.Second), func() {
		rec.fn("first")()
		s.Cancel("first")
		if err := s.Schedule("second", epoch.Add(2*time.Second), rec.fn("second")); err != nil {
			t.Errorf("nested schedule failed: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	clk.Advance(time.Second)
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
	clk.Advance(time.Second)
	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
}

func TestRealClockFires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx)
	done := make(chan struct{})
	if err := s.Schedule("real", time.Now().Add(20*time.Millisecond), func() { close(done) }); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}
}
