package clock

import (
	"testing"
	"time"
)

func TestFakeTimerFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)
	timer := f.TimerAt(start.Add(10 * time.Second))

	f.Advance(5 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	f.Advance(5 * time.Second)
	select {
	case got := <-timer.C():
		if !got.Equal(start.Add(10 * time.Second)) {
			t.Fatalf("unexpected fire instant %v", got)
		}
	default:
		t.Fatal("expected timer to fire")
	}
	if f.Waiters() != 0 {
		t.Fatalf("expected no waiters, got %d", f.Waiters())
	}
}

func TestFakeTimerInPastFiresImmediately(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)
	timer := f.TimerAt(start.Add(-time.Minute))
	select {
	case <-timer.C():
	default:
		t.Fatal("expected immediate fire")
	}
}

func TestFakeTimerStop(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)
	timer := f.TimerAt(start.Add(time.Second))
	if !timer.Stop() {
		t.Fatal("expected Stop to report an armed timer")
	}
	if timer.Stop() {
		t.Fatal("expected second Stop to report false")
	}
	f.Advance(time.Minute)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestRealClockTimer(t *testing.T) {
	c := Real()
	timer := c.TimerAt(c.Now().Add(10 * time.Millisecond))
	select {
	case <-timer.C():
	case <-time.After(2 * time.Second):
		t.Fatal("real timer did not fire")
	}
}
