package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"webvideo/internal/clock"
	"webvideo/internal/logging"
)

const maxSleepCap = 60 * time.Second

var (
	// ErrDuplicateID is returned when a job with the same id is already pending.
	ErrDuplicateID = errors.New("scheduler: duplicate job id")
	// ErrShutdown is returned by Schedule after Shutdown.
	ErrShutdown = errors.New("scheduler: shut down")
)

// Job describes a pending job for introspection.
type Job struct {
	ID string
	At time.Time
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithClock injects a custom clock (primarily for tests).
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for fire diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scheduler owns pending one-shot jobs and a single timer goroutine.
type Scheduler struct {
	clock  clock.Clock
	logger *slog.Logger

	mu   sync.Mutex
	jobs jobHeap
	byID map[string]*entry
	seq  uint64
	shut bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New creates a scheduler and starts its timer goroutine. The goroutine exits
// when ctx is cancelled or Shutdown is called.
func New(ctx context.Context, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   clock.Real(),
		logger:  logging.NewNop(),
		byID:    make(map[string]*entry),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run(ctx)
	return s
}

// Schedule arms fn to run once at the given instant. Instants in the past
// fire on the next loop iteration.
func (s *Scheduler) Schedule(id string, at time.Time, fn func()) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("scheduler: job id required")
	}
	if fn == nil {
		return errors.New("scheduler: job callback required")
	}
	s.mu.Lock()
	if s.shut {
		s.mu.Unlock()
		return ErrShutdown
	}
	if _, exists := s.byID[id]; exists {
		s.mu.Unlock()
		return ErrDuplicateID
	}
	s.seq++
	e := &entry{id: id, at: at, seq: s.seq, fn: fn}
	heap.Push(&s.jobs, e)
	s.byID[id] = e
	s.mu.Unlock()

	s.logger.Debug("job scheduled",
		logging.String(logging.FieldJobID, id),
		logging.String("at", at.Format(time.RFC3339)),
	)
	s.signal()
	return nil
}

// Cancel removes a pending job. Unknown ids are ignored.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	e, ok := s.byID[id]
	if ok {
		heap.Remove(&s.jobs, e.index)
		delete(s.byID, id)
	}
	s.mu.Unlock()
	if ok {
		s.logger.Debug("job cancelled", logging.String(logging.FieldJobID, id))
		s.signal()
	}
}

// When returns the trigger instant of a pending job.
func (s *Scheduler) When(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		return e.at, true
	}
	return time.Time{}, false
}

// Pending lists pending jobs ordered by trigger instant.
func (s *Scheduler) Pending() []Job {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	ordered := make([]*entry, len(s.jobs))
	copy(ordered, s.jobs)
	s.mu.Unlock()
	sort.Slice(ordered, func(i, j int) bool { return jobHeap(ordered).Less(i, j) })
	for _, e := range ordered {
		out = append(out, Job{ID: e.id, At: e.at})
	}
	return out
}

// Len reports the number of pending jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Shutdown drops all pending jobs and stops the timer goroutine. It is safe
// to call more than once and from within a job callback.
func (s *Scheduler) Shutdown() {
	s.once.Do(func() {
		s.mu.Lock()
		s.shut = true
		s.jobs = nil
		s.byID = make(map[string]*entry)
		s.mu.Unlock()
		close(s.done)
	})
}

// Done is closed once the timer goroutine has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.stopped)

	var timer clock.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		for _, e := range s.popDue() {
			if s.isShut() {
				return
			}
			s.logger.Debug("job fired", logging.String(logging.FieldJobID, e.id))
			e.fn()
		}

		if timer != nil {
			timer.Stop()
			timer = nil
		}
		var timerCh <-chan time.Time
		if next, ok := s.nextAt(); ok {
			if limit := s.clock.Now().Add(maxSleepCap); next.After(limit) {
				next = limit
			}
			timer = s.clock.TimerAt(next)
			timerCh = timer.C()
		}

		select {
		case <-ctx.Done():
			s.Shutdown()
			return
		case <-s.done:
			return
		case <-s.wake:
		case <-timerCh:
		}
	}
}

func (s *Scheduler) popDue() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var due []*entry
	for len(s.jobs) > 0 && !s.jobs[0].at.After(now) {
		e := heap.Pop(&s.jobs).(*entry)
		delete(s.byID, e.id)
		due = append(due, e)
	}
	return due
}

func (s *Scheduler) nextAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return time.Time{}, false
	}
	return s.jobs[0].at, true
}

func (s *Scheduler) isShut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shut
}
