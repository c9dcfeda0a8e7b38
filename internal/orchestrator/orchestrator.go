package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"webvideo/internal/capture"
	"webvideo/internal/clock"
	"webvideo/internal/debounce"
	"webvideo/internal/keepalive"
	"webvideo/internal/logging"
	"webvideo/internal/scheduler"
	"webvideo/internal/services"
	"webvideo/internal/taskconfig"
)

const (
	inboxSize          = 64
	subscriberBuffer   = 32
	defaultExtendStep  = time.Minute
	browserCloseBudget = 15 * time.Second
)

var (
	// ErrClosed is returned by calls made after Run has exited.
	ErrClosed = errors.New("orchestrator: closed")
	// ErrNotRunning is returned by calls made before Run has started.
	ErrNotRunning = errors.New("orchestrator: not running")
)

// Browser opens the stream page and drives it.
type Browser interface {
	Open(ctx context.Context, task taskconfig.Task) error
	Poke(ctx context.Context) error
	Close(ctx context.Context) error
}

// Encoder starts and stops capture processes.
type Encoder interface {
	Start(ctx context.Context, task taskconfig.Task) (*capture.Recording, error)
	Stop(ctx context.Context, rec *capture.Recording) error
}

// KeepAlive pulses the open page while recording.
type KeepAlive interface {
	Start(target keepalive.Target)
	Stop()
}

// TaskStore persists the task record.
type TaskStore interface {
	Load() (taskconfig.Task, error)
	Save(task taskconfig.Task) error
}

// Deps bundles the collaborators.
type Deps struct {
	Browser   Browser
	Encoder   Encoder
	KeepAlive KeepAlive
	Store     TaskStore
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects a custom clock (primarily for tests).
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.NewComponentLogger(logger, "orchestrator") }
}

// WithExtendStep sets how much each Extend adds.
func WithExtendStep(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.extendStep = d
		}
	}
}

// WithDebounceWindow sets the double-press window used by Press.
func WithDebounceWindow(d time.Duration) Option {
	return func(o *Orchestrator) { o.debouncer = debounce.New(d) }
}

// WithLocation sets the zone start_time is interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newID = next
		}
	}
}

// Orchestrator is the recording session state machine.
type Orchestrator struct {
	deps       Deps
	clock      clock.Clock
	logger     *slog.Logger
	extendStep time.Duration
	debouncer  *debounce.Debouncer
	loc        *time.Location
	newID      func() string

	inbox   chan func()
	started chan struct{}
	quit    chan struct{}
	stopped chan struct{}
	runOnce sync.Once

	snapMu sync.RWMutex
	snap   Snapshot

	subMu   sync.Mutex
	subs    map[int]chan Transition
	nextSub int
	closed  bool

	workers sync.WaitGroup

	// Owned by the Run goroutine.
	ctx         context.Context
	sched       *scheduler.Scheduler
	state       State
	gen         uint64
	task        taskconfig.Task
	sessionID   string
	trigger     Trigger
	cycleStart  time.Time
	startedAt   time.Time
	endsAt      time.Time
	rec         *capture.Recording
	browserOpen bool
	pulsing     bool
	silent      bool
	stopping    bool
	lastErr     error
	jobs        map[string]time.Time
	stopWaiters []chan struct{}
}

// New builds an orchestrator. Call Run to start the owner loop.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:       deps,
		clock:      clock.Real(),
		logger:     logging.NewComponentLogger(nil, "orchestrator"),
		extendStep: defaultExtendStep,
		debouncer:  debounce.New(debounce.DefaultWindow),
		loc:        time.Local,
		newID:      uuid.NewString,
		inbox:      make(chan func(), inboxSize),
		started:    make(chan struct{}),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		subs:       make(map[int]chan Transition),
		jobs:       make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run loads the stored task, resumes an armed schedule and processes
// commands until ctx is cancelled. An active recording is stopped before
// Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	first := false
	o.runOnce.Do(func() { first = true })
	if !first {
		return errors.New("orchestrator: Run called twice")
	}
	defer close(o.stopped)

	o.ctx = ctx
	o.sched = scheduler.New(ctx, scheduler.WithClock(o.clock), scheduler.WithLogger(logging.NewComponentLogger(o.logger, "scheduler")))
	defer o.sched.Shutdown()

	o.loadTask()
	o.resume()
	o.publish()
	close(o.started)

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case fn := <-o.inbox:
			fn()
			o.publish()
		}
	}
}

// Done is closed once Run has returned.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.stopped
}

// post queues fn for the owner loop. It reports false once the loop has
// begun shutting down.
func (o *Orchestrator) post(fn func()) bool {
	select {
	case <-o.quit:
		return false
	default:
	}
	select {
	case o.inbox <- fn:
		return true
	case <-o.quit:
		return false
	}
}

// call runs fn on the owner loop and waits for its result.
func (o *Orchestrator) call(ctx context.Context, fn func() error) error {
	select {
	case <-o.started:
	case <-o.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ErrNotRunning
	}
	reply := make(chan error, 1)
	if !o.post(func() {
		err := fn()
		o.publish()
		reply <- err
	}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-o.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel of transitions and a function that ends the
// subscription. Slow subscribers miss transitions rather than blocking the
// owner loop.
func (o *Orchestrator) Subscribe() (<-chan Transition, func()) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	ch := make(chan Transition, subscriberBuffer)
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.subMu.Lock()
			defer o.subMu.Unlock()
			if sub, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(sub)
			}
		})
	}
}

func (o *Orchestrator) emit(kind EventKind, from State, err error) {
	tr := Transition{
		Kind:       kind,
		From:       from,
		To:         o.state,
		At:         o.clock.Now(),
		SessionID:  o.sessionID,
		Generation: o.gen,
		Trigger:    o.trigger,
		Task:       o.task,
		Silent:     o.silent,
		StartedAt:  o.startedAt,
		EndsAt:     o.endsAt,
		NextStart:  o.jobs[startJobID(o.gen)],
		Err:        err,
	}
	if o.rec != nil {
		tr.Output = o.rec.Output
	}
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- tr:
		default:
			o.logger.Debug("subscriber lagging; transition dropped", logging.String("kind", string(kind)))
		}
	}
}

func (o *Orchestrator) closeSubscribers() {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	o.closed = true
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}

// Snapshot returns the state last published by the owner loop.
func (o *Orchestrator) Snapshot() Snapshot {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()
	snap := o.snap
	snap.Pending = append([]PendingJob(nil), o.snap.Pending...)
	return snap
}

func (o *Orchestrator) publish() {
	snap := Snapshot{
		State:       o.state,
		Generation:  o.gen,
		SessionID:   o.sessionID,
		Trigger:     o.trigger,
		Task:        o.task,
		NextStart:   o.jobs[startJobID(o.gen)],
		StartedAt:   o.startedAt,
		EndsAt:      o.endsAt,
		Silent:      o.silent,
		BrowserOpen: o.browserOpen,
		Stopping:    o.stopping,
	}
	if o.rec != nil {
		snap.Output = o.rec.Output
	}
	if o.lastErr != nil {
		snap.LastError = o.lastErr.Error()
		snap.LastErrorKind = services.Kind(o.lastErr)
	}
	for id, at := range o.jobs {
		snap.Pending = append(snap.Pending, PendingJob{ID: id, At: at})
	}
	sort.Slice(snap.Pending, func(i, j int) bool {
		if snap.Pending[i].At.Equal(snap.Pending[j].At) {
			return snap.Pending[i].ID < snap.Pending[j].ID
		}
		return snap.Pending[i].At.Before(snap.Pending[j].At)
	})
	o.snapMu.Lock()
	o.snap = snap
	o.snapMu.Unlock()
}

func (o *Orchestrator) sessionLogger() *slog.Logger {
	logger := o.logger.With(logging.Uint64(logging.FieldGeneration, o.gen))
	if o.sessionID != "" {
		logger = logger.With(logging.String(logging.FieldSessionID, o.sessionID))
	}
	return logger
}

// sessionContext tags parent with the current session so collaborators log
// under the same session id, generation and trigger.
func (o *Orchestrator) sessionContext(parent context.Context) context.Context {
	ctx := services.WithGeneration(parent, o.gen)
	ctx = services.WithSessionID(ctx, o.sessionID)
	return services.WithTrigger(ctx, string(o.trigger))
}

func startJobID(gen uint64) string { return fmt.Sprintf("start-%d", gen) }

func stopJobID(gen uint64) string { return fmt.Sprintf("stop-%d", gen) }
