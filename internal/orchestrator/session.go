package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"webvideo/internal/capture"
	"webvideo/internal/debounce"
	"webvideo/internal/logging"
	"webvideo/internal/recurrence"
	"webvideo/internal/services"
	"webvideo/internal/taskconfig"
)

// Schedule arms task: a start job at its start instant and a stop job at
// start plus duration. The start must be strictly after now.
func (o *Orchestrator) Schedule(ctx context.Context, task taskconfig.Task) error {
	return o.call(ctx, func() error { return o.schedule(task, TriggerManual) })
}

// BeginNow starts a recording immediately with the stored task. From
// CountingDown it replaces the pending start.
func (o *Orchestrator) BeginNow(ctx context.Context) error {
	return o.call(ctx, func() error { return o.beginNow(TriggerManual) })
}

// Extend pushes the end of the active recording out by the extend step and
// returns the new end.
func (o *Orchestrator) Extend(ctx context.Context) (time.Time, error) {
	var end time.Time
	err := o.call(ctx, func() error {
		var err error
		end, err = o.extend()
		return err
	})
	return end, err
}

// Stop cancels a countdown or stops the active recording. For a recording
// it waits until the encoder has stopped and the browser has closed.
func (o *Orchestrator) Stop(ctx context.Context) error {
	var wait chan struct{}
	err := o.call(ctx, func() error {
		wait = o.stop(TriggerManual)
		return nil
	})
	if err != nil || wait == nil {
		return err
	}
	select {
	case <-wait:
		return nil
	case <-o.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Press is the manual start control. A second press inside the debounce
// window begins immediately. Otherwise a press extends a recording, begins
// a counting-down session, or schedules the stored task when idle.
func (o *Orchestrator) Press(ctx context.Context) error {
	return o.call(ctx, func() error {
		result := o.debouncer.Register(o.clock.Now())
		if o.state == StateRecording {
			_, err := o.extend()
			return err
		}
		if result == debounce.Immediate {
			return o.beginNow(TriggerDoublePress)
		}
		switch o.state {
		case StateCountingDown:
			return o.beginNow(TriggerManual)
		default:
			return o.schedule(o.task, TriggerManual)
		}
	})
}

// Task returns the stored task as the owner loop sees it.
func (o *Orchestrator) Task(ctx context.Context) (taskconfig.Task, error) {
	var task taskconfig.Task
	err := o.call(ctx, func() error {
		task = o.task
		return nil
	})
	return task, err
}

// UpdateTask replaces the stored task while idle.
func (o *Orchestrator) UpdateTask(ctx context.Context, task taskconfig.Task) error {
	return o.call(ctx, func() error {
		if o.state != StateIdle {
			return services.Wrap(services.ErrBusy, "orchestrator", "update task", "session is "+o.state.String(), nil)
		}
		if err := task.Validate(); err != nil {
			return err
		}
		o.task = task.WithArmed(false)
		o.persist()
		return nil
	})
}

func (o *Orchestrator) loadTask() {
	if o.deps.Store == nil {
		o.task = taskconfig.Default()
		return
	}
	task, err := o.deps.Store.Load()
	if err != nil {
		logging.WarnWithContext(o.logger, "task record unreadable; using defaults", "task_load_failed",
			logging.String(logging.FieldErrorHint, "fix or delete the task file"),
			logging.String(logging.FieldImpact, "stored schedule is ignored"),
			logging.Error(err),
		)
		o.task = taskconfig.Default()
		return
	}
	o.task = task
}

func (o *Orchestrator) persist() {
	if o.deps.Store == nil {
		return
	}
	if err := o.deps.Store.Save(o.task); err != nil {
		logging.WarnWithContext(o.sessionLogger(), "task record save failed", "task_save_failed",
			logging.String(logging.FieldErrorHint, "check permissions on the task file"),
			logging.String(logging.FieldImpact, "schedule will not survive a restart"),
			logging.Error(err),
		)
	}
}

// resume re-arms a task that was scheduled when the process last exited.
func (o *Orchestrator) resume() {
	if !o.task.Armed {
		return
	}
	now := o.clock.Now()
	start, err := o.task.Start(o.loc)
	if err != nil {
		o.task = o.task.WithArmed(false)
		o.persist()
		return
	}
	if !start.After(now) {
		next, ok := o.nextOccurrence(start, now)
		if !ok {
			o.logger.Info("armed task start has passed; not resuming",
				logging.String(logging.FieldEventType, "resume_skipped"),
				logging.String("start_time", o.task.StartTime),
			)
			o.task = o.task.WithArmed(false)
			o.persist()
			return
		}
		start = next
	}
	o.arm(o.task, start, TriggerResume)
}

func (o *Orchestrator) schedule(task taskconfig.Task, trigger Trigger) error {
	if o.state != StateIdle {
		return services.Wrap(services.ErrBusy, "orchestrator", "schedule", "session is "+o.state.String(), nil)
	}
	start, err := task.Start(o.loc)
	if err != nil {
		return services.Wrap(services.ErrInvalidStartTime, "orchestrator", "schedule", task.StartTime, err)
	}
	if !start.After(o.clock.Now()) {
		return services.Wrap(services.ErrInvalidStartTime, "orchestrator", "schedule",
			"start time must be after now: "+task.StartTime, nil)
	}
	if err := task.Validate(); err != nil {
		return err
	}
	o.arm(task, start, trigger)
	return nil
}

// arm bumps the generation, persists task with start and arms both jobs.
func (o *Orchestrator) arm(task taskconfig.Task, start time.Time, trigger Trigger) {
	from := o.state
	o.gen++
	o.task = task.WithStart(start).WithArmed(true)
	o.trigger = trigger
	o.sessionID = ""
	o.startedAt = time.Time{}
	o.endsAt = time.Time{}
	o.persist()

	gen := o.gen
	o.armJob(startJobID(gen), start, func(at time.Time) { o.onStartFired(gen, at) })
	o.armJob(stopJobID(gen), start.Add(task.Duration()), func(at time.Time) { o.onStopFired(gen, at) })
	o.state = StateCountingDown

	o.sessionLogger().Info("recording scheduled",
		logging.String(logging.FieldEventType, "recording_scheduled"),
		logging.String(logging.FieldTrigger, string(trigger)),
		logging.String(logging.FieldState, o.state.String()),
		logging.String("start", start.Format(time.RFC3339)),
		logging.Duration("duration", task.Duration()),
		logging.String("recurrence", task.Rule().String()),
	)
	o.emit(EventScheduled, from, nil)
}

// armJob registers a scheduler job whose callback posts back onto the
// owner loop with the instant it was armed for.
func (o *Orchestrator) armJob(id string, at time.Time, handle func(at time.Time)) {
	o.cancelJob(id)
	o.jobs[id] = at
	err := o.sched.Schedule(id, at, func() {
		o.post(func() { handle(at) })
	})
	if err != nil {
		delete(o.jobs, id)
		logging.ErrorWithContext(o.sessionLogger(), "job schedule failed", "job_schedule_failed",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) cancelJob(id string) {
	delete(o.jobs, id)
	o.sched.Cancel(id)
}

// claimJob reports whether a fired job is still the armed one, and forgets it.
func (o *Orchestrator) claimJob(id string, at time.Time) bool {
	armed, ok := o.jobs[id]
	if !ok || !armed.Equal(at) {
		return false
	}
	delete(o.jobs, id)
	return true
}

func (o *Orchestrator) onStartFired(gen uint64, at time.Time) {
	claimed := o.claimJob(startJobID(gen), at)
	if gen != o.gen || !claimed || o.state != StateCountingDown {
		o.logger.Debug("stale start job ignored", logging.Uint64(logging.FieldGeneration, gen))
		return
	}
	if err := o.begin(TriggerTimer); err != nil {
		o.logger.Debug("timed begin failed", logging.Error(err))
	}
}

func (o *Orchestrator) onStopFired(gen uint64, at time.Time) {
	claimed := o.claimJob(stopJobID(gen), at)
	if gen != o.gen || !claimed {
		o.logger.Debug("stale stop job ignored", logging.Uint64(logging.FieldGeneration, gen))
		return
	}
	if o.state == StateRecording {
		o.stop(TriggerTimer)
	}
}

func (o *Orchestrator) beginNow(trigger Trigger) error {
	switch o.state {
	case StateConfiguring, StateRecording:
		return services.Wrap(services.ErrBusy, "orchestrator", "begin now", "session is "+o.state.String(), nil)
	case StateCountingDown:
		o.cancelJob(startJobID(o.gen))
		o.cancelJob(stopJobID(o.gen))
	default:
		o.gen++
	}
	return o.begin(trigger)
}

// begin runs the configuring steps in order: browser, keep-alive, encoder,
// then the stop job.
func (o *Orchestrator) begin(trigger Trigger) error {
	from := o.state
	beginAt := o.clock.Now()
	if start, err := o.task.Start(o.loc); err == nil && trigger == TriggerTimer {
		o.cycleStart = start
	} else {
		o.cycleStart = beginAt
	}
	o.state = StateConfiguring
	o.trigger = trigger
	o.sessionID = o.newID()
	o.silent = o.task.SilentMode
	o.stopping = false
	o.lastErr = nil
	o.publish()
	o.emit(EventConfiguring, from, nil)
	logger := o.sessionLogger()
	logger.Info("recording session configuring",
		logging.String(logging.FieldEventType, "session_configuring"),
		logging.String(logging.FieldTrigger, string(trigger)),
		logging.Bool("silent", o.silent),
	)

	sctx := o.sessionContext(o.ctx)
	if !o.silent && o.deps.Browser != nil {
		if err := o.deps.Browser.Open(sctx, o.task); err != nil {
			o.lastErr = markAs(services.ErrAutomationFailed, "open browser", err)
			o.silent = true
			logging.WarnWithContext(logger, "browser automation failed; recording without page automation", "automation_degraded",
				logging.String(logging.FieldErrorHint, "check chrome_binary and the stream URL"),
				logging.String(logging.FieldImpact, "recording continues in silent mode"),
				logging.Error(err),
			)
			o.emit(EventDegraded, StateConfiguring, o.lastErr)
		} else {
			o.browserOpen = true
		}
	}

	if o.browserOpen && o.deps.KeepAlive != nil {
		o.deps.KeepAlive.Start(o.deps.Browser)
		o.pulsing = true
	}

	task := o.task.WithStart(beginAt)
	rec, err := o.deps.Encoder.Start(sctx, task)
	if err != nil {
		o.lastErr = markAs(services.ErrRecordingStartFailed, "start encoder", err)
		logging.ErrorWithContext(logger, "recording start failed", "recording_start_failed",
			logging.String(logging.FieldErrorHint, "check ffmpeg_binary, the capture device and save_path"),
			logging.Error(err),
		)
		o.teardownCollaborators()
		o.cancelJob(stopJobID(o.gen))
		o.state = StateIdle
		o.task = task.WithArmed(false)
		o.emit(EventStartFailed, StateConfiguring, o.lastErr)
		o.rearm()
		return o.lastErr
	}

	o.rec = rec
	o.task = task.WithArmed(false)
	o.startedAt = o.clock.Now()
	o.endsAt = o.startedAt.Add(o.task.Duration())
	o.armJob(stopJobID(o.gen), o.endsAt, o.stopHandler(o.gen))
	o.state = StateRecording
	o.persist()

	logger.Info("recording started",
		logging.String(logging.FieldEventType, "recording_started"),
		logging.String(logging.FieldState, o.state.String()),
		logging.String("output", rec.Output),
		logging.String("ends_at", o.endsAt.Format(time.RFC3339)),
		logging.Bool("silent", o.silent),
	)
	o.emit(EventStarted, StateConfiguring, nil)
	return nil
}

func (o *Orchestrator) stopHandler(gen uint64) func(time.Time) {
	return func(at time.Time) { o.onStopFired(gen, at) }
}

func (o *Orchestrator) extend() (time.Time, error) {
	if o.state != StateRecording {
		return time.Time{}, services.Wrap(services.ErrValidation, "orchestrator", "extend", "no recording in progress", nil)
	}
	if o.stopping {
		return o.endsAt, nil
	}
	o.endsAt = o.endsAt.Add(o.extendStep)
	o.armJob(stopJobID(o.gen), o.endsAt, o.stopHandler(o.gen))
	o.persist()
	o.sessionLogger().Info("recording extended",
		logging.String(logging.FieldEventType, "recording_extended"),
		logging.Duration("step", o.extendStep),
		logging.String("ends_at", o.endsAt.Format(time.RFC3339)),
	)
	o.emit(EventExtended, StateRecording, nil)
	return o.endsAt, nil
}

// stop cancels a countdown or starts the stop worker. The returned channel
// closes when the recording has fully stopped; it is nil when there is
// nothing to wait for.
func (o *Orchestrator) stop(trigger Trigger) chan struct{} {
	switch o.state {
	case StateCountingDown:
		o.cancelJob(startJobID(o.gen))
		o.cancelJob(stopJobID(o.gen))
		o.state = StateIdle
		o.task = o.task.WithArmed(false)
		o.persist()
		o.sessionLogger().Info("scheduled recording cancelled",
			logging.String(logging.FieldEventType, "recording_cancelled"),
			logging.String(logging.FieldTrigger, string(trigger)),
		)
		o.emit(EventCancelled, StateCountingDown, nil)
		return nil
	case StateRecording:
	default:
		return nil
	}

	wait := make(chan struct{})
	o.stopWaiters = append(o.stopWaiters, wait)
	if o.stopping {
		return wait
	}
	o.stopping = true
	o.trigger = trigger
	o.cancelJob(stopJobID(o.gen))
	if o.pulsing {
		o.deps.KeepAlive.Stop()
		o.pulsing = false
	}
	o.emit(EventStopping, StateRecording, nil)

	gen, rec, closeBrowser := o.gen, o.rec, o.browserOpen
	logger, sctx := o.sessionLogger(), o.sessionContext(context.Background())
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		err := o.stopCollaborators(sctx, logger, rec, closeBrowser)
		o.post(func() { o.finishStop(gen, err) })
	}()
	return wait
}

// stopCollaborators stops the encoder then closes the browser. Failures are
// logged and returned for the completion record; they never block Idle.
func (o *Orchestrator) stopCollaborators(ctx context.Context, logger *slog.Logger, rec *capture.Recording, closeBrowser bool) error {
	var stopErr error
	if rec != nil {
		if err := o.deps.Encoder.Stop(ctx, rec); err != nil {
			stopErr = err
			logging.WarnWithContext(logger, "encoder stop was not graceful", "encoder_stop_failed",
				logging.String(logging.FieldErrorHint, "inspect the output file; it may be truncated"),
				logging.String(logging.FieldImpact, "encoder was killed"),
				logging.Error(err),
			)
		}
	}
	if closeBrowser && o.deps.Browser != nil {
		closeCtx, cancel := context.WithTimeout(ctx, browserCloseBudget)
		defer cancel()
		if err := o.deps.Browser.Close(closeCtx); err != nil {
			logger.Debug("browser close failed", logging.Error(err))
		}
	}
	return stopErr
}

func (o *Orchestrator) finishStop(gen uint64, err error) {
	if gen != o.gen || o.state != StateRecording {
		return
	}
	logger := o.sessionLogger()
	if err != nil && errors.Is(err, services.ErrStopTimeout) {
		o.lastErr = err
	}
	o.state = StateIdle
	o.browserOpen = false
	o.stopping = false
	o.emit(EventCompleted, StateRecording, err)
	o.rec = nil
	logger.Info("recording completed",
		logging.String(logging.FieldEventType, "recording_completed"),
		logging.String(logging.FieldTrigger, string(o.trigger)),
		logging.Duration("recorded", o.clock.Now().Sub(o.startedAt)),
	)
	o.rearm()
	o.publish()
	for _, w := range o.stopWaiters {
		close(w)
	}
	o.stopWaiters = nil
}

// rearm schedules the next occurrence of a recurring task, or persists the
// task as unarmed.
func (o *Orchestrator) rearm() {
	now := o.clock.Now()
	next, ok := o.nextOccurrence(o.cycleStart, now)
	if !ok {
		o.task = o.task.WithArmed(false)
		o.persist()
		return
	}
	o.arm(o.task, next, TriggerRecurrence)
}

// nextOccurrence applies the task's recurrence rule. A daily start that
// already passed moves forward by whole days to the first one after now.
func (o *Orchestrator) nextOccurrence(prev, now time.Time) (time.Time, bool) {
	rule := o.task.Rule()
	next, ok := recurrence.Next(prev, rule, now)
	if !ok {
		return time.Time{}, false
	}
	if rule.Kind == recurrence.KindDaily && !next.After(now) {
		const day = 24 * time.Hour
		next = next.Add((now.Sub(next)/day + 1) * day)
	}
	if !next.After(now) {
		return time.Time{}, false
	}
	return next, true
}

func (o *Orchestrator) teardownCollaborators() {
	if o.pulsing {
		o.deps.KeepAlive.Stop()
		o.pulsing = false
	}
	if o.browserOpen {
		ctx, cancel := context.WithTimeout(context.Background(), browserCloseBudget)
		if err := o.deps.Browser.Close(ctx); err != nil {
			o.logger.Debug("browser close failed", logging.Error(err))
		}
		cancel()
		o.browserOpen = false
	}
}

// shutdown runs when Run's context ends. An active recording is stopped
// synchronously; a countdown stays persisted as armed so a restart resumes
// it.
func (o *Orchestrator) shutdown() {
	close(o.quit)
	if o.state == StateRecording && !o.stopping {
		o.trigger = TriggerShutdown
		if o.pulsing {
			o.deps.KeepAlive.Stop()
			o.pulsing = false
		}
		o.lastErr = o.stopCollaborators(o.sessionContext(context.Background()), o.sessionLogger(), o.rec, o.browserOpen)
	}
	o.workers.Wait()
	if o.state == StateRecording {
		o.state = StateIdle
		o.browserOpen = false
		o.stopping = false
		o.emit(EventCompleted, StateRecording, o.lastErr)
		o.rec = nil
		o.persist()
	}
	for _, w := range o.stopWaiters {
		close(w)
	}
	o.stopWaiters = nil
	o.publish()
	o.closeSubscribers()
	o.logger.Info("orchestrator stopped", logging.String(logging.FieldEventType, "orchestrator_stopped"))
}

// markAs tags err with marker unless it already carries it.
func markAs(marker error, op string, err error) error {
	if errors.Is(err, marker) {
		return err
	}
	return services.Wrap(marker, "orchestrator", op, "", err)
}
