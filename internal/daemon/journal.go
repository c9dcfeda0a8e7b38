package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"webvideo/internal/history"
	"webvideo/internal/logging"
	"webvideo/internal/notifications"
	"webvideo/internal/orchestrator"
	"webvideo/internal/services"
)

const journalWriteBudget = 5 * time.Second

// journal records orchestrator transitions into history and forwards the
// user-facing ones to notifications.
type journal struct {
	store    *history.Store
	notifier notifications.Service
	logger   *slog.Logger

	// degraded holds automation failures seen before the session row exists.
	degraded map[string]error
}

func newJournal(store *history.Store, notifier notifications.Service, logger *slog.Logger) *journal {
	return &journal{
		store:    store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "journal"),
		degraded: make(map[string]error),
	}
}

// run drains transitions until the orchestrator closes the channel.
func (j *journal) run(transitions <-chan orchestrator.Transition) {
	for tr := range transitions {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteBudget)
		j.record(ctx, tr)
		cancel()
	}
}

func (j *journal) record(ctx context.Context, tr orchestrator.Transition) {
	logger := j.logger.With(
		logging.String(logging.FieldSessionID, tr.SessionID),
		logging.Uint64(logging.FieldGeneration, tr.Generation),
	)
	switch tr.Kind {
	case orchestrator.EventDegraded:
		j.degraded[tr.SessionID] = tr.Err
		j.publish(ctx, logger, notifications.EventAutomationDegraded, notifications.Payload{
			"url":   tr.Task.URL,
			"error": tr.Err,
		})
	case orchestrator.EventStarted:
		entry := history.Entry{
			SessionID:  tr.SessionID,
			Generation: tr.Generation,
			Trigger:    string(tr.Trigger),
			URL:        tr.Task.URL,
			OutputPath: tr.Output,
			Silent:     tr.Silent,
			StartedAt:  tr.StartedAt,
			Outcome:    history.OutcomeRecording,
		}
		err, degraded := j.degraded[tr.SessionID]
		if degraded {
			entry.ErrorKind = services.Kind(err)
			entry.ErrorMessage = errorText(err)
			delete(j.degraded, tr.SessionID)
		}
		if _, err := j.store.Insert(ctx, entry); err != nil {
			j.warnWrite(logger, err)
		}
		j.publish(ctx, logger, notifications.EventRecordingStarted, notifications.Payload{
			"url":      tr.Task.URL,
			"endsAt":   tr.EndsAt,
			"degraded": degraded,
		})
	case orchestrator.EventStartFailed:
		delete(j.degraded, tr.SessionID)
		entry := history.Entry{
			SessionID:    tr.SessionID,
			Generation:   tr.Generation,
			Trigger:      string(tr.Trigger),
			URL:          tr.Task.URL,
			Silent:       tr.Silent,
			StartedAt:    tr.At,
			EndedAt:      tr.At,
			Outcome:      history.OutcomeStartFailed,
			ErrorKind:    services.Kind(tr.Err),
			ErrorMessage: errorText(tr.Err),
		}
		if _, err := j.store.Insert(ctx, entry); err != nil {
			j.warnWrite(logger, err)
		}
		j.publish(ctx, logger, notifications.EventError, notifications.Payload{
			"context": "recording start",
			"error":   tr.Err,
		})
	case orchestrator.EventCompleted:
		outcome := history.OutcomeCompleted
		if errors.Is(tr.Err, services.ErrStopTimeout) {
			outcome = history.OutcomeStopTimeout
		}
		if err := j.store.Finish(ctx, tr.SessionID, tr.At, outcome, services.Kind(tr.Err), errorText(tr.Err)); err != nil {
			j.warnWrite(logger, err)
		}
		j.publish(ctx, logger, notifications.EventRecordingCompleted, notifications.Payload{
			"output":   tr.Output,
			"duration": tr.At.Sub(tr.StartedAt),
		})
	default:
		logger.Debug("session transition",
			logging.String(logging.FieldEventType, string(tr.Kind)),
			logging.String(logging.FieldState, tr.To.String()),
		)
	}
}

func (j *journal) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if j.notifier == nil {
		return
	}
	if err := j.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (j *journal) warnWrite(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "history write failed", "history_write_failed",
		logging.String(logging.FieldErrorHint, "check the state directory is writable"),
		logging.String(logging.FieldImpact, "session missing from history"),
		logging.Error(err),
	)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
