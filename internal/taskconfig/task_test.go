package taskconfig

import (
	"errors"
	"testing"
	"time"

	"webvideo/internal/recurrence"
	"webvideo/internal/services"
)

func TestRuleFromFlags(t *testing.T) {
	task := Default()
	if task.Rule().Enabled() {
		t.Fatal("expected default task to be non-recurring")
	}

	task.EnableRecurring = true
	task.RecurringDays.Monday = true
	task.RecurringDays.Wednesday = true
	if got := task.Rule(); got != recurrence.OnWeekdays(recurrence.Monday, recurrence.Wednesday) {
		t.Fatalf("unexpected rule %+v", got)
	}

	task.RecurringDays.Everyday = true
	if got := task.Rule(); got.Kind != recurrence.KindDaily {
		t.Fatalf("expected everyday to win, got %+v", got)
	}

	task.EnableRecurring = true
	task.RecurringDays = RecurringDays{}
	if task.Rule().Enabled() {
		t.Fatal("expected empty day set to disable recurrence")
	}
}

func TestWithRuleAllDaysSetsEveryday(t *testing.T) {
	all := recurrence.OnWeekdays(recurrence.Monday, recurrence.Tuesday, recurrence.Wednesday,
		recurrence.Thursday, recurrence.Friday, recurrence.Saturday, recurrence.Sunday)
	task := Default().WithRule(all)
	if !task.EnableRecurring || !task.RecurringDays.Everyday || !task.RecurringDays.Sunday {
		t.Fatalf("expected everyday flags, got %+v", task.RecurringDays)
	}
	task = task.WithRule(recurrence.None())
	if task.EnableRecurring || task.RecurringDays.Everyday || task.RecurringDays.Monday {
		t.Fatalf("expected flags cleared, got %+v", task)
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default task should validate: %v", err)
	}
	bad := Default()
	bad.DurationMinutes = 0
	if err := bad.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	bad = Default()
	bad.StartTime = "tomorrow evening"
	if err := bad.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for start time, got %v", err)
	}
}

func TestWithStartFormatsLocalLayout(t *testing.T) {
	ts := time.Date(2026, 3, 4, 7, 5, 9, 0, time.Local)
	if got := Default().WithStart(ts).StartTime; got != "2026-03-04 07:05:09" {
		t.Fatalf("unexpected start_time %q", got)
	}
	if got := Default().Duration(); got != time.Hour {
		t.Fatalf("unexpected duration %v", got)
	}
}
