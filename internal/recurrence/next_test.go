package recurrence

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// 2026-03-02 is a Monday.
var baseMonday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestNextNoneAndEmpty(t *testing.T) {
	prev := baseMonday.Add(20 * time.Hour)
	if _, ok := Next(prev, None(), prev); ok {
		t.Fatal("expected no occurrence for none rule")
	}
	if _, ok := Next(prev, OnWeekdays(), prev); ok {
		t.Fatal("expected no occurrence for empty weekday set")
	}
}

func TestNextDaily(t *testing.T) {
	prev := time.Date(2026, 3, 2, 20, 15, 30, 0, time.UTC)
	got, ok := Next(prev, Daily(), prev.Add(3*time.Hour))
	if !ok {
		t.Fatal("expected daily occurrence")
	}
	if want := prev.Add(24 * time.Hour); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextWeekdayScenario(t *testing.T) {
	rule := OnWeekdays(Monday, Wednesday)
	prev := baseMonday.Add(20 * time.Hour)
	now := baseMonday.Add(21 * time.Hour)

	first, ok := Next(prev, rule, now)
	if !ok {
		t.Fatal("expected occurrence")
	}
	wantFirst := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	if !first.Equal(wantFirst) {
		t.Fatalf("first = %v, want %v", first, wantFirst)
	}

	second, ok := Next(first, rule, first.Add(time.Hour))
	if !ok {
		t.Fatal("expected second occurrence")
	}
	wantSecond := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)
	if !second.Equal(wantSecond) {
		t.Fatalf("second = %v, want %v", second, wantSecond)
	}
}

func TestNextSingleDayWrapsAWeek(t *testing.T) {
	prev := baseMonday.Add(8 * time.Hour)
	got, ok := Next(prev, OnWeekdays(Monday), baseMonday.Add(9*time.Hour))
	if !ok {
		t.Fatal("expected occurrence")
	}
	if want := prev.AddDate(0, 0, 7); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextWeekdayProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("weekday rule lands on a selected day within a week", prop.ForAll(
		func(mask int, dayOffset int, nowSecs int, prevSecs int) bool {
			set := WeekdaySet(mask)
			now := baseMonday.AddDate(0, 0, dayOffset).Add(time.Duration(nowSecs) * time.Second)
			prev := baseMonday.Add(time.Duration(prevSecs) * time.Second)

			got, ok := Next(prev, Rule{Kind: KindWeekdays, Days: set}, now)
			if !ok || !got.After(now) {
				return false
			}
			if !set.Has(FromTime(got.Weekday())) {
				return false
			}
			if got.Hour() != prev.Hour() || got.Minute() != prev.Minute() || got.Second() != prev.Second() {
				return false
			}
			y, m, d := now.Date()
			today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
			gy, gm, gd := got.Date()
			ahead := int(time.Date(gy, gm, gd, 0, 0, 0, 0, time.UTC).Sub(today).Hours() / 24)
			if ahead < 1 || ahead > 7 {
				return false
			}
			for k := 1; k < ahead; k++ {
				if set.Has(FromTime(today.AddDate(0, 0, k).Weekday())) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 127),
		gen.IntRange(0, 400),
		gen.IntRange(0, 86399),
		gen.IntRange(0, 86399),
	))

	properties.Property("daily rule adds exactly one day", prop.ForAll(
		func(prevSecs int, lagSecs int) bool {
			prev := baseMonday.Add(time.Duration(prevSecs) * time.Second)
			got, ok := Next(prev, Daily(), prev.Add(time.Duration(lagSecs)*time.Second))
			return ok && got.Sub(prev) == 24*time.Hour
		},
		gen.IntRange(0, 86400*30),
		gen.IntRange(0, 86400),
	))

	properties.Property("disabled rules never produce an occurrence", prop.ForAll(
		func(prevSecs int) bool {
			prev := baseMonday.Add(time.Duration(prevSecs) * time.Second)
			_, okNone := Next(prev, None(), prev)
			_, okEmpty := Next(prev, OnWeekdays(), prev)
			return !okNone && !okEmpty
		},
		gen.IntRange(0, 86400*30),
	))

	properties.TestingRun(t)
}
