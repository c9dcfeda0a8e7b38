package recurrence

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Weekday numbers days with Monday as 0 and Sunday as 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DayKeys lists the lowercase day names in Weekday order. They double as the
// task record keys under [recurring_days].
var DayKeys = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var titleCaser = cases.Title(language.English)

// FromTime converts a time.Weekday (Sunday=0) into a Monday-based Weekday.
func FromTime(w time.Weekday) Weekday {
	return Weekday((int(w) + 6) % 7)
}

// Valid reports whether d names a real day.
func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

// Key returns the lowercase record key for d.
func (d Weekday) Key() string {
	if !d.Valid() {
		return ""
	}
	return DayKeys[d]
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return titleCaser.String(DayKeys[d])
}

// cronDay maps to the cron day-of-week field where Sunday is 0.
func (d Weekday) cronDay() int {
	return (int(d) + 1) % 7
}

// WeekdaySet is a bitmask of selected days.
type WeekdaySet uint8

const allDays WeekdaySet = 1<<7 - 1

// NewWeekdaySet builds a set from the given days, ignoring invalid ones.
func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d Weekday) WeekdaySet {
	if !d.Valid() {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d Weekday) bool {
	return d.Valid() && s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool { return s&allDays == 0 }

// All reports whether every day of the week is selected.
func (s WeekdaySet) All() bool { return s&allDays == allDays }

// Days lists the selected days in Monday-first order.
func (s WeekdaySet) Days() []Weekday {
	out := make([]Weekday, 0, 7)
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	days := s.Days()
	if len(days) == 0 {
		return "none"
	}
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ",")
}

// Kind identifies the recurrence shape.
type Kind int

const (
	KindNone Kind = iota
	KindDaily
	KindWeekdays
)

// Rule describes how a task repeats.
type Rule struct {
	Kind Kind
	Days WeekdaySet
}

// None is the non-repeating rule.
func None() Rule { return Rule{Kind: KindNone} }

// Daily repeats every 24 hours after the previous start.
func Daily() Rule { return Rule{Kind: KindDaily, Days: allDays} }

// OnWeekdays repeats on the given days. An empty set never repeats.
func OnWeekdays(days ...Weekday) Rule {
	return Rule{Kind: KindWeekdays, Days: NewWeekdaySet(days...)}
}

// Enabled reports whether the rule can produce another occurrence.
func (r Rule) Enabled() bool {
	switch r.Kind {
	case KindDaily:
		return true
	case KindWeekdays:
		return !r.Days.Empty()
	default:
		return false
	}
}

func (r Rule) String() string {
	switch r.Kind {
	case KindDaily:
		return "everyday"
	case KindWeekdays:
		if r.Days.Empty() {
			return "none"
		}
		return r.Days.String()
	default:
		return "none"
	}
}

// ParseRule parses a comma separated day list such as "mon,wed". The words
// "everyday", "daily" and "all" select the daily rule, and an empty string or
// "none" disables recurrence. Listing all seven days also yields the daily rule.
func ParseRule(value string) (Rule, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch trimmed {
	case "", "none", "off":
		return None(), nil
	case "everyday", "daily", "all":
		return Daily(), nil
	}
	var set WeekdaySet
	for _, token := range strings.Split(trimmed, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		day, ok := parseDay(token)
		if !ok {
			return None(), fmt.Errorf("recurrence: unknown day %q", token)
		}
		set = set.With(day)
	}
	if set.Empty() {
		return None(), nil
	}
	if set.All() {
		return Daily(), nil
	}
	return Rule{Kind: KindWeekdays, Days: set}, nil
}

func parseDay(token string) (Weekday, bool) {
	for i, key := range DayKeys {
		if token == key || (len(token) >= 3 && strings.HasPrefix(key, token)) {
			return Weekday(i), true
		}
	}
	return 0, false
}
