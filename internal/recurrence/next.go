package recurrence

import "time"

// Next returns the start instant of the run that follows previousStart.
//
// Daily rules add 24 hours to previousStart. Weekday rules pick the first
// selected day strictly after now's weekday, wrapping into the following
// week, and keep previousStart's time of day on now's calendar. The boolean is
// false when the rule is disabled.
func Next(previousStart time.Time, rule Rule, now time.Time) (time.Time, bool) {
	switch rule.Kind {
	case KindDaily:
		return previousStart.Add(24 * time.Hour), true
	case KindWeekdays:
		ahead, ok := daysAhead(rule.Days, FromTime(now.Weekday()))
		if !ok {
			return time.Time{}, false
		}
		y, m, d := now.Date()
		return time.Date(y, m, d+ahead, previousStart.Hour(), previousStart.Minute(), previousStart.Second(), 0, now.Location()), true
	default:
		return time.Time{}, false
	}
}

// daysAhead returns 1..7; 7 means today is the only selected day.
func daysAhead(set WeekdaySet, today Weekday) (int, bool) {
	if set.Empty() {
		return 0, false
	}
	for d := today + 1; d <= Sunday; d++ {
		if set.Has(d) {
			return int(d - today), true
		}
	}
	for d := Monday; d <= today; d++ {
		if set.Has(d) {
			return int(d-today) + 7, true
		}
	}
	return 0, false
}
