package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// CronExpr renders the rule as a five-field cron expression firing at the
// hour and minute of at. Disabled rules return an empty string.
func (r Rule) CronExpr(at time.Time) string {
	if !r.Enabled() {
		return ""
	}
	dow := "*"
	if r.Kind == KindWeekdays && !r.Days.All() {
		days := r.Days.Days()
		fields := make([]string, len(days))
		for i, d := range days {
			fields[i] = strconv.Itoa(d.cronDay())
		}
		dow = strings.Join(fields, ",")
	}
	return fmt.Sprintf("%d %d * * %s", at.Minute(), at.Hour(), dow)
}

// Preview lists the next n start instants the rule would produce, starting
// from a cycle that begins at previousStart and ends at now. The first entry
// always equals Next(previousStart, rule, now).
func Preview(previousStart time.Time, rule Rule, now time.Time, n int) ([]time.Time, error) {
	if n <= 0 || !rule.Enabled() {
		return nil, nil
	}
	expr := rule.CronExpr(previousStart)
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("recurrence: invalid cron expression %q", expr)
	}

	first, ok := Next(previousStart, rule, now)
	if !ok {
		return nil, nil
	}
	out := make([]time.Time, 0, n)
	out = append(out, first)

	offset := time.Duration(previousStart.Second()) * time.Second
	ref := first.Truncate(time.Minute)
	for len(out) < n {
		tick, err := gronx.NextTickAfter(expr, ref, false)
		if err != nil {
			return out, fmt.Errorf("recurrence: next tick: %w", err)
		}
		out = append(out, tick.Add(offset))
		ref = tick
	}
	return out, nil
}
