package taskconfig

import (
	"fmt"
	"strings"
	"time"

	"webvideo/internal/recurrence"
	"webvideo/internal/services"
)

// TimeLayout is the start_time format, interpreted in local time.
const TimeLayout = "2006-01-02 15:04:05"

// RecurringDays mirrors the [recurring_days] table.
type RecurringDays struct {
	Monday    bool `toml:"monday"`
	Tuesday   bool `toml:"tuesday"`
	Wednesday bool `toml:"wednesday"`
	Thursday  bool `toml:"thursday"`
	Friday    bool `toml:"friday"`
	Saturday  bool `toml:"saturday"`
	Sunday    bool `toml:"sunday"`
	Everyday  bool `toml:"everyday"`
}

func (d RecurringDays) flags() [7]bool {
	return [7]bool{d.Monday, d.Tuesday, d.Wednesday, d.Thursday, d.Friday, d.Saturday, d.Sunday}
}

// Task is an immutable snapshot of the recording task. Methods return
// modified copies.
type Task struct {
	URL             string `toml:"douyin_url"`
	StartTime       string `toml:"start_time"`
	DurationMinutes int    `toml:"duration_minutes"`

	SavePath      string `toml:"save_path"`
	VideoFormat   string `toml:"video_format"`
	VideoCodec    string `toml:"video_codec"`
	Resolution    string `toml:"resolution"`
	MonitorIndex  int    `toml:"monitor_index"`
	AudioDevice   string `toml:"audio_device"`
	Framerate     int    `toml:"framerate"`
	RecordQuality string `toml:"record_quality"`

	SilentMode               bool   `toml:"silent_mode"`
	EnableFullscreen         bool   `toml:"enable_fullscreen"`
	EnableUnmute             bool   `toml:"enable_unmute"`
	EnableBrowserFullscreen  bool   `toml:"enable_browser_fullscreen"`
	EnableBilibiliFullscreen bool   `toml:"enable_bilibili_fullscreen"`
	CustomKey1Enabled        bool   `toml:"custom_key1_enabled"`
	CustomKey1               string `toml:"custom_key1"`
	CustomKey2Enabled        bool   `toml:"custom_key2_enabled"`
	CustomKey2               string `toml:"custom_key2"`

	EnableRecurring bool          `toml:"enable_recurring"`
	RecurringDays   RecurringDays `toml:"recurring_days"`

	// Armed marks a task that was scheduled when the daemon last saved it.
	Armed bool `toml:"armed"`
}

// RequiredKeys lists the top-level keys every stored record must carry.
var RequiredKeys = []string{
	"douyin_url", "start_time", "duration_minutes", "save_path", "video_format",
	"video_codec", "resolution", "monitor_index", "audio_device", "framerate",
	"record_quality", "silent_mode", "enable_fullscreen", "enable_unmute",
	"enable_browser_fullscreen", "enable_bilibili_fullscreen", "custom_key1_enabled",
	"custom_key1", "custom_key2_enabled", "custom_key2", "enable_recurring", "recurring_days",
}

// Default returns the record written when no task file exists.
func Default() Task {
	return Task{
		URL:              "https://live.douyin.com/547977714661",
		StartTime:        "2030-12-30 20:00:00",
		DurationMinutes:  60,
		SavePath:         "./videos",
		VideoFormat:      "mkv",
		VideoCodec:       "h264",
		Resolution:       "window",
		MonitorIndex:     0,
		AudioDevice:      "",
		Framerate:        15,
		RecordQuality:    "medium",
		EnableFullscreen: true,
		EnableUnmute:     true,
	}
}

// Start parses StartTime in loc.
func (t Task) Start(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(t.StartTime), loc)
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrValidation, "taskconfig", "parse start_time",
			fmt.Sprintf("expected %q", TimeLayout), err)
	}
	return ts, nil
}

// WithStart returns a copy with StartTime set to ts.
func (t Task) WithStart(ts time.Time) Task {
	t.StartTime = ts.Format(TimeLayout)
	return t
}

// WithArmed returns a copy with the armed marker set.
func (t Task) WithArmed(armed bool) Task {
	t.Armed = armed
	return t
}

// Duration returns the recording length.
func (t Task) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// Rule derives the recurrence rule from the recurring flags. The everyday
// flag wins over individual days.
func (t Task) Rule() recurrence.Rule {
	if !t.EnableRecurring {
		return recurrence.None()
	}
	if t.RecurringDays.Everyday {
		return recurrence.Daily()
	}
	var days []recurrence.Weekday
	for i, on := range t.RecurringDays.flags() {
		if on {
			days = append(days, recurrence.Weekday(i))
		}
	}
	return recurrence.OnWeekdays(days...)
}

// WithRule returns a copy whose recurring flags express rule. Selecting all
// seven days sets everyday, and everyday checks every day.
func (t Task) WithRule(rule recurrence.Rule) Task {
	t.RecurringDays = RecurringDays{}
	switch {
	case rule.Kind == recurrence.KindDaily || (rule.Kind == recurrence.KindWeekdays && rule.Days.All()):
		t.EnableRecurring = true
		t.RecurringDays = RecurringDays{
			Monday: true, Tuesday: true, Wednesday: true, Thursday: true,
			Friday: true, Saturday: true, Sunday: true, Everyday: true,
		}
	case rule.Kind == recurrence.KindWeekdays && !rule.Days.Empty():
		t.EnableRecurring = true
		t.RecurringDays = RecurringDays{
			Monday:    rule.Days.Has(recurrence.Monday),
			Tuesday:   rule.Days.Has(recurrence.Tuesday),
			Wednesday: rule.Days.Has(recurrence.Wednesday),
			Thursday:  rule.Days.Has(recurrence.Thursday),
			Friday:    rule.Days.Has(recurrence.Friday),
			Saturday:  rule.Days.Has(recurrence.Saturday),
			Sunday:    rule.Days.Has(recurrence.Sunday),
		}
	default:
		t.EnableRecurring = false
	}
	return t
}

// Validate checks fields the orchestrator depends on.
func (t Task) Validate() error {
	if strings.TrimSpace(t.URL) == "" {
		return services.Wrap(services.ErrValidation, "taskconfig", "validate", "douyin_url must be set", nil)
	}
	if t.DurationMinutes <= 0 {
		return services.Wrap(services.ErrValidation, "taskconfig", "validate", "duration_minutes must be positive", nil)
	}
	if t.Framerate < 0 {
		return services.Wrap(services.ErrValidation, "taskconfig", "validate", "framerate must be >= 0", nil)
	}
	if t.MonitorIndex < 0 {
		return services.Wrap(services.ErrValidation, "taskconfig", "validate", "monitor_index must be >= 0", nil)
	}
	if _, err := t.Start(time.Local); err != nil {
		return err
	}
	return nil
}
