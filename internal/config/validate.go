package config

import (
	"errors"
	"fmt"
	"sort"
)

var supportedPlatforms = map[string]struct{}{
	"linux":   {},
	"windows": {},
	"darwin":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateBrowser(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTimings() error {
	return ensurePositiveMap(map[string]int{
		"capture.stop_timeout_seconds":        c.Capture.StopTimeoutSeconds,
		"browser.page_load_wait_seconds":      c.Browser.PageLoadWaitSeconds,
		"browser.keep_alive_interval_seconds": c.Browser.KeepAliveIntervalSeconds,
		"browser.startup_timeout_seconds":     c.Browser.StartupTimeoutSeconds,
		"orchestrator.extend_minutes":         c.Orchestrator.ExtendMinutes,
		"orchestrator.debounce_millis":        c.Orchestrator.DebounceMillis,
		"notifications.request_timeout":       c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateCapture() error {
	if _, ok := supportedPlatforms[c.Capture.Platform]; !ok {
		return fmt.Errorf("capture.platform %q is not supported (use linux, windows, darwin, or auto)", c.Capture.Platform)
	}
	for i, m := range c.Capture.Monitors {
		if m.Width <= 0 || m.Height <= 0 {
			return fmt.Errorf("capture.monitors[%d] must have positive width and height", i)
		}
	}
	return nil
}

func (c *Config) validateBrowser() error {
	if c.Browser.DebugPort <= 0 || c.Browser.DebugPort > 65535 {
		return errors.New("browser.debug_port must be between 1 and 65535")
	}
	if c.Browser.KeyDelayMillis < 0 {
		return errors.New("browser.key_delay_millis must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
