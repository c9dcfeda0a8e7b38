package config

const (
	defaultConfigPath               = "~/.config/webvideo/config.toml"
	defaultStateDir                 = "~/.local/share/webvideo"
	defaultLogDir                   = "~/.local/share/webvideo/logs"
	defaultTaskFile                 = "~/.config/webvideo/task.toml"
	defaultLogRetentionDays         = 30
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultFFmpegBinary             = "ffmpeg"
	defaultXrandrBinary             = "xrandr"
	defaultStopTimeoutSeconds       = 5
	defaultPlatform                 = "auto"
	defaultDisplay                  = ":0.0"
	defaultChromeBinary             = "google-chrome"
	defaultDebugPort                = 9222
	defaultChromeProfileDir         = "~/.local/share/webvideo/chrome-profile"
	defaultPageLoadWaitSeconds      = 5
	defaultKeyDelayMillis           = 1000
	defaultKeepAliveIntervalSeconds = 60
	defaultStartupTimeoutSeconds    = 15
	defaultExtendMinutes            = 1
	defaultDebounceMillis           = 500
	defaultNotifyRequestTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			TaskFile: defaultTaskFile,
		},
		Capture: Capture{
			FFmpegBinary:       defaultFFmpegBinary,
			XrandrBinary:       defaultXrandrBinary,
			StopTimeoutSeconds: defaultStopTimeoutSeconds,
			Platform:           defaultPlatform,
			Display:            defaultDisplay,
		},
		Browser: Browser{
			ChromeBinary:             defaultChromeBinary,
			DebugPort:                defaultDebugPort,
			UserDataDir:              defaultChromeProfileDir,
			PageLoadWaitSeconds:      defaultPageLoadWaitSeconds,
			KeyDelayMillis:           defaultKeyDelayMillis,
			KeepAliveIntervalSeconds: defaultKeepAliveIntervalSeconds,
			StartupTimeoutSeconds:    defaultStartupTimeoutSeconds,
		},
		Orchestrator: Orchestrator{
			ExtendMinutes:  defaultExtendMinutes,
			DebounceMillis: defaultDebounceMillis,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Sessions:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
