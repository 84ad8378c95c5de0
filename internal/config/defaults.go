package config

const (
	defaultConfigPath              = "~/.config/capturesync/config.toml"
	defaultLogDir                  = "~/.local/share/capturesync/logs"
	defaultStateDir                = "~/.local/share/capturesync/state"
	defaultWatchBackend            = BackendAuto
	defaultPollIntervalMillis      = 1000
	defaultStabilityTimeoutSeconds = 5
	defaultStabilityPollMillis     = 1000
	defaultPausePollMillis         = 500
	defaultMatchThreshold          = 0.55
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
)

// Watch backends.
const (
	BackendAuto    = "auto"
	BackendInotify = "inotify"
	BackendPoll    = "poll"
)

// DefaultEngineCommand is the face engine launched when faces are enabled
// without an explicit command.
var DefaultEngineCommand = []string{"python3", "-u", "scripts/face_engine.py"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Watch: Watch{
			Backend:                 defaultWatchBackend,
			PollIntervalMillis:      defaultPollIntervalMillis,
			StabilityTimeoutSeconds: defaultStabilityTimeoutSeconds,
			StabilityPollMillis:     defaultStabilityPollMillis,
			PausePollMillis:         defaultPausePollMillis,
		},
		Faces: Faces{
			Enabled:        true,
			EngineCommand:  append([]string(nil), DefaultEngineCommand...),
			MatchThreshold: defaultMatchThreshold,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
