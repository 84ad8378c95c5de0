package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnvOverrides()

	var err error
	for _, field := range []*string{
		&c.Paths.SourceDir,
		&c.Paths.OutputDir,
		&c.Paths.LogDir,
		&c.Paths.StateDir,
		&c.Overlays.Landscape,
		&c.Overlays.Portrait,
	} {
		*field = strings.TrimSpace(*field)
		if *field == "" {
			continue
		}
		if *field, err = expandPath(*field); err != nil {
			return fmt.Errorf("normalize path: %w", err)
		}
	}
	if c.Paths.LogDir == "" {
		if c.Paths.LogDir, err = expandPath(defaultLogDir); err != nil {
			return fmt.Errorf("log_dir: %w", err)
		}
	}
	if c.Paths.StateDir == "" {
		if c.Paths.StateDir, err = expandPath(defaultStateDir); err != nil {
			return fmt.Errorf("state_dir: %w", err)
		}
	}

	c.Naming.FilePrefix = strings.TrimSpace(c.Naming.FilePrefix)

	c.Watch.Backend = strings.ToLower(strings.TrimSpace(c.Watch.Backend))
	if c.Watch.Backend == "" {
		c.Watch.Backend = defaultWatchBackend
	}
	if c.Watch.PollIntervalMillis <= 0 {
		c.Watch.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Watch.StabilityTimeoutSeconds <= 0 {
		c.Watch.StabilityTimeoutSeconds = defaultStabilityTimeoutSeconds
	}
	if c.Watch.StabilityPollMillis <= 0 {
		c.Watch.StabilityPollMillis = defaultStabilityPollMillis
	}
	if c.Watch.PausePollMillis <= 0 {
		c.Watch.PausePollMillis = defaultPausePollMillis
	}

	command := make([]string, 0, len(c.Faces.EngineCommand))
	for _, part := range c.Faces.EngineCommand {
		if part = strings.TrimSpace(part); part != "" {
			command = append(command, part)
		}
	}
	if len(command) == 0 {
		command = append(command, DefaultEngineCommand...)
	}
	c.Faces.EngineCommand = command
	if c.Faces.MatchThreshold <= 0 {
		c.Faces.MatchThreshold = defaultMatchThreshold
	}

	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// applyEnvOverrides lets a launcher (or a .env file loaded by the CLI) supply
// the folders and overlays without editing the TOML file.
func (c *Config) applyEnvOverrides() {
	overrideString(&c.Paths.SourceDir, "CAPTURESYNC_SOURCE_DIR")
	overrideString(&c.Paths.OutputDir, "CAPTURESYNC_OUTPUT_DIR")
	overrideString(&c.Paths.LogDir, "CAPTURESYNC_LOG_DIR")
	overrideString(&c.Paths.StateDir, "CAPTURESYNC_STATE_DIR")
	overrideString(&c.Overlays.Landscape, "CAPTURESYNC_OVERLAY_LANDSCAPE")
	overrideString(&c.Overlays.Portrait, "CAPTURESYNC_OVERLAY_PORTRAIT")
	overrideString(&c.Naming.FilePrefix, "CAPTURESYNC_FILE_PREFIX")
	overrideString(&c.Watch.Backend, "CAPTURESYNC_WATCH_BACKEND")
	overrideString(&c.Metrics.Bind, "CAPTURESYNC_METRICS_BIND")
	overrideString(&c.Logging.Level, "CAPTURESYNC_LOG_LEVEL")
	overrideString(&c.Logging.Format, "CAPTURESYNC_LOG_FORMAT")

	if value, ok := lookupEnv("CAPTURESYNC_PROCESS_EXISTING"); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			c.Watch.ProcessExisting = parsed
		}
	}
	if value, ok := lookupEnv("CAPTURESYNC_FACES_ENABLED"); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			c.Faces.Enabled = parsed
		}
	}
	if value, ok := lookupEnv("CAPTURESYNC_FACE_ENGINE"); ok {
		c.Faces.EngineCommand = strings.Fields(value)
	}
}

func overrideString(target *string, key string) {
	if value, ok := lookupEnv(key); ok {
		*target = value
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
