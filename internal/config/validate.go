package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNaming(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateFaces(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.SourceDir != "" && c.Paths.SourceDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.source_dir")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateNaming() error {
	prefix := c.Naming.FilePrefix
	if prefix == "" {
		return nil
	}
	if strings.ContainsAny(prefix, `/\`) || prefix != filepath.Base(prefix) {
		return fmt.Errorf("naming.file_prefix %q must not contain path separators", prefix)
	}
	return nil
}

func (c *Config) validateWatch() error {
	switch c.Watch.Backend {
	case BackendAuto, BackendInotify, BackendPoll:
	default:
		return fmt.Errorf("watch.backend must be one of auto, inotify, poll (got %q)", c.Watch.Backend)
	}
	if c.Watch.PollIntervalMillis < 50 {
		return errors.New("watch.poll_interval_ms must be at least 50")
	}
	if c.Watch.StabilityPollMillis <= 0 {
		return errors.New("watch.stability_poll_ms must be positive")
	}
	if c.Watch.StabilityTimeoutSeconds <= 0 {
		return errors.New("watch.stability_timeout_seconds must be positive")
	}
	if c.Watch.PausePollMillis <= 0 {
		return errors.New("watch.pause_poll_ms must be positive")
	}
	return nil
}

func (c *Config) validateFaces() error {
	if c.Faces.Enabled && len(c.Faces.EngineCommand) == 0 {
		return errors.New("faces.engine_command must be set when faces are enabled")
	}
	if math.IsNaN(c.Faces.MatchThreshold) || c.Faces.MatchThreshold <= 0 {
		return errors.New("faces.match_threshold must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}
