package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the folders the pipeline reads from and writes to.
type Paths struct {
	SourceDir string `toml:"source_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Overlays holds the branding assets applied per orientation. Either may be empty.
type Overlays struct {
	Landscape string `toml:"landscape"`
	Portrait  string `toml:"portrait"`
}

// Naming controls output file naming.
type Naming struct {
	FilePrefix string `toml:"file_prefix"`
}

// Watch contains event source and readiness timing.
type Watch struct {
	ProcessExisting         bool   `toml:"process_existing"`
	Backend                 string `toml:"backend"`
	PollIntervalMillis      int    `toml:"poll_interval_ms"`
	StabilityTimeoutSeconds int    `toml:"stability_timeout_seconds"`
	StabilityPollMillis     int    `toml:"stability_poll_ms"`
	PausePollMillis         int    `toml:"pause_poll_ms"`
}

// Faces configures face vector extraction for the event index.
type Faces struct {
	Enabled        bool     `toml:"enabled"`
	EngineCommand  []string `toml:"engine_command"`
	MatchThreshold float64  `toml:"match_threshold"`
}

// Metrics configures the optional Prometheus listener.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for CaptureSync.
//
// Configuration sections by subsystem:
//   - Paths: source, output, log and state folders
//   - Overlays: landscape/portrait branding assets
//   - Naming: optional sequential file prefix
//   - Watch: live backend, backfill, stability gate timing
//   - Faces: face engine command and match threshold
//   - Metrics: Prometheus bind address
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Overlays Overlays `toml:"overlays"`
	Naming   Naming   `toml:"naming"`
	Watch    Watch    `toml:"watch"`
	Faces    Faces    `toml:"faces"`
	Metrics  Metrics  `toml:"metrics"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("capturesync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories. The output folder
// is created on a best-effort basis because it usually lives inside a cloud
// sync client that may not be mounted yet.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// StabilityTimeout returns the readiness timeout for newly detected files.
func (c *Config) StabilityTimeout() time.Duration {
	return time.Duration(c.Watch.StabilityTimeoutSeconds) * time.Second
}

// StabilityPoll returns the interval between size samples.
func (c *Config) StabilityPoll() time.Duration {
	return time.Duration(c.Watch.StabilityPollMillis) * time.Millisecond
}

// PausePoll returns the sleep bound used by a paused backfill loop.
func (c *Config) PausePoll() time.Duration {
	return time.Duration(c.Watch.PausePollMillis) * time.Millisecond
}

// PollInterval returns the scan interval of the polling watch backend.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollIntervalMillis) * time.Millisecond
}

// JournalPath returns the SQLite journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "capturesync.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "capturesync.lock")
}

// SessionLogPath returns the log file for a session started at the given time.
func (c *Config) SessionLogPath(started time.Time) string {
	return filepath.Join(c.Paths.LogDir, "capturesync-"+started.Format("20060102T150405")+".log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
