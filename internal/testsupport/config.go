package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"capturesync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Watch timing is shortened so gates settle in tens of milliseconds, faces are
// disabled, and the polling backend is selected.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SourceDir = filepath.Join(base, "source")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Watch.Backend = config.BackendPoll
	cfgVal.Watch.PollIntervalMillis = 50
	cfgVal.Watch.StabilityPollMillis = 20
	cfgVal.Watch.StabilityTimeoutSeconds = 2
	cfgVal.Watch.PausePollMillis = 10
	cfgVal.Faces.Enabled = false
	cfgVal.Metrics.Bind = ""

	for _, dir := range []string{cfgVal.Paths.SourceDir, cfgVal.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOverlays writes solid overlay assets for the requested orientations and
// points the config at them. An empty color name leaves that orientation unset.
func WithOverlays(landscape, portrait string) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "overlays")
		if landscape != "" {
			path := filepath.Join(dir, "landscape.png")
			WriteImage(b.t, path, 40, 30, NamedColor(landscape))
			b.cfg.Overlays.Landscape = path
		}
		if portrait != "" {
			path := filepath.Join(dir, "portrait.png")
			WriteImage(b.t, path, 30, 40, NamedColor(portrait))
			b.cfg.Overlays.Portrait = path
		}
	}
}

// WithPrefix sets the sequential output prefix.
func WithPrefix(prefix string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Naming.FilePrefix = prefix
	}
}

// WithProcessExisting enables the startup backfill.
func WithProcessExisting() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watch.ProcessExisting = true
	}
}

// WithBackend selects the watch backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watch.Backend = backend
	}
}

// BaseDir returns the temp root shared by a config produced by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SourceDir)
}
