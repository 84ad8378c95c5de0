package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"capturesync/internal/config"
	"capturesync/internal/faceindex"
	"capturesync/internal/journal"
	"capturesync/internal/logging"
	"capturesync/internal/metrics"
	"capturesync/internal/pipeline"
	"capturesync/internal/watch"
)

// ErrAlreadyRunning reports that another instance holds the lock file.
var ErrAlreadyRunning = errors.New("another capturesync instance is already running")

// Options override collaborators built from the config. Zero values select
// the configured defaults.
type Options struct {
	Notifier watch.Notifier
	Detector faceindex.Detector
	// Observer receives every record in addition to the log, journal and
	// metrics sinks.
	Observer pipeline.Observer
}

// Daemon owns the coordinator and the resources it reports into.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	coordinator *pipeline.Coordinator
	journal     *journal.Store
	metrics     *metrics.Metrics
	detector    faceindex.Detector

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	locked   bool
	lastErr  string
	closed   bool
	bootedAt time.Time
}

// Status is a point-in-time view of the daemon.
type Status struct {
	State       pipeline.State
	RunID       string
	Stats       pipeline.Stats
	SourceDir   string
	OutputDir   string
	JournalPath string
	LockPath    string
	PID         int
	LastError   string
	Uptime      time.Duration
}

// New builds a daemon. It opens the journal but does not take the lock or
// start watching.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := opts.Notifier
	if notifier == nil {
		n, err := watch.NewNotifier(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("watch backend: %w", err)
		}
		notifier = n
	}

	detector := opts.Detector
	if detector == nil && cfg.Faces.Enabled {
		engine, err := faceindex.NewEngineDetector(cfg.Faces.EngineCommand)
		if err != nil {
			return nil, fmt.Errorf("face engine: %w", err)
		}
		detector = engine
	}

	store, err := journal.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	m := metrics.New()
	observers := pipeline.Observers{
		pipeline.LogObserver(logger),
		journal.Observer(store, logger),
		m,
	}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		journal:  store,
		metrics:  m,
		detector: detector,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		bootedAt: time.Now(),
	}
	d.coordinator = pipeline.NewCoordinator(pipeline.Dependencies{
		Notifier: notifier,
		Detector: detector,
		Observer: observers,
		Logger:   logger,
	})
	return d, nil
}

// Acquire takes the single-instance lock for the lifetime of the daemon.
func (d *Daemon) Acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locked {
		return nil
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, d.lockPath)
	}
	d.locked = true
	return nil
}

// Start begins watching with the configured folders.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.Acquire(); err != nil {
		return err
	}
	err := d.coordinator.Start(ctx, pipeline.ProcessingFromConfig(d.cfg))
	d.settle(err)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	d.logger.Info("capturesync started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldRunID, d.coordinator.RunID()),
	)
	return nil
}

// Pause suspends the live subscription and the backfill.
func (d *Daemon) Pause() error {
	err := d.coordinator.Pause()
	d.settle(err)
	return err
}

// Resume continues a paused run.
func (d *Daemon) Resume() error {
	err := d.coordinator.Resume()
	d.settle(err)
	return err
}

// Stop ends the current run. In-flight files finish in the background.
func (d *Daemon) Stop() error {
	err := d.coordinator.Stop()
	d.settle(err)
	return err
}

func (d *Daemon) settle(err error) {
	d.metrics.SetState(d.coordinator.State())
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.lastErr = err.Error()
	}
}

// Close stops any run, waits for in-flight files and releases resources.
func (d *Daemon) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	switch d.coordinator.State() {
	case pipeline.Running, pipeline.Paused:
		_ = d.Stop()
	}
	d.coordinator.Wait()

	var errs []error
	if closer, ok := d.detector.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, d.journal.Close())

	d.mu.Lock()
	if d.locked {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release lock",
				logging.Error(err),
				logging.String(logging.FieldEventType, "lock_release_failed"),
				logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no instance is running"),
				logging.String(logging.FieldImpact, "next start may report another instance"),
			)
		}
		d.locked = false
	}
	d.mu.Unlock()
	d.logger.Info("capturesync stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	return errors.Join(errs...)
}

// Status returns the current lifecycle state and counters.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	lastErr := d.lastErr
	d.mu.Unlock()
	return Status{
		State:       d.coordinator.State(),
		RunID:       d.coordinator.RunID(),
		Stats:       d.coordinator.Stats(),
		SourceDir:   d.cfg.Paths.SourceDir,
		OutputDir:   d.cfg.Paths.OutputDir,
		JournalPath: d.journal.Path(),
		LockPath:    d.lockPath,
		PID:         os.Getpid(),
		LastError:   lastErr,
		Uptime:      time.Since(d.bootedAt),
	}
}

// History lists journal entries.
func (d *Daemon) History(ctx context.Context, filter journal.Filter) ([]journal.Entry, error) {
	return d.journal.List(ctx, filter)
}

// Metrics exposes the collectors for the /metrics listener.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// Coordinator exposes the pipeline coordinator.
func (d *Daemon) Coordinator() *pipeline.Coordinator {
	return d.coordinator
}
