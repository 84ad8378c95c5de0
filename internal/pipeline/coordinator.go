package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"capturesync/internal/faceindex"
	"capturesync/internal/logging"
	"capturesync/internal/watch"
)

// Dependencies are the collaborators a Coordinator drives.
type Dependencies struct {
	Notifier watch.Notifier
	Detector faceindex.Detector
	Observer Observer
	Logger   *slog.Logger
}

// Coordinator owns the lifecycle of a pipeline run: one live subscription on
// the source folder and, when requested, one backfill pass over the files
// that were already there.
type Coordinator struct {
	notifier watch.Notifier
	detector faceindex.Detector
	observer Observer
	base     *slog.Logger
	logger   *slog.Logger
	stats    *statsObserver
	locks    *folderLocks

	mu    sync.Mutex
	state State
	run   *run
}

// run is the state of one Start..Stop cycle. A stopped run keeps draining in
// the background without seeing the flags of the run that replaced it.
type run struct {
	id        string
	cfg       ProcessingConfig
	ctx       context.Context
	cancel    context.CancelFunc
	live      *watch.Live
	processor *Processor
	paused    atomic.Bool
	stopped   atomic.Bool
	wg        sync.WaitGroup
}

func (r *run) Paused() bool  { return r.paused.Load() }
func (r *run) Stopped() bool { return r.stopped.Load() }

func (r *run) handle(ctx context.Context, path string) {
	r.processor.Process(ctx, path)
}

// NewCoordinator builds an idle coordinator.
func NewCoordinator(deps Dependencies) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	detector := deps.Detector
	if detector == nil {
		detector = faceindex.NopDetector{}
	}
	return &Coordinator{
		notifier: deps.Notifier,
		detector: detector,
		observer: deps.Observer,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "coordinator"),
		stats:    newStatsObserver(),
		locks:    &folderLocks{},
	}
}

// Start validates cfg and begins a run. A refused start leaves the
// coordinator in its previous state.
func (c *Coordinator) Start(ctx context.Context, cfg ProcessingConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle && c.state != Stopped {
		return fmt.Errorf("%w: start while %s", ErrInvalidTransition, c.state)
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, ErrMissingSourceFolder) {
			c.info("", "No source folder configured.")
		}
		return err
	}
	if c.notifier == nil {
		return fmt.Errorf("start: %w", watch.ErrBackendUnavailable)
	}

	var backlog []string
	if cfg.ProcessExisting {
		paths, err := watch.Snapshot(cfg.SourceFolder)
		if err != nil {
			return fmt.Errorf("scan existing files: %w", err)
		}
		backlog = paths
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		id:     uuid.NewString(),
		cfg:    cfg,
		ctx:    runCtx,
		cancel: cancel,
	}
	r.processor = NewProcessor(cfg,
		WithDetector(c.detector),
		WithObserver(Observers{c.stats, c.observer}),
		WithLogger(c.base),
		WithRunID(r.id),
		withLocks(c.locks),
	)
	r.live = watch.NewLive(c.notifier, cfg.SourceFolder, r.handle, c.base)

	candidates := make([]string, 0, len(backlog))
	for _, path := range backlog {
		if IsCandidate(path) {
			candidates = append(candidates, path)
		}
	}
	c.stats.reset(candidates)

	if err := r.live.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("watch %s: %w", cfg.SourceFolder, err)
	}
	c.run = r
	c.state = Running
	c.logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_started"),
		logging.String(logging.FieldRunID, r.id),
		logging.String("source_dir", cfg.SourceFolder),
		logging.String("output_dir", cfg.OutputFolder),
		logging.Int("backlog", len(candidates)),
	)
	c.infoRun(r, fmt.Sprintf("Watching %s for new images...", cfg.SourceFolder))

	if cfg.ProcessExisting {
		r.wg.Add(1)
		go c.backfill(r, backlog)
	}
	return nil
}

func (c *Coordinator) backfill(r *run, backlog []string) {
	defer r.wg.Done()
	handled := watch.Backfill(r.ctx, backlog, r, r.cfg.PausePoll, r.handle)
	if r.Stopped() {
		c.logger.Debug("backfill interrupted", logging.Int("handled", handled))
		return
	}
	c.infoRun(r, "Finished processing existing files.")
}

// Pause tears down the live subscription and holds the backfill at its next
// item. Files created while paused are not seen.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := checkTransition(c.state, Paused); err != nil {
		return err
	}
	r := c.run
	r.paused.Store(true)
	r.live.Stop()
	c.state = Paused
	c.infoRun(r, "Paused.")
	return nil
}

// Resume resubscribes with the retained configuration and releases the
// backfill where it stopped.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return fmt.Errorf("%w: resume while %s", ErrInvalidTransition, c.state)
	}
	r := c.run
	if err := r.live.Start(r.ctx); err != nil {
		return fmt.Errorf("watch %s: %w", r.cfg.SourceFolder, err)
	}
	r.paused.Store(false)
	c.state = Running
	c.infoRun(r, "Resumed.")
	return nil
}

// Stop ends the run. Files already past the stability check finish; files
// still waiting are skipped and the backfill exits at its next item.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := checkTransition(c.state, Stopped); err != nil {
		return err
	}
	r := c.run
	r.stopped.Store(true)
	r.paused.Store(false)
	r.live.Stop()
	r.cancel()
	c.state = Stopped
	c.logger.Info("pipeline stopped",
		logging.String(logging.FieldEventType, "pipeline_stopped"),
		logging.String(logging.FieldRunID, r.id),
	)
	c.infoRun(r, "Stopped.")
	return nil
}

// Wait blocks until the current run's live delivery and backfill have
// returned. Call it after Stop.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil {
		return
	}
	r.wg.Wait()
	r.live.Wait()
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RunID identifies the current or last run.
func (c *Coordinator) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return ""
	}
	return c.run.id
}

// Config returns the configuration of the current or last run.
func (c *Coordinator) Config() ProcessingConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return ProcessingConfig{}
	}
	return c.run.cfg
}

// Stats returns counters for the current or last run.
func (c *Coordinator) Stats() Stats {
	return c.stats.snapshot()
}

func (c *Coordinator) info(runID, message string) {
	record := Record{Kind: KindInfo, RunID: runID, Message: message, At: time.Now()}
	c.stats.OnEvent(record)
	if c.observer != nil {
		c.observer.OnEvent(record)
	}
}

func (c *Coordinator) infoRun(r *run, message string) {
	c.info(r.id, message)
}
