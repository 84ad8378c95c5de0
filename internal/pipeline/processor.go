package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"capturesync/internal/faceindex"
	"capturesync/internal/logging"
	"capturesync/internal/naming"
	"capturesync/internal/overlay"
	"capturesync/internal/stability"
)

// Processor runs the per-file sequence against one ProcessingConfig.
type Processor struct {
	cfg      ProcessingConfig
	gate     *stability.Gate
	detector faceindex.Detector
	observer Observer
	logger   *slog.Logger
	runID    string
	locks    *folderLocks
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithDetector sets the face detector. The default finds no faces.
func WithDetector(d faceindex.Detector) ProcessorOption {
	return func(p *Processor) {
		if d != nil {
			p.detector = d
		}
	}
}

// WithObserver sets the record sink.
func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logging.NewComponentLogger(logger, "processor")
	}
}

// WithRunID stamps every record with a run identifier.
func WithRunID(id string) ProcessorOption {
	return func(p *Processor) {
		p.runID = id
	}
}

func withLocks(locks *folderLocks) ProcessorOption {
	return func(p *Processor) {
		p.locks = locks
	}
}

// NewProcessor builds a processor for cfg.
func NewProcessor(cfg ProcessingConfig, opts ...ProcessorOption) *Processor {
	p := &Processor{
		cfg:      cfg,
		gate:     stability.New(cfg.StabilityPoll, cfg.StabilityTimeout),
		detector: faceindex.NopDetector{},
		observer: Observers{},
		logger:   logging.NewNop(),
		locks:    &folderLocks{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs path through the pipeline. It returns false when path is not
// a candidate (unsupported extension or a derived output), in which case
// nothing is reported. Errors never escape: the returned event carries the
// terminal state.
func (p *Processor) Process(ctx context.Context, path string) (event SourceEvent, candidate bool) {
	if !IsCandidate(path) {
		return SourceEvent{Path: path}, false
	}
	candidate = true
	event = SourceEvent{Path: path, DetectedAt: time.Now(), State: Detected}
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("panic: %v", recovered)
			p.fail(&event, ReasonProcessing, err, "Failed to process image.")
		}
		event.Elapsed = time.Since(event.DetectedAt)
	}()

	p.emit(Record{Kind: KindDetected, Path: path, Message: detectedLine(path)})

	switch result := p.gate.Wait(ctx, path); result {
	case stability.Stable:
		event.advance(Stable)
	case stability.Canceled:
		event.advance(TimedOut)
		event.Reason = ReasonCanceled
		p.emit(Record{Kind: KindSkipped, Path: path, Reason: ReasonCanceled,
			Message: "Stopped before file was ready: " + path})
		return event, true
	default:
		event.advance(TimedOut)
		event.Reason = ReasonTimeout
		if result == stability.Missing {
			event.Reason = ReasonMissing
		}
		p.emit(Record{Kind: KindSkipped, Path: path, Reason: event.Reason, Message: timeoutLine(path)})
		return event, true
	}

	// Past the gate the file is finished even if the run is stopped.
	ctx = context.WithoutCancel(ctx)

	if p.cfg.OutputFolder == "" {
		p.fail(&event, ReasonNoOutputFolder, ErrMissingOutputFolder, "Configuration missing output folder. Skipping.")
		return event, true
	}
	overlays := p.cfg.Overlays()
	if !overlays.Any() {
		p.fail(&event, ReasonNoOverlayConfig, ErrNoOverlayConfigured, "Configuration missing overlay. Please provide at least one.")
		return event, true
	}

	p.emit(Record{Kind: KindInfo, Path: path, Message: processingLine(path)})

	rendered, err := overlay.Render(path, overlays)
	event.Orientation = rendered.Orientation
	if errors.Is(err, overlay.ErrNoOverlay) {
		event.advance(Skipped)
		event.Reason = ReasonNoOverlay
		p.emit(Record{Kind: KindSkipped, Path: path, Reason: ReasonNoOverlay,
			Message: noOverlayLine(path, string(rendered.Orientation))})
		return event, true
	}
	if err != nil {
		p.fail(&event, ReasonProcessing, err, "Failed to process image.")
		return event, true
	}

	output, err := p.publish(path, rendered)
	if err != nil {
		p.fail(&event, ReasonProcessing, err, "Failed to process image.")
		return event, true
	}
	event.Output = output
	event.advance(Processed)
	p.emit(Record{Kind: KindProcessed, Path: path, Output: output,
		Elapsed: time.Since(event.DetectedAt), Message: processedLine(output)})
	p.logger.Debug("composite written",
		logging.String(logging.FieldSource, path),
		logging.String(logging.FieldOutput, output),
		logging.String(logging.FieldOrientation, string(rendered.Orientation)),
	)

	event.Faces = p.index(ctx, output)
	return event, true
}

// publish allocates the output name and writes the composite while holding
// the output folder lock, so concurrent allocations see each other's files.
func (p *Processor) publish(source string, rendered overlay.Result) (string, error) {
	unlock := p.locks.lock(p.cfg.OutputFolder)
	defer unlock()

	if err := os.MkdirAll(p.cfg.OutputFolder, 0o755); err != nil {
		return "", fmt.Errorf("create output folder: %w", err)
	}
	output, err := naming.OutputPath(p.cfg.OutputFolder, p.cfg.FilePrefix, source)
	if err != nil {
		return "", err
	}
	if err := overlay.WriteJPEG(output, rendered.Image); err != nil {
		return "", err
	}
	return output, nil
}

// index records face vectors for output. Failures are reported but never undo
// the published image.
func (p *Processor) index(ctx context.Context, output string) int {
	name := filepath.Base(output)
	faces, err := faceindex.Record(ctx, p.detector, faceindex.PathFor(p.cfg.OutputFolder), output)
	switch {
	case err != nil:
		p.emit(Record{Kind: KindIndexed, Path: output, Output: output, Err: err,
			Message: fmt.Sprintf("Indexing failed: %v", err)})
	case faces == 0:
		p.emit(Record{Kind: KindIndexed, Path: output, Output: output,
			Message: "No faces found in " + name})
	default:
		p.emit(Record{Kind: KindIndexed, Path: output, Output: output, Faces: faces,
			Message: "Faces indexed for " + name})
	}
	return faces
}

func (p *Processor) fail(event *SourceEvent, reason string, err error, message string) {
	event.advance(Failed)
	event.Reason = reason
	event.Err = err
	p.emit(Record{Kind: KindFailed, Path: event.Path, Reason: reason, Err: err, Message: message})
}

func (p *Processor) emit(r Record) {
	r.RunID = p.runID
	if r.At.IsZero() {
		r.At = time.Now()
	}
	p.observer.OnEvent(r)
}
