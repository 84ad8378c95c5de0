package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"capturesync/internal/logging"
)

// Kind classifies a Record.
type Kind string

const (
	KindDetected  Kind = "detected"
	KindProcessed Kind = "processed"
	KindSkipped   Kind = "skipped"
	KindFailed    Kind = "failed"
	KindIndexed   Kind = "indexed"
	KindInfo      Kind = "info"
)

// Skip and failure reasons carried by records.
const (
	ReasonTimeout         = "timeout"
	ReasonMissing         = "missing"
	ReasonCanceled        = "canceled"
	ReasonNoOverlay       = "no overlay for orientation"
	ReasonNoOutputFolder  = "missing output folder"
	ReasonNoOverlayConfig = "no overlay configured"
	ReasonProcessing      = "processing error"
)

// Record is one observable step of the pipeline.
type Record struct {
	Kind    Kind
	RunID   string
	Path    string
	Output  string
	Reason  string
	Faces   int
	Err     error
	Elapsed time.Duration
	At      time.Time
	// Message is the canonical single-line text for the record.
	Message string
}

// Line returns the canonical text of the record.
func (r Record) Line() string {
	return r.Message
}

// Observer receives records. Implementations must be safe for concurrent
// use: the live and backfill contexts report independently.
type Observer interface {
	OnEvent(Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Record)

func (f ObserverFunc) OnEvent(r Record) { f(r) }

// LineObserver feeds the canonical text of every record to sink, for
// consumers that only understand log lines.
func LineObserver(sink func(string)) Observer {
	return ObserverFunc(func(r Record) {
		if r.Message != "" {
			sink(r.Message)
		}
	})
}

// Observers fans records out to every member in order.
type Observers []Observer

func (o Observers) OnEvent(r Record) {
	for _, observer := range o {
		if observer != nil {
			observer.OnEvent(r)
		}
	}
}

// LogObserver writes records to a structured logger.
func LogObserver(logger *slog.Logger) Observer {
	logger = logging.NewComponentLogger(logger, "pipeline")
	return ObserverFunc(func(r Record) {
		attrs := []logging.Attr{logging.String(logging.FieldEventType, "file_"+string(r.Kind))}
		if r.RunID != "" {
			attrs = append(attrs, logging.String(logging.FieldRunID, r.RunID))
		}
		if r.Output != "" {
			attrs = append(attrs, logging.String(logging.FieldOutput, r.Output))
		}
		switch r.Kind {
		case KindSkipped:
			attrs = append(attrs, logging.String(logging.FieldReason, r.Reason))
			logging.WarnWithContext(logger, r.Message, "file_skipped", append(attrs,
				logging.String(logging.FieldSource, r.Path),
				logging.String(logging.FieldErrorHint, skipHint(r.Reason)),
			)...)
		case KindFailed:
			if r.Err != nil {
				attrs = append(attrs, logging.Error(r.Err))
			}
			logging.ErrorWithContext(logger, r.Message, "file_failed", append(attrs,
				logging.String(logging.FieldSource, r.Path),
				logging.String(logging.FieldReason, r.Reason),
			)...)
		case KindIndexed:
			if r.Err != nil {
				logging.WarnWithContext(logger, r.Message, "index_failed", append(attrs,
					logging.Error(r.Err),
					logging.String(logging.FieldErrorHint, "check the face engine command and its stderr"),
					logging.String(logging.FieldImpact, "photo published without face search"),
				)...)
				return
			}
			logger.Info(r.Message, logging.Args(append(attrs, logging.Int("faces", r.Faces))...)...)
		case KindProcessed:
			logger.Info(r.Message, logging.Args(append(attrs,
				logging.String(logging.FieldSource, r.Path),
				logging.Duration("elapsed", r.Elapsed),
			)...)...)
		default:
			logger.Info(r.Message, logging.Args(attrs...)...)
		}
	})
}

func skipHint(reason string) string {
	switch reason {
	case ReasonTimeout:
		return "the file kept changing; copy it into the folder again once the writer is done"
	case ReasonNoOverlay:
		return "configure an overlay for this orientation"
	case ReasonMissing:
		return "the file was removed before it could be read"
	default:
		return "check logs for details"
	}
}

// Stats summarizes a run for progress displays.
type Stats struct {
	Discovered int
	Processed  int
	Skipped    int
	Failed     int
	Faces      int
	LastOutput string
}

// statsObserver counts records. The discovered total can be seeded with the
// backlog size so progress reads "processed of discovered" from the start.
type statsObserver struct {
	mu      sync.Mutex
	stats   Stats
	counted map[string]struct{}
}

func newStatsObserver() *statsObserver {
	return &statsObserver{counted: make(map[string]struct{})}
}

func (s *statsObserver) reset(backlog []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{Discovered: len(backlog)}
	s.counted = make(map[string]struct{}, len(backlog))
	for _, path := range backlog {
		s.counted[path] = struct{}{}
	}
}

func (s *statsObserver) OnEvent(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.Kind {
	case KindDetected:
		// Backlog files were counted when the run started.
		if _, ok := s.counted[r.Path]; ok {
			delete(s.counted, r.Path)
			return
		}
		s.stats.Discovered++
	case KindProcessed:
		s.stats.Processed++
		s.stats.LastOutput = r.Output
	case KindSkipped:
		s.stats.Skipped++
	case KindFailed:
		s.stats.Failed++
	case KindIndexed:
		s.stats.Faces += r.Faces
	}
}

func (s *statsObserver) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func detectedLine(path string) string { return "Detected new file: " + path }

func processedLine(output string) string { return "Successfully processed: " + output }

func timeoutLine(path string) string { return "Timeout waiting for file to be ready: " + path }

func processingLine(path string) string { return fmt.Sprintf("Processing %s...", filepath.Base(path)) }

func noOverlayLine(path, orientation string) string {
	return fmt.Sprintf("Skipping %s: No overlay found for %s orientation.", path, orientation)
}
