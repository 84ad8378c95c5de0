package pipeline

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"capturesync/internal/config"
	"capturesync/internal/naming"
	"capturesync/internal/overlay"
)

var (
	// ErrMissingSourceFolder refuses a start without a folder to watch.
	ErrMissingSourceFolder = errors.New("no source folder configured")
	// ErrMissingOutputFolder refuses a start (or a file) without an output folder.
	ErrMissingOutputFolder = errors.New("configuration missing output folder")
	// ErrNoOverlayConfigured reports that neither orientation has an overlay.
	ErrNoOverlayConfigured = errors.New("configuration missing overlay")
)

// ProcessingConfig is the immutable input of one pipeline run.
type ProcessingConfig struct {
	SourceFolder     string
	OutputFolder     string
	LandscapeOverlay string
	PortraitOverlay  string
	FilePrefix       string

	ProcessExisting  bool
	StabilityPoll    time.Duration
	StabilityTimeout time.Duration
	PausePoll        time.Duration
}

// ProcessingFromConfig extracts the run settings from the loaded config.
func ProcessingFromConfig(cfg *config.Config) ProcessingConfig {
	if cfg == nil {
		return ProcessingConfig{}
	}
	return ProcessingConfig{
		SourceFolder:     cfg.Paths.SourceDir,
		OutputFolder:     cfg.Paths.OutputDir,
		LandscapeOverlay: cfg.Overlays.Landscape,
		PortraitOverlay:  cfg.Overlays.Portrait,
		FilePrefix:       cfg.Naming.FilePrefix,
		ProcessExisting:  cfg.Watch.ProcessExisting,
		StabilityPoll:    cfg.StabilityPoll(),
		StabilityTimeout: cfg.StabilityTimeout(),
		PausePoll:        cfg.PausePoll(),
	}
}

// Overlays returns the configured overlay assets.
func (c ProcessingConfig) Overlays() overlay.Overlays {
	return overlay.Overlays{Landscape: c.LandscapeOverlay, Portrait: c.PortraitOverlay}
}

// Validate checks the fields Start requires. Overlays are checked per file.
func (c ProcessingConfig) Validate() error {
	if strings.TrimSpace(c.SourceFolder) == "" {
		return ErrMissingSourceFolder
	}
	if strings.TrimSpace(c.OutputFolder) == "" {
		return ErrMissingOutputFolder
	}
	return nil
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// IsCandidate reports whether path should enter the pipeline: a supported
// image extension (any case) and not an output of a previous run.
func IsCandidate(path string) bool {
	if _, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
		return false
	}
	return !naming.IsDerived(path)
}
