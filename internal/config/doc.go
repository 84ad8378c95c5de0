// Package config loads, normalizes, and validates CaptureSync configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours CAPTURESYNC_* environment
// overrides so the source/output folders and overlay assets can be supplied
// by whatever launches the pipeline. The Config type centralizes every knob
// the watcher, the compositor, the face index and the CLI need.
//
// Required pipeline fields (source and output folders) are deliberately not
// enforced here: commands such as `config init` or `history` must work before
// the folders are chosen. The pipeline coordinator refuses to start without
// them instead.
package config
