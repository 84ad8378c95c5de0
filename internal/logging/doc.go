// Package logging assembles structured slog loggers and formatting helpers used
// across CaptureSync.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and defines the standard field keys (component, event_type, run_id, source,
// output) so pipeline log lines have the same shape whether they are printed
// to a terminal or written to a session log file. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
