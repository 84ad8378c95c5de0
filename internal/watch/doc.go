// Package watch produces the candidate paths the pipeline processes.
//
// Two sources feed the same downstream handler. Live subscribes to create and
// move-into notifications for the source folder (non-recursive) through a
// Notifier backend and hands every notification to the handler synchronously
// from a single delivery goroutine. Backfill iterates a sorted snapshot of the
// folder taken once at start and honours cooperative pause and stop flags
// between items.
//
// The Notifier interface hides the OS mechanism: inotify on Linux, and a
// directory-polling backend everywhere else (or when forced by config).
package watch
