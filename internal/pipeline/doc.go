// Package pipeline turns candidate photos into branded, indexed outputs.
//
// A Processor runs the per-file sequence: filter, stability gate, orientation
// classification, overlay compositing, output naming and face indexing. Each
// file ends in exactly one terminal SourceEvent state and every step is
// reported to Observers as a Record with a machine-readable Kind and a
// canonical text line ("Detected new file: ...", "Successfully processed:
// ...") for consumers that parse text.
//
// The Coordinator owns the lifecycle (Idle, Running, Paused, Stopped) and
// drives a live subscription plus an optional backfill over the same
// ProcessingConfig. Failures never cross a file boundary.
package pipeline
