// Package daemon runs the long-lived CaptureSync process.
//
// It wires configuration, the watch backend, the face detector, the journal
// and the metrics collectors around one pipeline coordinator, and uses a
// flock lock file so only one instance watches a state directory at a time.
// Keep per-file logic in the pipeline package: the daemon only deals with
// startup, shutdown and lifecycle requests arriving over IPC.
package daemon
