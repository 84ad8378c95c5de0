// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Lifecycle requests map one to one onto the coordinator: Start, Pause,
// Resume and Stop. Refused transitions come back as a response with OK=false
// and a message rather than as RPC errors, so the CLI can print them as-is.
package ipc
