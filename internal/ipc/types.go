package ipc

import "time"

// ServiceName is the RPC receiver name.
const ServiceName = "CaptureSync"

// Empty is the request of calls that take no arguments.
type Empty struct{}

// ControlResponse reports the outcome of a lifecycle request.
type ControlResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	State   string `json:"state"`
	RunID   string `json:"run_id"`
}

// StatusResponse is the daemon status.
type StatusResponse struct {
	State       string        `json:"state"`
	RunID       string        `json:"run_id"`
	PID         int           `json:"pid"`
	SourceDir   string        `json:"source_dir"`
	OutputDir   string        `json:"output_dir"`
	JournalPath string        `json:"journal_path"`
	LockPath    string        `json:"lock_path"`
	LastError   string        `json:"last_error"`
	Uptime      time.Duration `json:"uptime"`
	Discovered  int           `json:"discovered"`
	Processed   int           `json:"processed"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Faces       int           `json:"faces"`
	LastOutput  string        `json:"last_output"`
}

// HistoryRequest filters journal entries.
type HistoryRequest struct {
	RunID string   `json:"run_id"`
	Kinds []string `json:"kinds"`
	Limit int      `json:"limit"`
}

// HistoryEntry is one journal row on the wire.
type HistoryEntry struct {
	ID      int64     `json:"id"`
	RunID   string    `json:"run_id"`
	Kind    string    `json:"kind"`
	Source  string    `json:"source"`
	Output  string    `json:"output"`
	Reason  string    `json:"reason"`
	Faces   int       `json:"faces"`
	Error   string    `json:"error"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// HistoryResponse contains entries, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}
