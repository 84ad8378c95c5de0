package faceindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Detector extracts face encodings from an image file. An image without
// faces yields an empty slice and no error.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([][]float64, error)
}

// NopDetector finds no faces. It stands in when face indexing is disabled.
type NopDetector struct{}

func (NopDetector) Detect(context.Context, string) ([][]float64, error) { return nil, nil }

// Face is one detection returned by the engine.
type Face struct {
	Loc []int     `json:"loc"` // top, right, bottom, left
	Vec []float64 `json:"vec"`
}

type engineRequest struct {
	Image string `json:"image"`
}

type engineResponse struct {
	Faces []Face `json:"faces"`
	Error string `json:"error,omitempty"`
}

// maxResponse bounds a single engine reply; a 128-float face is ~3KB of JSON.
const maxResponse = 16 << 20

// EngineDetector talks to a long-lived face engine process. Requests are
// written to the engine's stdin as a big-endian uint32 length followed by a
// JSON body; replies arrive the same way on file descriptor 3 so the engine's
// own stdout chatter cannot corrupt the stream. The process is started on
// first use and restarted after any protocol failure.
type EngineDetector struct {
	command []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	stdin   io.WriteCloser
	replies io.ReadCloser
}

// NewEngineDetector prepares a detector that runs command (argv form).
func NewEngineDetector(command []string) (*EngineDetector, error) {
	if len(command) == 0 {
		return nil, errors.New("face engine command is empty")
	}
	return &EngineDetector{command: append([]string(nil), command...)}, nil
}

// Detect asks the engine for the encodings in imagePath.
func (d *EngineDetector) Detect(ctx context.Context, imagePath string) ([][]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.cmd == nil {
		if err := d.start(); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(engineRequest{Image: imagePath})
	if err != nil {
		return nil, fmt.Errorf("encode engine request: %w", err)
	}
	reply, err := exchange(d.stdin, d.replies, body)
	if err != nil {
		crash := d.stopLocked()
		if crash != "" {
			return nil, fmt.Errorf("face engine: %w (stderr: %s)", err, crash)
		}
		return nil, fmt.Errorf("face engine: %w", err)
	}
	return decodeReply(reply)
}

func (d *EngineDetector) start() error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create reply pipe: %w", err)
	}
	cmd := exec.Command(d.command[0], d.command[1:]...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = w.Close()
		_ = r.Close()
		return fmt.Errorf("create engine stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = w.Close()
		_ = r.Close()
		return fmt.Errorf("start face engine %q: %w", d.command[0], err)
	}
	// Only the child keeps the write end.
	_ = w.Close()

	d.cmd = cmd
	d.stderr = stderr
	d.stdin = stdin
	d.replies = r
	return nil
}

// Close stops the engine process if it is running.
func (d *EngineDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	return nil
}

func (d *EngineDetector) stopLocked() string {
	if d.cmd == nil {
		return ""
	}
	_ = d.stdin.Close()
	_ = d.replies.Close()
	_ = d.cmd.Wait()
	crash := strings.TrimSpace(d.stderr.String())
	d.cmd, d.stdin, d.replies, d.stderr = nil, nil, nil, nil
	return crash
}

func exchange(w io.Writer, r io.Reader, body []byte) ([]byte, error) {
	if err := binary.Write(w, binary.BigEndian, uint32(len(body))); err != nil {
		return nil, fmt.Errorf("write request header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("read reply header: %w", err)
	}
	if size > maxResponse {
		return nil, fmt.Errorf("reply of %d bytes exceeds limit", size)
	}
	reply := make([]byte, size)
	if _, err := io.ReadFull(r, reply); err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}

func decodeReply(reply []byte) ([][]float64, error) {
	var resp engineResponse
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("decode engine reply: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("face engine error: %s", resp.Error)
	}
	vectors := make([][]float64, 0, len(resp.Faces))
	for i, face := range resp.Faces {
		if len(face.Vec) != VectorLength {
			return nil, fmt.Errorf("%w: face %d has %d values", ErrVectorLength, i, len(face.Vec))
		}
		vectors = append(vectors, face.Vec)
	}
	return vectors, nil
}
