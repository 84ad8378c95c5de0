// Package stability decides when a newly appeared file is safe to read.
//
// Cameras and cloud sync clients write files incrementally, so a create
// notification usually arrives long before the last byte. The Gate samples
// the file size on a fixed interval and only reports Stable once the same
// nonzero size has been seen twice in a row and a shared read lock can be
// taken on the file.
package stability

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// Result is the outcome of waiting on a file.
type Result int

const (
	// Stable means the file stopped growing and can be opened for reading.
	Stable Result = iota
	// TimedOut means the file was still changing when the timeout elapsed.
	TimedOut
	// Missing means the file disappeared (or never existed) while waiting.
	Missing
	// Canceled means the caller's context ended before a decision was made.
	Canceled
)

func (r Result) String() string {
	switch r {
	case Stable:
		return "stable"
	case TimedOut:
		return "timed_out"
	case Missing:
		return "missing"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

const (
	DefaultPollInterval = time.Second
	DefaultTimeout      = 5 * time.Second
)

// Gate waits for files to stop changing.
type Gate struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// New returns a gate with the given timing, falling back to defaults for
// non-positive values.
func New(poll, timeout time.Duration) *Gate {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{PollInterval: poll, Timeout: timeout}
}

// Wait blocks until path is judged stable, the timeout elapses, the file goes
// missing, or ctx is done. Slow files are never reported as errors.
func (g *Gate) Wait(ctx context.Context, path string) Result {
	poll := g.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	timer := time.NewTimer(poll)
	defer timer.Stop()

	previous := int64(-1)
	for {
		size, err := sampleSize(path)
		if err != nil {
			return Missing
		}
		if size > 0 && size == previous && readable(path) {
			return Stable
		}
		previous = size

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return TimedOut
		}
		// The last interval is shortened so a final sample lands on the deadline.
		timer.Reset(min(poll, remaining))
		select {
		case <-ctx.Done():
			return Canceled
		case <-timer.C:
		}
	}
}

func sampleSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fs.ErrInvalid
	}
	return info.Size(), nil
}

// readable reports whether a shared lock can be taken on path right now. A
// writer holding an exclusive lock keeps the file out of the pipeline.
func readable(path string) bool {
	lock := flock.New(path, flock.SetFlag(os.O_RDONLY))
	locked, err := lock.TryRLock()
	if err != nil {
		return false
	}
	if !locked {
		return false
	}
	if err := lock.Unlock(); err != nil && !errors.Is(err, fs.ErrClosed) {
		return false
	}
	return true
}
