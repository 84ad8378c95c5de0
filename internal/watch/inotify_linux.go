//go:build linux

package watch

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"capturesync/internal/logging"
)

const inotifyMask = unix.IN_CREATE | unix.IN_MOVED_TO | unix.IN_ONLYDIR

// inotifyNotifier watches one directory with a dedicated inotify instance per
// subscription. Closing the instance unblocks the reader goroutine.
type inotifyNotifier struct {
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
	done chan struct{}
}

func newInotifyNotifier(logger *slog.Logger) (Notifier, error) {
	return &inotifyNotifier{logger: logging.NewComponentLogger(logger, "inotify")}, nil
}

func (n *inotifyNotifier) Subscribe(ctx context.Context, dir string) (<-chan Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.file != nil {
		return nil, ErrAlreadySubscribed
	}

	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("%w: inotify init: %v", ErrBackendUnavailable, err)
	}
	if _, err := unix.InotifyAddWatch(fd, dir, inotifyMask); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	// A non-blocking descriptor is registered with the runtime poller, so
	// Close interrupts a pending Read.
	file := os.NewFile(uintptr(fd), "inotify")

	events := make(chan Event)
	done := make(chan struct{})
	n.file = file
	n.done = done
	go n.readLoop(ctx, file, dir, events, done)
	return events, nil
}

func (n *inotifyNotifier) Unsubscribe() error {
	return n.release(nil)
}

// release ends the subscription backed by file, or the current one when file
// is nil. A stale file (already replaced by a newer subscription) is ignored.
func (n *inotifyNotifier) release(file *os.File) error {
	n.mu.Lock()
	if n.file == nil || (file != nil && n.file != file) {
		n.mu.Unlock()
		return nil
	}
	current, done := n.file, n.done
	n.file, n.done = nil, nil
	n.mu.Unlock()
	close(done)
	return current.Close()
}

func (n *inotifyNotifier) readLoop(ctx context.Context, file *os.File, dir string, out chan<- Event, done <-chan struct{}) {
	defer close(out)
	defer func() { _ = n.release(file) }()
	stop := context.AfterFunc(ctx, func() { _ = n.release(file) })
	defer stop()

	buf := make([]byte, 64*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))
	for {
		read, err := file.Read(buf)
		if err != nil {
			if !errors.Is(err, fs.ErrClosed) {
				logging.WarnWithContext(n.logger, "inotify read failed; live watching stopped", "inotify_read_failed",
					logging.Error(err),
					logging.String("dir", dir),
					logging.String(logging.FieldImpact, "new files are not detected until restart"),
				)
			}
			return
		}
		for _, ev := range parseInotify(buf[:read], dir, n.logger) {
			select {
			case out <- ev:
			case <-done:
				return
			}
		}
	}
}

// parseInotify decodes the packed inotify_event records in buf.
func parseInotify(buf []byte, dir string, logger *slog.Logger) []Event {
	var events []Event
	now := time.Now()
	for offset := 0; offset+unix.SizeofInotifyEvent <= len(buf); {
		mask := binary.NativeEndian.Uint32(buf[offset+4:])
		nameLen := int(binary.NativeEndian.Uint32(buf[offset+12:]))
		start := offset + unix.SizeofInotifyEvent
		end := start + nameLen
		if end > len(buf) {
			break
		}
		offset = end

		if mask&unix.IN_Q_OVERFLOW != 0 {
			logging.WarnWithContext(logger, "inotify queue overflowed; some files were not seen", "inotify_overflow",
				logging.String("dir", dir),
				logging.String(logging.FieldErrorHint, "run with process_existing to pick up missed files"),
				logging.String(logging.FieldImpact, "files arriving during the burst are not processed"),
			)
			continue
		}
		if mask&unix.IN_ISDIR != 0 || nameLen == 0 {
			continue
		}
		name := cString(buf[start:end])
		if name == "" {
			continue
		}
		op := Created
		if mask&unix.IN_MOVED_TO != 0 {
			op = MovedIn
		}
		events = append(events, Event{Path: filepath.Join(dir, name), Op: op, At: now})
	}
	return events
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
