package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"capturesync/internal/config"
)

// Op is the kind of change that produced an Event.
type Op int

const (
	// Created means a new entry appeared in the folder.
	Created Op = iota
	// MovedIn means an entry was renamed into (or within) the folder.
	MovedIn
)

func (o Op) String() string {
	if o == MovedIn {
		return "moved_in"
	}
	return "created"
}

// Event is one change notification for a folder entry.
type Event struct {
	Path string
	Op   Op
	At   time.Time
}

// Notifier delivers change events for a single directory. A Notifier holds at
// most one subscription; Subscribe after Unsubscribe starts a fresh one.
// Events that occur while unsubscribed are not delivered.
type Notifier interface {
	// Subscribe starts watching dir. The returned channel closes when the
	// subscription ends.
	Subscribe(ctx context.Context, dir string) (<-chan Event, error)
	// Unsubscribe ends the current subscription. It is safe to call when not
	// subscribed.
	Unsubscribe() error
}

// ErrAlreadySubscribed is returned by Subscribe while a subscription is active.
var ErrAlreadySubscribed = errors.New("notifier already subscribed")

// ErrBackendUnavailable reports a backend that cannot run on this platform.
var ErrBackendUnavailable = errors.New("watch backend unavailable")

// NewNotifier builds the backend named by cfg.Watch.Backend. "auto" prefers
// inotify on Linux and falls back to polling.
func NewNotifier(cfg *config.Config, logger *slog.Logger) (Notifier, error) {
	backend := config.BackendAuto
	interval := time.Second
	if cfg != nil {
		backend = cfg.Watch.Backend
		interval = cfg.PollInterval()
	}
	switch backend {
	case config.BackendPoll:
		return NewPollNotifier(interval, logger), nil
	case config.BackendInotify:
		return newInotifyNotifier(logger)
	case config.BackendAuto, "":
		if runtime.GOOS == "linux" {
			if n, err := newInotifyNotifier(logger); err == nil {
				return n, nil
			}
		}
		return NewPollNotifier(interval, logger), nil
	default:
		return nil, fmt.Errorf("unknown watch backend %q", backend)
	}
}
