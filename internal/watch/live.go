package watch

import (
	"context"
	"log/slog"
	"sync"

	"capturesync/internal/logging"
)

// Handler receives candidate paths. It runs to completion before the next
// path from the same source is delivered.
type Handler func(ctx context.Context, path string)

// Live relays notifier events for one folder to a handler. Each Start creates
// a new subscription; Stop tears it down without waiting for a handler that
// is still running.
type Live struct {
	notifier Notifier
	dir      string
	handler  Handler
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	gen     int
	wg      sync.WaitGroup
}

// NewLive wires a notifier to handler for dir.
func NewLive(notifier Notifier, dir string, handler Handler, logger *slog.Logger) *Live {
	return &Live{
		notifier: notifier,
		dir:      dir,
		handler:  handler,
		logger:   logging.NewComponentLogger(logger, "live-watch"),
	}
}

// Start subscribes and begins delivering events. Starting an already running
// Live is a no-op.
func (l *Live) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	events, err := l.notifier.Subscribe(ctx, l.dir)
	if err != nil {
		return err
	}
	l.running = true
	l.gen++
	l.wg.Add(1)
	go l.deliver(ctx, l.gen, events)
	l.logger.Debug("live subscription started", logging.String("dir", l.dir))
	return nil
}

func (l *Live) deliver(ctx context.Context, gen int, events <-chan Event) {
	defer l.wg.Done()
	for ev := range events {
		l.handler(ctx, ev.Path)
	}
	l.mu.Lock()
	if l.gen == gen {
		l.running = false
	}
	l.mu.Unlock()
}

// Stop unsubscribes. Notifications that arrive afterwards are lost.
func (l *Live) Stop() {
	l.mu.Lock()
	running := l.running
	l.running = false
	l.gen++
	l.mu.Unlock()
	if !running {
		return
	}
	if err := l.notifier.Unsubscribe(); err != nil {
		l.logger.Debug("unsubscribe failed", logging.Error(err))
	}
	l.logger.Debug("live subscription stopped", logging.String("dir", l.dir))
}

// Running reports whether a subscription is active.
func (l *Live) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Wait blocks until every delivery goroutine has returned.
func (l *Live) Wait() {
	l.wg.Wait()
}
