package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"capturesync/internal/logging"
)

// PollNotifier detects new folder entries by listing the folder on a fixed
// interval. Entries present when the subscription starts are not reported.
// A name that disappears and comes back is reported again.
type PollNotifier struct {
	interval time.Duration
	logger   *slog.Logger

	mu  sync.Mutex
	sub *pollSubscription
}

type pollSubscription struct {
	cancel context.CancelFunc
}

// NewPollNotifier returns a polling backend scanning every interval.
func NewPollNotifier(interval time.Duration, logger *slog.Logger) *PollNotifier {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollNotifier{interval: interval, logger: logging.NewComponentLogger(logger, "poll-watch")}
}

func (p *PollNotifier) Subscribe(ctx context.Context, dir string) (<-chan Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sub != nil {
		return nil, ErrAlreadySubscribed
	}
	seen, err := listNames(dir)
	if err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := &pollSubscription{cancel: cancel}
	p.sub = sub
	events := make(chan Event)
	go p.pollLoop(subCtx, sub, dir, seen, events)
	return events, nil
}

func (p *PollNotifier) Unsubscribe() error {
	p.mu.Lock()
	sub := p.sub
	p.sub = nil
	p.mu.Unlock()
	if sub != nil {
		sub.cancel()
	}
	return nil
}

func (p *PollNotifier) pollLoop(ctx context.Context, sub *pollSubscription, dir string, seen map[string]struct{}, out chan<- Event) {
	defer close(out)
	defer func() {
		p.mu.Lock()
		if p.sub == sub {
			p.sub = nil
		}
		p.mu.Unlock()
		sub.cancel()
	}()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		current, err := listNames(dir)
		if err != nil {
			p.logger.Debug("poll scan failed", logging.String("dir", dir), logging.Error(err))
			continue
		}
		now := time.Now()
		var fresh []string
		for name := range current {
			if _, ok := seen[name]; !ok {
				fresh = append(fresh, name)
			}
		}
		seen = current
		slices.Sort(fresh)
		for _, name := range fresh {
			select {
			case out <- Event{Path: filepath.Join(dir, name), Op: Created, At: now}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// listNames returns the non-directory entry names of dir.
func listNames(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names[entry.Name()] = struct{}{}
	}
	return names, nil
}
