package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Controller exposes the cooperative flags a backfill loop observes between
// items.
type Controller interface {
	Stopped() bool
	Paused() bool
}

// Snapshot lists dir once and returns the full paths of its entries sorted by
// name. Files created afterwards are not part of the snapshot.
func Snapshot(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

// Backfill hands each snapshot path that is still a regular file to handler.
// While ctl reports paused it sleeps in pausePoll steps without dropping the
// remaining backlog; once ctl reports stopped (or ctx ends) it returns at the
// next item boundary. It returns the number of paths handed to handler.
func Backfill(ctx context.Context, paths []string, ctl Controller, pausePoll time.Duration, handler Handler) int {
	if pausePoll <= 0 {
		pausePoll = 500 * time.Millisecond
	}
	handled := 0
	for _, path := range paths {
		if !waitWhilePaused(ctx, ctl, pausePoll) {
			return handled
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		handler(ctx, path)
		handled++
	}
	return handled
}

// waitWhilePaused reports false when the loop should exit.
func waitWhilePaused(ctx context.Context, ctl Controller, step time.Duration) bool {
	for {
		if ctx.Err() != nil || ctl.Stopped() {
			return false
		}
		if !ctl.Paused() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
	}
}
