//go:build linux

package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"capturesync/internal/config"
	"capturesync/internal/logging"
	"capturesync/internal/watch"
)

func newInotify(t *testing.T) watch.Notifier {
	t.Helper()
	cfg := config.Default()
	cfg.Watch.Backend = config.BackendInotify
	n, err := watch.NewNotifier(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	return n
}

func TestInotifyCreateAndMoveInto(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	notifier := newInotify(t)
	events, err := notifier.Subscribe(context.Background(), dir)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(func() { _ = notifier.Unsubscribe() })

	if err := os.Mkdir(filepath.Join(dir, "ignored"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(dir, "created.jpg"))
	ev := receive(t, events)
	if ev.Path != filepath.Join(dir, "created.jpg") || ev.Op != watch.Created {
		t.Fatalf("unexpected create event %+v", ev)
	}

	staged := filepath.Join(outside, "moved.jpg")
	touch(t, staged)
	if err := os.Rename(staged, filepath.Join(dir, "moved.jpg")); err != nil {
		t.Fatal(err)
	}
	ev = receive(t, events)
	if ev.Path != filepath.Join(dir, "moved.jpg") || ev.Op != watch.MovedIn {
		t.Fatalf("unexpected move event %+v", ev)
	}
}

func TestInotifyUnsubscribeClosesStream(t *testing.T) {
	notifier := newInotify(t)
	events, err := notifier.Subscribe(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := notifier.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	waitClosed(t, events)

	dir := t.TempDir()
	events, err = notifier.Subscribe(context.Background(), dir)
	if err != nil {
		t.Fatalf("re-Subscribe: %v", err)
	}
	t.Cleanup(func() { _ = notifier.Unsubscribe() })
	touch(t, filepath.Join(dir, "again.jpg"))
	if ev := receive(t, events); filepath.Base(ev.Path) != "again.jpg" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestInotifyMissingFolder(t *testing.T) {
	notifier := newInotify(t)
	if _, err := notifier.Subscribe(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing folder")
	}
}
