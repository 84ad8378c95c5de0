package stability_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"capturesync/internal/stability"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWaitStableForCompleteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeFile(t, path, []byte("complete"))

	gate := stability.New(10*time.Millisecond, time.Second)
	if got := gate.Wait(context.Background(), path); got != stability.Stable {
		t.Fatalf("expected stable, got %s", got)
	}
}

func TestWaitMissingFileReturnsImmediately(t *testing.T) {
	gate := stability.New(time.Second, 5*time.Second)
	start := time.Now()
	got := gate.Wait(context.Background(), filepath.Join(t.TempDir(), "absent.jpg"))
	if got != stability.Missing {
		t.Fatalf("expected missing, got %s", got)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("missing file should not wait, took %s", time.Since(start))
	}
}

func TestWaitEmptyFileTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jpg")
	writeFile(t, path, nil)

	gate := stability.New(10*time.Millisecond, 80*time.Millisecond)
	if got := gate.Wait(context.Background(), path); got != stability.TimedOut {
		t.Fatalf("expected timed out for zero-byte file, got %s", got)
	}
}

func TestWaitGrowingFileTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.jpg")
	writeFile(t, path, []byte("a"))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = f.Write([]byte("more"))
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-done
	})

	gate := stability.New(20*time.Millisecond, 150*time.Millisecond)
	if got := gate.Wait(context.Background(), path); got != stability.TimedOut {
		t.Fatalf("expected timed out while file grows, got %s", got)
	}
}

func TestWaitBecomesStableAfterWriterFinishes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.jpg")
	writeFile(t, path, []byte("x"))

	const chunks = 12
	done := make(chan struct{})
	go func() {
		defer close(done)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		for range chunks {
			time.Sleep(5 * time.Millisecond)
			_, _ = f.Write([]byte("chunk"))
		}
	}()

	gate := stability.New(25*time.Millisecond, 3*time.Second)
	got := gate.Wait(context.Background(), path)
	<-done
	if got != stability.Stable {
		t.Fatalf("expected stable once writer finished, got %s", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != int64(1+chunks*len("chunk")) {
		t.Fatalf("unexpected final size %d", info.Size())
	}
}

func TestWaitObservesCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jpg")
	writeFile(t, path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	gate := stability.New(10*time.Millisecond, 10*time.Second)
	start := time.Now()
	if got := gate.Wait(ctx, path); got != stability.Canceled {
		t.Fatalf("expected canceled, got %s", got)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("cancellation not observed promptly: %s", time.Since(start))
	}
}

func TestResultString(t *testing.T) {
	cases := map[stability.Result]string{
		stability.Stable:   "stable",
		stability.TimedOut: "timed_out",
		stability.Missing:  "missing",
		stability.Canceled: "canceled",
	}
	for result, want := range cases {
		if got := result.String(); got != want {
			t.Fatalf("Result(%d).String() = %q, want %q", result, got, want)
		}
	}
}
