package naming_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"capturesync/internal/naming"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestNextIndexEmptyAndMissingFolders(t *testing.T) {
	dir := t.TempDir()
	if n, err := naming.NextIndex(dir, "x"); err != nil || n != 1 {
		t.Fatalf("empty folder: got %d, %v", n, err)
	}
	if n, err := naming.NextIndex(filepath.Join(dir, "missing"), "x"); err != nil || n != 1 {
		t.Fatalf("missing folder: got %d, %v", n, err)
	}
}

func TestNextIndexSkipsUnparsableEntries(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "x_1.jpg", "x_2.jpg", "x_5.jpg", "x_abc.jpg")

	n, err := naming.NextIndex(dir, "x")
	if err != nil {
		t.Fatalf("NextIndex: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6, got %d", n)
	}
}

func TestNextIndexIgnoresOtherPrefixesAndExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"x_3.jpg",
		"xy_9.jpg",
		"x_10.png",
		"x_.jpg",
		"x_-4.jpg",
		"x_1_2.jpg",
		"y_40.jpg",
		"x_7.jpeg",
	)
	if err := os.Mkdir(filepath.Join(dir, "x_99.jpg.d"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	n, err := naming.NextIndex(dir, "x")
	if err != nil {
		t.Fatalf("NextIndex: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}
}

func TestNextIndexAcceptsLeadingZeros(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "party_007.jpg")
	n, err := naming.NextIndex(dir, "party")
	if err != nil {
		t.Fatalf("NextIndex: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8, got %d", n)
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "wedding_1.jpg")

	got, err := naming.OutputPath(dir, "wedding", "/in/IMG_0001.JPG")
	if err != nil {
		t.Fatalf("OutputPath: %v", err)
	}
	if want := filepath.Join(dir, "wedding_2.jpg"); got != want {
		t.Fatalf("prefixed output: want %q, got %q", want, got)
	}

	got, err = naming.OutputPath(dir, "", "/in/test_landscape.png")
	if err != nil {
		t.Fatalf("OutputPath: %v", err)
	}
	if want := filepath.Join(dir, "test_landscape_processed.jpg"); got != want {
		t.Fatalf("derived output: want %q, got %q", want, got)
	}
}

func TestProcessedNameNormalizesStem(t *testing.T) {
	decomposed := "Cafe\u0301.jpeg"
	if got, want := naming.ProcessedName(decomposed), "Caf\u00e9_processed.jpg"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestIsDerived(t *testing.T) {
	if !naming.IsDerived("/out/a_processed.jpg") {
		t.Fatal("expected processed output to be derived")
	}
	if naming.IsDerived("/in/a.jpg") {
		t.Fatal("plain source flagged as derived")
	}
}

// Allocation is a pure function of folder contents, so two callers that scan
// before either writes receive the same number. Callers serialize.
func TestNextIndexUnsynchronizedCallersCanCollide(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "x_1.jpg")

	var wg sync.WaitGroup
	results := make([]int, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := naming.NextIndex(dir, "x")
			if err != nil {
				t.Errorf("NextIndex: %v", err)
			}
			results[i] = n
		}(i)
	}
	wg.Wait()
	if results[0] != 2 || results[1] != 2 {
		t.Fatalf("expected both scans to see 2 without an intervening write, got %v", results)
	}
}
