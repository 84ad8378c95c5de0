package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"capturesync/internal/faceindex"
	"capturesync/internal/pipeline"
	"capturesync/internal/testsupport"
)

// recorder collects every record it sees.
type recorder struct {
	mu      sync.Mutex
	records []pipeline.Record
}

func (r *recorder) OnEvent(rec pipeline.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorder) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Line())
	}
	return out
}

func (r *recorder) kinds(kind pipeline.Kind) []pipeline.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pipeline.Record
	for _, rec := range r.records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

func (r *recorder) hasLine(line string) bool {
	return slices.Contains(r.lines(), line)
}

// dropImage writes a finished image outside the source folder and renames it
// in, so watchers never observe a partial file.
func dropImage(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	staging := filepath.Join(filepath.Dir(dir), "staging")
	tmp := filepath.Join(staging, name)
	testsupport.WriteImage(t, tmp, width, height, testsupport.NamedColor("white"))
	dst := filepath.Join(dir, name)
	if err := os.Rename(tmp, dst); err != nil {
		t.Fatalf("rename %s: %v", name, err)
	}
	return dst
}

func outputNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), faceindex.FileName) {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)
	return names
}

type fakeDetector struct {
	faces int
	err   error
}

func (f fakeDetector) Detect(context.Context, string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float64, f.faces)
	for i := range vectors {
		vectors[i] = make([]float64, faceindex.VectorLength)
		vectors[i][0] = float64(i)
	}
	return vectors, nil
}

var errEngineDown = errors.New("engine down")
