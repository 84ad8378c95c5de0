package faceindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"capturesync/internal/fileutil"
)

// FileName is the index file kept in every output folder.
const FileName = "index.json"

// VectorLength is the dimension of a face encoding.
const VectorLength = 128

// ErrVectorLength reports an encoding with the wrong dimension.
var ErrVectorLength = errors.New("face vector has wrong length")

// Entry is the stored record for one image.
type Entry struct {
	Image   string      `json:"image"`
	Vectors [][]float64 `json:"vectors"`
}

// Index is an ordered, filename-keyed collection of entries.
type Index struct {
	entries []Entry
}

// PathFor returns the index location for an output folder.
func PathFor(outputDir string) string {
	return filepath.Join(outputDir, FileName)
}

// Load reads the index at path. Absent or unparsable files yield an empty
// index; corruption is never reported as an error.
func Load(path string) *Index {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Index{}
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return &Index{}
	}
	return &Index{entries: entries}
}

// Len returns the number of entries.
func (x *Index) Len() int {
	return len(x.entries)
}

// Entries returns a copy of the entries in index order.
func (x *Index) Entries() []Entry {
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

// Get returns the entry for image.
func (x *Index) Get(image string) (Entry, bool) {
	for _, entry := range x.entries {
		if entry.Image == image {
			return entry, true
		}
	}
	return Entry{}, false
}

// Update replaces the entry for image with vectors. An empty vector list
// leaves the index untouched.
func (x *Index) Update(image string, vectors [][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	for i, vec := range vectors {
		if len(vec) != VectorLength {
			return fmt.Errorf("%w: vector %d has %d values", ErrVectorLength, i, len(vec))
		}
	}
	kept := x.entries[:0]
	for _, entry := range x.entries {
		if entry.Image != image {
			kept = append(kept, entry)
		}
	}
	x.entries = append(kept, Entry{Image: image, Vectors: vectors})
	return nil
}

// Save writes the whole index to path, replacing any previous file.
func (x *Index) Save(path string) error {
	entries := x.entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Match is an image whose faces resemble a probe.
type Match struct {
	Image    string
	Distance float64
}

// Match returns the images having any vector closer than threshold to probe,
// in index order, each with its best distance.
func (x *Index) Match(probe []float64, threshold float64) []Match {
	var matches []Match
	for _, entry := range x.entries {
		best := math.Inf(1)
		for _, vec := range entry.Vectors {
			if d := Distance(probe, vec); d < best {
				best = d
			}
		}
		if best < threshold {
			matches = append(matches, Match{Image: entry.Image, Distance: best})
		}
	}
	return matches
}

// Distance is the Euclidean distance between two encodings. Vectors of
// different lengths are infinitely far apart.
func Distance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// WithLock runs fn while holding an exclusive lock file beside the index at
// path, so a second process (a manual `process` run next to the daemon, say)
// cannot interleave its load-update-save with ours.
func WithLock(ctx context.Context, path string, fn func() error) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock index: %s busy", path)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}

// Record detects faces in imagePath and stores them under its base name in
// the index at indexPath. It returns the number of faces stored; zero faces
// leave the index file untouched.
func Record(ctx context.Context, detector Detector, indexPath, imagePath string) (int, error) {
	vectors, err := detector.Detect(ctx, imagePath)
	if err != nil {
		return 0, err
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	err = WithLock(ctx, indexPath, func() error {
		index := Load(indexPath)
		if err := index.Update(filepath.Base(imagePath), vectors); err != nil {
			return err
		}
		return index.Save(indexPath)
	})
	if err != nil {
		return 0, err
	}
	return len(vectors), nil
}
