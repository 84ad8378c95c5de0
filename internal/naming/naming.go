// Package naming derives output file names for composited photos.
//
// With a prefix, outputs are numbered <prefix>_<n>.jpg where n is one past
// the highest number already present in the output folder. The counter is
// never persisted: every allocation rescans the folder, so callers that write
// concurrently under the same prefix must serialize allocation and write
// themselves.
package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	outputExt       = ".jpg"
	processedSuffix = "_processed"
)

// NextIndex returns one more than the largest n among entries named
// <prefix>_<n>.jpg in dir, or 1 when the folder is missing or nothing matches.
func NextIndex(dir, prefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("scan output folder: %w", err)
	}
	highest := 0
	for _, entry := range entries {
		if n, ok := parseSequence(entry.Name(), prefix); ok && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func parseSequence(name, prefix string) (int, bool) {
	head := prefix + "_"
	if !strings.HasPrefix(name, head) || !strings.HasSuffix(name, outputExt) {
		return 0, false
	}
	digits := name[len(head) : len(name)-len(outputExt)]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SequenceName formats the n-th output name for prefix.
func SequenceName(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n) + outputExt
}

// ProcessedName derives <stem>_processed.jpg from a source path. The stem is
// NFC-normalized so names written by macOS tethering tools compare equal to
// the ones typed by hand.
func ProcessedName(source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return norm.NFC.String(stem) + processedSuffix + outputExt
}

// OutputPath resolves where the composite of source should be written. When
// prefix is empty the derived processed name is used; otherwise the next
// sequence number is allocated by scanning dir.
func OutputPath(dir, prefix, source string) (string, error) {
	if prefix == "" {
		return filepath.Join(dir, ProcessedName(source)), nil
	}
	n, err := NextIndex(dir, prefix)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SequenceName(prefix, n)), nil
}

// IsDerived reports whether name looks like a file this program produced.
// Such files are ignored if they land back in a watched folder.
func IsDerived(name string) bool {
	return strings.Contains(filepath.Base(name), processedSuffix)
}
