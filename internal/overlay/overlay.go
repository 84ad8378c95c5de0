// Package overlay classifies photo orientation and composites branding frames.
//
// Sources are decoded with their EXIF orientation applied, so a portrait shot
// stored sideways by the camera is measured the way it is displayed. The
// overlay for the detected orientation is stretched to the exact source
// dimensions, blended over it with straight alpha, and the flattened result is
// written as a quality 90 JPEG.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"capturesync/internal/fileutil"
)

// JPEGQuality is the fixed encode quality for published images.
const JPEGQuality = 90

// ErrNoOverlay reports that no usable overlay exists for an orientation. It
// marks a skip, not a failure.
var ErrNoOverlay = errors.New("no overlay for orientation")

// Overlays holds the configured asset for each orientation.
type Overlays struct {
	Landscape string
	Portrait  string
}

// For returns the configured path for orientation, which may be empty.
func (o Overlays) For(orientation Orientation) string {
	if orientation == Portrait {
		return o.Portrait
	}
	return o.Landscape
}

// Any reports whether at least one overlay is configured.
func (o Overlays) Any() bool {
	return o.Landscape != "" || o.Portrait != ""
}

// Resolve returns the overlay path for orientation, or ErrNoOverlay when it is
// unset or does not point at an existing regular file.
func (o Overlays) Resolve(orientation Orientation) (string, error) {
	path := o.For(orientation)
	if path == "" {
		return "", fmt.Errorf("%w: %s not configured", ErrNoOverlay, orientation)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s overlay %s not found", ErrNoOverlay, orientation, path)
	}
	return path, nil
}

// Load decodes a source photo with its embedded orientation applied.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Composite stretches the overlay at overlayPath to the size of src and blends
// it over src. The returned image is fully opaque.
func Composite(src image.Image, overlayPath string) (*image.NRGBA, error) {
	frame, err := imaging.Open(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("decode overlay %s: %w", overlayPath, err)
	}
	bounds := src.Bounds()
	resized := imaging.Resize(frame, bounds.Dx(), bounds.Dy(), imaging.Lanczos)
	blended := imaging.Overlay(src, resized, image.Pt(0, 0), 1.0)
	flatten(blended)
	return blended, nil
}

// flatten drops the alpha channel the way an RGB conversion does: color
// channels are kept as stored and every pixel becomes opaque.
func flatten(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}

// WriteJPEG encodes img to path atomically.
func WriteJPEG(path string, img image.Image) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
		return nil
	})
}

// Result describes a rendered composite.
type Result struct {
	Orientation Orientation
	Overlay     string
	Image       *image.NRGBA
}

// Render decodes source, classifies it and composites the matching overlay.
// A missing overlay yields ErrNoOverlay together with the orientation so the
// caller can report the skip.
func Render(source string, overlays Overlays) (Result, error) {
	img, err := Load(source)
	if err != nil {
		return Result{}, err
	}
	orientation := OrientationOf(img)
	path, err := overlays.Resolve(orientation)
	if err != nil {
		return Result{Orientation: orientation}, err
	}
	composite, err := Composite(img, path)
	if err != nil {
		return Result{Orientation: orientation, Overlay: path}, err
	}
	return Result{Orientation: orientation, Overlay: path, Image: composite}, nil
}
