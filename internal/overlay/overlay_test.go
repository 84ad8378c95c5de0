package overlay_test

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"capturesync/internal/overlay"
	"capturesync/internal/testsupport"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		width, height int
		want          overlay.Orientation
	}{
		{800, 600, overlay.Landscape},
		{600, 800, overlay.Portrait},
		{500, 500, overlay.Landscape},
		{1, 2, overlay.Portrait},
		{2, 1, overlay.Landscape},
	}
	for _, tt := range tests {
		if got := overlay.Classify(tt.width, tt.height); got != tt.want {
			t.Fatalf("Classify(%d, %d) = %s, want %s", tt.width, tt.height, got, tt.want)
		}
	}
}

func TestLoadAppliesEXIFOrientation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.jpg")
	testsupport.WriteJPEGWithOrientation(t, path, 80, 60, 6)

	img, err := overlay.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 60 || b.Dy() != 80 {
		t.Fatalf("expected 60x80 after rotation, got %dx%d", b.Dx(), b.Dy())
	}
	if got := overlay.OrientationOf(img); got != overlay.Portrait {
		t.Fatalf("expected portrait, got %s", got)
	}
}

func TestRenderLandscapeRedOverlay(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlays("red", ""))
	source := filepath.Join(cfg.Paths.SourceDir, "test_landscape.png")
	testsupport.WriteImage(t, source, 800, 600, color.White)

	result, err := overlay.Render(source, overlay.Overlays{Landscape: cfg.Overlays.Landscape})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.Orientation != overlay.Landscape {
		t.Fatalf("expected landscape, got %s", result.Orientation)
	}
	if b := result.Image.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Fatalf("expected 800x600, got %dx%d", b.Dx(), b.Dy())
	}
	assertNear(t, result.Image.NRGBAAt(400, 300), color.NRGBA{R: 255, A: 255}, 2)

	out := filepath.Join(cfg.Paths.OutputDir, "test_landscape_processed.jpg")
	if err := overlay.WriteJPEG(out, result.Image); err != nil {
		t.Fatalf("WriteJPEG: %v", err)
	}
	decoded := testsupport.DecodeImage(t, out)
	if b := decoded.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Fatalf("encoded image is %dx%d", b.Dx(), b.Dy())
	}
	if _, ok := decoded.(*image.YCbCr); !ok {
		t.Fatalf("expected a 3-channel JPEG, decoded %T", decoded)
	}
}

func TestRenderPortraitWithoutPortraitOverlaySkips(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlays("red", ""))
	source := filepath.Join(cfg.Paths.SourceDir, "test_portrait.png")
	testsupport.WriteImage(t, source, 600, 800, color.White)

	result, err := overlay.Render(source, overlay.Overlays{Landscape: cfg.Overlays.Landscape})
	if !errors.Is(err, overlay.ErrNoOverlay) {
		t.Fatalf("expected ErrNoOverlay, got %v", err)
	}
	if result.Orientation != overlay.Portrait {
		t.Fatalf("expected portrait orientation in result, got %s", result.Orientation)
	}
}

func TestResolveMissingFile(t *testing.T) {
	overlays := overlay.Overlays{Landscape: filepath.Join(t.TempDir(), "gone.png")}
	if _, err := overlays.Resolve(overlay.Landscape); !errors.Is(err, overlay.ErrNoOverlay) {
		t.Fatalf("expected ErrNoOverlay for missing file, got %v", err)
	}
	if !overlays.Any() {
		t.Fatal("expected Any to report a configured overlay")
	}
	if (overlay.Overlays{}).Any() {
		t.Fatal("empty overlays reported as configured")
	}
}

func TestCompositeTransparentOverlayKeepsSource(t *testing.T) {
	dir := t.TempDir()
	framePath := filepath.Join(dir, "clear.png")
	testsupport.WriteImage(t, framePath, 10, 10, testsupport.NamedColor("clear"))
	sourcePath := filepath.Join(dir, "blue.png")
	testsupport.WriteImage(t, sourcePath, 64, 48, color.NRGBA{R: 20, G: 60, B: 200, A: 255})

	src, err := overlay.Load(sourcePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	composite, err := overlay.Composite(src, framePath)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	assertNear(t, composite.NRGBAAt(32, 24), color.NRGBA{R: 20, G: 60, B: 200, A: 255}, 1)

	out := filepath.Join(dir, "out.jpg")
	if err := overlay.WriteJPEG(out, composite); err != nil {
		t.Fatalf("WriteJPEG: %v", err)
	}
	r, g, b, _ := testsupport.DecodeImage(t, out).At(32, 24).RGBA()
	got := color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
	assertNear(t, got, color.NRGBA{R: 20, G: 60, B: 200, A: 255}, 8)
}

func TestCompositeBlendsStraightAlpha(t *testing.T) {
	dir := t.TempDir()
	framePath := filepath.Join(dir, "half.png")
	testsupport.WriteImage(t, framePath, 8, 8, color.NRGBA{R: 255, A: 128})
	sourcePath := filepath.Join(dir, "white.png")
	testsupport.WriteImage(t, sourcePath, 16, 16, color.White)

	src, err := overlay.Load(sourcePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	composite, err := overlay.Composite(src, framePath)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	assertNear(t, composite.NRGBAAt(8, 8), color.NRGBA{R: 255, G: 127, B: 127, A: 255}, 3)
}

func TestWriteJPEGFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "missing", "out.jpg")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	if err := overlay.WriteJPEG(out, img); err == nil {
		t.Fatal("expected error writing into a missing folder")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err=%v", err)
	}
}

func assertNear(t *testing.T, got, want color.NRGBA, tolerance int) {
	t.Helper()
	diff := func(a, b uint8) int {
		d := int(a) - int(b)
		if d < 0 {
			return -d
		}
		return d
	}
	if diff(got.R, want.R) > tolerance || diff(got.G, want.G) > tolerance ||
		diff(got.B, want.B) > tolerance || diff(got.A, want.A) > tolerance {
		t.Fatalf("pixel %+v not within %d of %+v", got, tolerance, want)
	}
}
