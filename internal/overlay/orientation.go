package overlay

import "image"

// Orientation is the layout class used to pick a branding overlay.
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// Classify maps pixel dimensions to an orientation. Square images count as
// landscape.
func Classify(width, height int) Orientation {
	if width >= height {
		return Landscape
	}
	return Portrait
}

// OrientationOf classifies an already decoded (and orientation-normalized) image.
func OrientationOf(img image.Image) Orientation {
	bounds := img.Bounds()
	return Classify(bounds.Dx(), bounds.Dy())
}
