// Package detection finds eye regions in frames.
//
// Two backends are provided: an OpenCV Haar cascade (the default, used by the
// live loop) and a pure-Go pigo face + pupil cascade that works on plain
// image.Image values without cgo.
package detection

import (
	"image"
	"sort"
)

// Config holds detector configuration.
type Config struct {
	// === Haar cascade (gocv) ===
	CascadePath  string      // Path to haarcascade_eye.xml
	ScaleFactor  float64     // Pyramid scale step (default 1.3)
	MinNeighbors int         // Neighbour hits required per region (default 5)
	MinSize      image.Point // Smallest region considered; zero means no limit
	MaxSize      image.Point // Largest region considered; zero means no limit
	Equalize     bool        // Histogram-equalize the gray frame first

	// === pigo ===
	FaceCascadePath  string  // Path to the pigo facefinder cascade
	PupilCascadePath string  // Path to the pigo puploc cascade
	MinFaceSize      int     // Smallest face in pixels (default 60)
	FaceQuality      float32 // Minimum face detection score (default 5)
	EyeBoxRatio      float64 // Eye box side as a fraction of face size (default 0.3)
}

// DefaultConfig returns the desktop defaults: scale 1.3, 5 neighbours,
// no size limits, no equalization.
func DefaultConfig() Config {
	return Config{
		CascadePath:  "models/haarcascade_eye.xml",
		ScaleFactor:  1.3,
		MinNeighbors: 5,

		FaceCascadePath:  "models/facefinder",
		PupilCascadePath: "models/puploc",
		MinFaceSize:      60,
		FaceQuality:      5,
		EyeBoxRatio:      0.3,
	}
}

// MobileConfig returns the settings tuned for small 320x240 frames:
// finer pyramid, fewer neighbours, 30px minimum and equalized input.
func MobileConfig() Config {
	cfg := DefaultConfig()
	cfg.ScaleFactor = 1.1
	cfg.MinNeighbors = 3
	cfg.MinSize = image.Pt(30, 30)
	cfg.Equalize = true
	return cfg
}

// Validate returns a list of problems with the config, or nil.
func (c Config) Validate() []string {
	var errors []string
	if c.ScaleFactor <= 1 {
		errors = append(errors, "scale factor must be > 1")
	}
	if c.MinNeighbors < 0 {
		errors = append(errors, "min neighbors must be >= 0")
	}
	if c.MinSize.X < 0 || c.MinSize.Y < 0 {
		errors = append(errors, "min size must not be negative")
	}
	if c.MaxSize != (image.Point{}) && (c.MaxSize.X < c.MinSize.X || c.MaxSize.Y < c.MinSize.Y) {
		errors = append(errors, "max size must be >= min size")
	}
	return errors
}

// Clip restricts r to the frame bounds. The result may be empty when r lies
// entirely outside the frame.
func Clip(r, bounds image.Rectangle) image.Rectangle {
	return r.Intersect(bounds)
}

// SortReadingOrder orders regions top-to-bottom, then left-to-right, so
// annotations and logs are stable between frames.
func SortReadingOrder(regions []image.Rectangle) {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Min.Y != regions[j].Min.Y {
			return regions[i].Min.Y < regions[j].Min.Y
		}
		return regions[i].Min.X < regions[j].Min.X
	})
}

// squareAround returns a side x side box centered on (col, row).
func squareAround(col, row, side int) image.Rectangle {
	half := side / 2
	return image.Rect(col-half, row-half, col-half+side, row-half+side)
}
