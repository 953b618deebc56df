// Package annotate draws predictions onto frames and presents them, either
// in a desktop window or as JPEG frames handed to a sink.
package annotate

import (
	"image"
	"image/color"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
)

// Drawing parameters shared by all annotators.
const (
	Thickness  = 2
	FontScale  = 0.7
	TextOffset = 10 // pixels above the box
)

var (
	openColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	closedColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Color returns green for an open eye and red for a closed one.
func Color(l eyestate.Label) color.RGBA {
	if l == eyestate.Open {
		return openColor
	}
	return closedColor
}

// TextOrigin is the baseline-left point of the label for region r.
func TextOrigin(r image.Rectangle) image.Point {
	return image.Pt(r.Min.X, r.Min.Y-TextOffset)
}
