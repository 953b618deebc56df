// Package preprocess turns an eye region of a frame into the classifier's
// input tensor: crop, bilinear resize to 150x150, RGB channel order,
// per-channel normalization, NHWC layout.
package preprocess

import (
	"fmt"
	"image"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
)

// Region clips r to bounds and rejects regions with no area.
func Region(r, bounds image.Rectangle) (image.Rectangle, error) {
	clipped := r.Intersect(bounds)
	if eyestate.Degenerate(clipped) {
		return clipped, fmt.Errorf("%w: %v outside %v", eyestate.ErrDegenerateRegion, r, bounds)
	}
	return clipped, nil
}

// pixelLayout describes interleaved 8-bit pixel data.
type pixelLayout struct {
	stride   int    // bytes per row
	channels int    // bytes per pixel
	order    [3]int // offsets of R, G, B within a pixel
}

// rgbOrder reads channels in R, G, B order from RGB and RGBA buffers alike.
var rgbOrder = [3]int{0, 1, 2}

// fill writes InputHeight x InputWidth pixels from pix into an NHWC tensor,
// mapping each byte through table.
func fill(pix []uint8, layout pixelLayout, table *[256]float32) (eyestate.Tensor, error) {
	need := (eyestate.InputHeight-1)*layout.stride + eyestate.InputWidth*layout.channels
	if len(pix) < need {
		return eyestate.Tensor{}, fmt.Errorf("pixel buffer too small: %d < %d", len(pix), need)
	}

	t := eyestate.NewTensor(eyestate.InputHeight, eyestate.InputWidth, eyestate.InputChannels)
	i := 0
	for y := 0; y < eyestate.InputHeight; y++ {
		row := pix[y*layout.stride:]
		for x := 0; x < eyestate.InputWidth; x++ {
			px := row[x*layout.channels:]
			t.Data[i+0] = table[px[layout.order[0]]]
			t.Data[i+1] = table[px[layout.order[1]]]
			t.Data[i+2] = table[px[layout.order[2]]]
			i += eyestate.InputChannels
		}
	}
	return t, nil
}
