package preprocess

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
)

// Image prepares regions of decoded still images without cgo.
type Image struct {
	table *[256]float32
}

// NewImage returns a preprocessor using the given normalization.
func NewImage(norm eyestate.Normalization) *Image {
	return &Image{table: norm.Table()}
}

// Prepare crops r out of img and returns the model input tensor.
func (p *Image) Prepare(img image.Image, r image.Rectangle) (eyestate.Tensor, error) {
	r, err := Region(r, img.Bounds())
	if err != nil {
		return eyestate.Tensor{}, err
	}

	crop := imaging.Crop(img, r)
	resized := imaging.Resize(crop, eyestate.InputWidth, eyestate.InputHeight, imaging.Linear)

	return fill(resized.Pix, pixelLayout{
		stride:   resized.Stride,
		channels: 4,
		order:    rgbOrder,
	}, p.table)
}
