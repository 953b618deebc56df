package preprocess

import (
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"gocv.io/x/gocv"
)

// Mat prepares regions of BGR gocv frames.
type Mat struct {
	table   *[256]float32
	resized gocv.Mat
	rgb     gocv.Mat
	mu      sync.Mutex // Protects scratch Mats
}

// NewMat returns a preprocessor using the given normalization.
func NewMat(norm eyestate.Normalization) *Mat {
	return &Mat{
		table:   norm.Table(),
		resized: gocv.NewMat(),
		rgb:     gocv.NewMat(),
	}
}

// Prepare crops r out of frame and returns the model input tensor.
// A region with no area after clipping yields eyestate.ErrDegenerateRegion.
func (p *Mat) Prepare(frame gocv.Mat, r image.Rectangle) (eyestate.Tensor, error) {
	if frame.Channels() != 3 {
		return eyestate.Tensor{}, fmt.Errorf("expected 3-channel frame, got %d", frame.Channels())
	}
	r, err := Region(r, image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if err != nil {
		return eyestate.Tensor{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	roi := frame.Region(r)
	defer roi.Close()

	gocv.Resize(roi, &p.resized, image.Pt(eyestate.InputWidth, eyestate.InputHeight), 0, 0, gocv.InterpolationLinear)
	gocv.CvtColor(p.resized, &p.rgb, gocv.ColorBGRToRGB)

	pix, err := p.rgb.DataPtrUint8()
	if err != nil {
		return eyestate.Tensor{}, fmt.Errorf("read pixels: %w", err)
	}
	return fill(pix, pixelLayout{
		stride:   eyestate.InputWidth * 3,
		channels: 3,
		order:    rgbOrder,
	}, p.table)
}

// Close releases the scratch buffers.
func (p *Mat) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resized.Close()
	p.rgb.Close()
	return nil
}
