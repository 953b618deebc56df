package camera

import (
	"fmt"
	"sync"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"gocv.io/x/gocv"
)

// Capture reads BGR frames through OpenCV's VideoCapture.
// The returned Mat is reused between reads; callers must not keep it
// past the current iteration.
type Capture struct {
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	config Config

	closeOnce sync.Once
}

// Open opens the configured device or URI.
// Any failure is reported as eyestate.ErrDeviceUnavailable.
func Open(cfg Config) (*Capture, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if cfg.URI != "" {
		vc, err = gocv.VideoCaptureFile(cfg.URI)
	} else {
		vc, err = gocv.VideoCaptureDevice(cfg.Device)
	}
	if err != nil {
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", eyestate.ErrDeviceUnavailable, cfg.Describe(), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s not opened", eyestate.ErrDeviceUnavailable, cfg.Describe())
	}

	if cfg.URI == "" {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}

	return &Capture{
		vc:     vc,
		frame:  gocv.NewMat(),
		config: cfg,
	}, nil
}

// Read grabs the next frame. It returns eyestate.ErrReadFailure when the
// device stops delivering frames or delivers an empty one.
func (c *Capture) Read() (gocv.Mat, error) {
	if ok := c.vc.Read(&c.frame); !ok {
		return c.frame, fmt.Errorf("%w: %s", eyestate.ErrReadFailure, c.config.Describe())
	}
	if c.frame.Empty() {
		return c.frame, fmt.Errorf("%w: %s: empty frame", eyestate.ErrReadFailure, c.config.Describe())
	}
	if c.config.Mirror {
		gocv.Flip(c.frame, &c.frame, 1)
	}
	return c.frame, nil
}

// Close releases the device and the frame buffer. Safe to call twice.
func (c *Capture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.vc.Close()
		c.frame.Close()
	})
	return err
}
