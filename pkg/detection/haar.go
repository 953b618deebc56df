package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-eyestate/pkg/debug"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"gocv.io/x/gocv"
)

// HaarDetector finds eyes with an OpenCV cascade classifier.
type HaarDetector struct {
	classifier gocv.CascadeClassifier
	gray       gocv.Mat
	config     Config
	mu         sync.Mutex // Protects gray
}

// NewHaar loads the cascade at cfg.CascadePath. A missing or unparsable file
// is reported as eyestate.ErrModelLoad.
func NewHaar(cfg Config) (*HaarDetector, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &eyestate.ConfigError{Field: "detection", Message: errs[0]}
	}
	if _, err := os.Stat(cfg.CascadePath); err != nil {
		return nil, fmt.Errorf("%w: cascade file not found: %s", eyestate.ErrModelLoad, cfg.CascadePath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("%w: cannot parse cascade %s", eyestate.ErrModelLoad, cfg.CascadePath)
	}

	return &HaarDetector{
		classifier: classifier,
		gray:       gocv.NewMat(),
		config:     cfg,
	}, nil
}

// Detect returns eye rectangles in frame pixel coordinates.
// frame must be a 3-channel BGR image.
func (d *HaarDetector) Detect(frame gocv.Mat) ([]image.Rectangle, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	gocv.CvtColor(frame, &d.gray, gocv.ColorBGRToGray)
	if d.config.Equalize {
		gocv.EqualizeHist(d.gray, &d.gray)
	}

	regions := d.classifier.DetectMultiScaleWithParams(
		d.gray,
		d.config.ScaleFactor,
		d.config.MinNeighbors,
		0,
		d.config.MinSize,
		d.config.MaxSize,
	)
	SortReadingOrder(regions)

	debug.FrameLog("👁️  haar: %d region(s)\n", len(regions))
	return regions, nil
}

// Close releases the cascade and scratch buffer.
func (d *HaarDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gray.Close()
	return d.classifier.Close()
}
