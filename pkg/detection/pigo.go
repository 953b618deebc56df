package detection

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/teslashibe/go-eyestate/pkg/debug"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"gocv.io/x/gocv"
)

// Pupil search offsets relative to a detected face, in units of face scale.
const (
	eyeRowOffset   = -0.075
	leftColOffset  = -0.175
	rightColOffset = 0.185
	pupilScale     = 0.25
	pupilPerturbs  = 63
)

// PigoDetector finds faces with pigo and then localizes both pupils in each
// face. Each pupil becomes a square eye region.
type PigoDetector struct {
	face   *pigo.Pigo
	pupil  *pigo.PuplocCascade
	config Config
}

// NewPigo loads the face and pupil cascades. Missing or corrupt files are
// reported as eyestate.ErrModelLoad.
func NewPigo(cfg Config) (*PigoDetector, error) {
	faceData, err := os.ReadFile(cfg.FaceCascadePath)
	if err != nil {
		return nil, fmt.Errorf("%w: face cascade: %v", eyestate.ErrModelLoad, err)
	}
	face, err := pigo.NewPigo().Unpack(faceData)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack face cascade: %v", eyestate.ErrModelLoad, err)
	}

	pupilData, err := os.ReadFile(cfg.PupilCascadePath)
	if err != nil {
		return nil, fmt.Errorf("%w: pupil cascade: %v", eyestate.ErrModelLoad, err)
	}
	pl := &pigo.PuplocCascade{}
	pupil, err := pl.UnpackCascade(pupilData)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack pupil cascade: %v", eyestate.ErrModelLoad, err)
	}

	return &PigoDetector{face: face, pupil: pupil, config: cfg}, nil
}

// Detect converts a BGR Mat to an image and runs DetectImage.
func (d *PigoDetector) Detect(frame gocv.Mat) ([]image.Rectangle, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return d.DetectImage(img), nil
}

// DetectImage returns eye regions in img's coordinate space.
func (d *PigoDetector) DetectImage(img image.Image) []image.Rectangle {
	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil
	}

	params := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(img),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}
	cp := pigo.CascadeParams{
		MinSize:     d.config.MinFaceSize,
		MaxSize:     max(rows, cols),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: params,
	}

	faces := d.face.RunCascade(cp, 0)
	faces = d.face.ClusterDetections(faces, 0.2)

	var regions []image.Rectangle
	for _, f := range faces {
		if f.Q < d.config.FaceQuality {
			continue
		}
		scale := float64(f.Scale)
		side := int(scale * d.config.EyeBoxRatio)
		for _, colOffset := range []float64{leftColOffset, rightColOffset} {
			found := d.pupil.RunDetector(pigo.Puploc{
				Row:      f.Row + int(eyeRowOffset*scale),
				Col:      f.Col + int(colOffset*scale),
				Scale:    float32(scale * pupilScale),
				Perturbs: pupilPerturbs,
			}, params, 0, false)
			if found == nil || found.Row <= 0 || found.Col <= 0 {
				continue
			}
			r := Clip(squareAround(found.Col, found.Row, side).Add(bounds.Min), bounds)
			if !eyestate.Degenerate(r) {
				regions = append(regions, r)
			}
		}
	}
	SortReadingOrder(regions)

	debug.FrameLog("👁️  pigo: %d face(s), %d eye region(s)\n", len(faces), len(regions))
	return regions
}

// Close is a no-op; pigo cascades hold no native resources.
func (d *PigoDetector) Close() error { return nil }
