// Package still classifies decoded images offline with the same loop the
// live monitor uses, on pure-Go image types.
package still

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/teslashibe/go-eyestate/pkg/annotate"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"github.com/teslashibe/go-eyestate/pkg/pipeline"
	"github.com/teslashibe/go-eyestate/pkg/preprocess"
)

// ImageDetector finds eye regions in a decoded image.
// *detection.PigoDetector satisfies it.
type ImageDetector interface {
	DetectImage(img image.Image) []image.Rectangle
}

// Result is the outcome for one input image.
type Result struct {
	Predictions []eyestate.Prediction
	Skipped     int
	Annotated   *image.NRGBA // Copy of the input with boxes and labels
}

// Classify runs every image through detect, prepare, classify and annotate.
// A nil detector treats each whole image as one eye crop. Results are in
// input order.
func Classify(ctx context.Context, model pipeline.Classifier, det ImageDetector, norm eyestate.Normalization, images ...image.Image) ([]Result, error) {
	frames := make([]draw.Image, len(images))
	for i, img := range images {
		frames[i] = imaging.Clone(img)
	}

	results := make([]Result, len(images))
	var d pipeline.Detector[draw.Image] = wholeImage{}
	if det != nil {
		d = detectorAdapter{det}
	}

	loop, err := pipeline.New(pipeline.Stages[draw.Image]{
		Source:       &sliceSource{frames: frames},
		Detector:     d,
		Preprocessor: preprocessorAdapter{preprocess.NewImage(norm)},
		Classifier:   model,
		Annotator:    annotate.Image{},
		Presenter:    discard{},
	}, pipeline.WithObserver[draw.Image](func(res pipeline.FrameResult) {
		results[res.Index] = Result{
			Predictions: res.Predictions,
			Skipped:     res.Skipped,
			Annotated:   frames[res.Index].(*image.NRGBA),
		}
	}))
	if err != nil {
		return nil, err
	}

	stats, err := loop.Run(ctx)
	if err != nil {
		return nil, err
	}
	if stats.Frames != len(images) {
		return results[:stats.Frames], fmt.Errorf("stopped after %d of %d images: %s", stats.Frames, len(images), stats.Reason)
	}
	return results, nil
}

type sliceSource struct {
	frames []draw.Image
	next   int
}

func (s *sliceSource) Read() (draw.Image, error) {
	if s.next >= len(s.frames) {
		return nil, eyestate.ErrReadFailure
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

type wholeImage struct{}

func (wholeImage) Detect(img draw.Image) ([]image.Rectangle, error) {
	return []image.Rectangle{img.Bounds()}, nil
}

type detectorAdapter struct{ d ImageDetector }

func (a detectorAdapter) Detect(img draw.Image) ([]image.Rectangle, error) {
	return a.d.DetectImage(img), nil
}

type preprocessorAdapter struct{ p *preprocess.Image }

func (a preprocessorAdapter) Prepare(img draw.Image, r image.Rectangle) (eyestate.Tensor, error) {
	return a.p.Prepare(img, r)
}

type discard struct{}

func (discard) Present(draw.Image) error { return nil }
func (discard) PollQuit() bool           { return false }
