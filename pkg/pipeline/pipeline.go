// Package pipeline runs the per-frame eye-state loop:
// read → detect → prepare → classify → annotate → present → poll quit.
//
// The loop is generic over the frame type so that every stage can be
// replaced with a synthetic implementation in tests.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
)

// Source yields frames. Read returns eyestate.ErrReadFailure (wrapped or not)
// when the stream ends.
type Source[F any] interface {
	Read() (F, error)
}

// Detector finds candidate eye regions in a frame.
type Detector[F any] interface {
	Detect(frame F) ([]image.Rectangle, error)
}

// Preprocessor turns one region into a classifier input.
// It returns eyestate.ErrDegenerateRegion for regions with no area.
type Preprocessor[F any] interface {
	Prepare(frame F, region image.Rectangle) (eyestate.Tensor, error)
}

// Classifier maps a tensor to an open-eye probability.
type Classifier interface {
	Predict(t eyestate.Tensor) (float32, error)
}

// Annotator draws a prediction onto the frame in place.
type Annotator[F any] interface {
	Annotate(frame F, p eyestate.Prediction)
}

// Presenter shows a finished frame and reports whether the user asked to quit.
type Presenter[F any] interface {
	Present(frame F) error
	PollQuit() bool
}

// Stages bundles the loop collaborators.
type Stages[F any] struct {
	Source       Source[F]
	Detector     Detector[F]
	Preprocessor Preprocessor[F]
	Classifier   Classifier
	Annotator    Annotator[F]
	Presenter    Presenter[F]
}

func (s Stages[F]) validate() error {
	switch {
	case s.Source == nil:
		return errors.New("pipeline: source required")
	case s.Detector == nil:
		return errors.New("pipeline: detector required")
	case s.Preprocessor == nil:
		return errors.New("pipeline: preprocessor required")
	case s.Classifier == nil:
		return errors.New("pipeline: classifier required")
	case s.Annotator == nil:
		return errors.New("pipeline: annotator required")
	case s.Presenter == nil:
		return errors.New("pipeline: presenter required")
	}
	return nil
}

// State is the loop controller state.
type State int

const (
	Running State = iota
	Terminating
)

func (s State) String() string {
	if s == Terminating {
		return "terminating"
	}
	return "running"
}

// Reason explains why the loop terminated.
type Reason string

const (
	ReasonQuit        Reason = "quit"
	ReasonEndOfStream Reason = "end-of-stream"
	ReasonCancelled   Reason = "cancelled"
)

// FrameResult is what one iteration produced.
type FrameResult struct {
	Index       int                   `json:"index"`
	Regions     int                   `json:"regions"`
	Predictions []eyestate.Prediction `json:"predictions"`
	Skipped     int                   `json:"skipped"`
	Elapsed     time.Duration         `json:"elapsed"`
}

// Observer receives each frame's result after the frame has been presented.
type Observer func(FrameResult)

// Stats summarises a finished run.
type Stats struct {
	Frames      int    `json:"frames"`
	Regions     int    `json:"regions"`
	Predictions int    `json:"predictions"`
	Skipped     int    `json:"skipped"`
	Reason      Reason `json:"reason"`
}

// Loop is the single-threaded frame loop.
type Loop[F any] struct {
	stages    Stages[F]
	observers []Observer
	logger    *slog.Logger
	state     State
}

// Option configures a Loop.
type Option[F any] func(*Loop[F])

// WithObserver registers an observer. Observers run synchronously on the loop.
func WithObserver[F any](o Observer) Option[F] {
	return func(l *Loop[F]) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

// WithLogger sets the logger used for per-frame diagnostics.
func WithLogger[F any](logger *slog.Logger) Option[F] {
	return func(l *Loop[F]) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loop. All stages are required.
func New[F any](stages Stages[F], opts ...Option[F]) (*Loop[F], error) {
	if err := stages.validate(); err != nil {
		return nil, err
	}
	l := &Loop[F]{
		stages: stages,
		logger: slog.Default(),
		state:  Running,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// State returns the current controller state.
func (l *Loop[F]) State() State {
	return l.state
}

// Run processes frames until the user quits, the stream ends, or ctx is
// cancelled. Those three are graceful and return a nil error.
// Cancellation is only observed between frames.
func (l *Loop[F]) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	l.state = Running

	for l.state == Running {
		if ctx.Err() != nil {
			stats.Reason = ReasonCancelled
			break
		}

		frame, err := l.stages.Source.Read()
		if err != nil {
			if errors.Is(err, eyestate.ErrReadFailure) {
				l.logger.Info("frame source ended", "frames", stats.Frames, "error", err)
				stats.Reason = ReasonEndOfStream
				break
			}
			l.state = Terminating
			return stats, eyestate.WrapStage("read", err)
		}

		result, err := l.processFrame(frame, stats.Frames)
		if err != nil {
			l.state = Terminating
			return stats, err
		}

		stats.Frames++
		stats.Regions += result.Regions
		stats.Predictions += len(result.Predictions)
		stats.Skipped += result.Skipped

		for _, o := range l.observers {
			o(result)
		}

		if l.stages.Presenter.PollQuit() {
			stats.Reason = ReasonQuit
			break
		}
	}

	l.state = Terminating
	return stats, nil
}

// processFrame runs detection, classification and annotation for one frame
// and presents it. Every non-degenerate region is classified exactly once.
func (l *Loop[F]) processFrame(frame F, index int) (FrameResult, error) {
	start := time.Now()
	result := FrameResult{Index: index}

	regions, err := l.stages.Detector.Detect(frame)
	if err != nil {
		return result, eyestate.WrapStage("detect", err)
	}
	result.Regions = len(regions)
	result.Predictions = make([]eyestate.Prediction, 0, len(regions))

	for _, region := range regions {
		tensor, err := l.stages.Preprocessor.Prepare(frame, region)
		if err != nil {
			if errors.Is(err, eyestate.ErrDegenerateRegion) {
				result.Skipped++
				l.logger.Debug("skipping region", "frame", index, "region", region.String())
				continue
			}
			return result, eyestate.WrapStage("preprocess", err)
		}

		p, err := l.stages.Classifier.Predict(tensor)
		if err != nil {
			return result, eyestate.WrapStage("classify", err)
		}

		pred := eyestate.NewPrediction(region, p)
		l.stages.Annotator.Annotate(frame, pred)
		result.Predictions = append(result.Predictions, pred)
	}

	if err := l.stages.Presenter.Present(frame); err != nil {
		return result, eyestate.WrapStage("present", fmt.Errorf("frame %d: %w", index, err))
	}

	result.Elapsed = time.Since(start)
	return result, nil
}
