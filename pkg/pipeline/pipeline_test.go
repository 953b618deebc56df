package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
)

// fakeFrame records what happened to it during one iteration.
type fakeFrame struct {
	id        int
	annotated []eyestate.Prediction
}

type fakeSource struct {
	frames []*fakeFrame
	next   int
	err    error // returned once frames run out
}

func (s *fakeSource) Read() (*fakeFrame, error) {
	if s.next >= len(s.frames) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, eyestate.ErrReadFailure
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

type fakeDetector struct {
	regions map[int][]image.Rectangle
}

func (d *fakeDetector) Detect(f *fakeFrame) ([]image.Rectangle, error) {
	return d.regions[f.id], nil
}

type fakePreprocessor struct {
	prepared []image.Rectangle
}

func (p *fakePreprocessor) Prepare(_ *fakeFrame, r image.Rectangle) (eyestate.Tensor, error) {
	if eyestate.Degenerate(r) {
		return eyestate.Tensor{}, eyestate.ErrDegenerateRegion
	}
	p.prepared = append(p.prepared, r)
	t := eyestate.NewTensor(1, 1, 1)
	// Smuggle the region width through the tensor so the fake classifier
	// can return a deterministic probability.
	t.Data[0] = float32(r.Dx())
	return t, nil
}

type fakeClassifier struct {
	calls int
	probs map[float32]float32
}

func (c *fakeClassifier) Predict(t eyestate.Tensor) (float32, error) {
	c.calls++
	if !t.Valid() {
		return 0, errors.New("invalid tensor")
	}
	return c.probs[t.Data[0]], nil
}

type fakeAnnotator struct{}

func (fakeAnnotator) Annotate(f *fakeFrame, p eyestate.Prediction) {
	f.annotated = append(f.annotated, p)
}

type fakePresenter struct {
	presented  []*fakeFrame
	annotCount []int // annotation count at present time
	quitAfter  int   // quit after this many presents; 0 = never
}

func (p *fakePresenter) Present(f *fakeFrame) error {
	p.presented = append(p.presented, f)
	p.annotCount = append(p.annotCount, len(f.annotated))
	return nil
}

func (p *fakePresenter) PollQuit() bool {
	return p.quitAfter > 0 && len(p.presented) >= p.quitAfter
}

func frames(n int) []*fakeFrame {
	out := make([]*fakeFrame, n)
	for i := range out {
		out[i] = &fakeFrame{id: i}
	}
	return out
}

func newTestLoop(t *testing.T, src *fakeSource, det *fakeDetector, pre *fakePreprocessor, cls *fakeClassifier, pres *fakePresenter, opts ...Option[*fakeFrame]) *Loop[*fakeFrame] {
	t.Helper()
	loop, err := New(Stages[*fakeFrame]{
		Source:       src,
		Detector:     det,
		Preprocessor: pre,
		Classifier:   cls,
		Annotator:    fakeAnnotator{},
		Presenter:    pres,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return loop
}

func TestNew_RequiresAllStages(t *testing.T) {
	_, err := New(Stages[*fakeFrame]{Source: &fakeSource{}})
	if err == nil {
		t.Fatal("expected error for missing stages")
	}
}

func TestRun_OnePredictionPerRegion(t *testing.T) {
	src := &fakeSource{frames: frames(3)}
	det := &fakeDetector{regions: map[int][]image.Rectangle{
		0: {image.Rect(0, 0, 10, 10), image.Rect(20, 0, 40, 20)},
		1: {},
		2: {image.Rect(5, 5, 35, 35)},
	}}
	pre := &fakePreprocessor{}
	cls := &fakeClassifier{probs: map[float32]float32{10: 0.73, 20: 0.5, 30: 0.1}}
	pres := &fakePresenter{}

	var results []FrameResult
	loop := newTestLoop(t, src, det, pre, cls, pres,
		WithObserver[*fakeFrame](func(r FrameResult) { results = append(results, r) }))

	stats, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Frames != 3 || stats.Regions != 3 || stats.Predictions != 3 {
		t.Errorf("stats = %+v, want 3 frames, 3 regions, 3 predictions", stats)
	}
	if cls.calls != 3 {
		t.Errorf("classifier called %d times, want 3", cls.calls)
	}
	if stats.Reason != ReasonEndOfStream {
		t.Errorf("reason = %q, want %q", stats.Reason, ReasonEndOfStream)
	}

	// Every region is annotated before its frame is presented.
	wantAnnotations := []int{2, 0, 1}
	for i, got := range pres.annotCount {
		if got != wantAnnotations[i] {
			t.Errorf("frame %d: %d annotations at present time, want %d", i, got, wantAnnotations[i])
		}
	}

	if len(results) != 3 {
		t.Fatalf("observer saw %d frames, want 3", len(results))
	}
	first := results[0].Predictions
	if first[0].Label != eyestate.Open || first[0].Text() != "Open (0.73)" {
		t.Errorf("first prediction = %+v (%s)", first[0], first[0].Text())
	}
	if first[1].Label != eyestate.Closed || first[1].Text() != "Closed (0.50)" {
		t.Errorf("second prediction = %+v (%s)", first[1], first[1].Text())
	}
}

func TestRun_SkipsDegenerateRegions(t *testing.T) {
	src := &fakeSource{frames: frames(1)}
	det := &fakeDetector{regions: map[int][]image.Rectangle{
		0: {
			image.Rect(0, 0, 10, 10),
			image.Rect(5, 5, 5, 30), // zero width
			image.Rect(5, 5, 30, 5), // zero height
		},
	}}
	pre := &fakePreprocessor{}
	cls := &fakeClassifier{probs: map[float32]float32{10: 0.9}}
	pres := &fakePresenter{}

	loop := newTestLoop(t, src, det, pre, cls, pres)
	stats, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", stats.Skipped)
	}
	if cls.calls != 1 {
		t.Errorf("classifier called %d times, want 1", cls.calls)
	}
	for _, r := range pre.prepared {
		if eyestate.Degenerate(r) {
			t.Errorf("degenerate region %v reached the classifier", r)
		}
	}
	if stats.Predictions+stats.Skipped != stats.Regions {
		t.Errorf("predictions %d + skipped %d != regions %d", stats.Predictions, stats.Skipped, stats.Regions)
	}
}

func TestRun_QuitDeferredUntilFramePresented(t *testing.T) {
	src := &fakeSource{frames: frames(5)}
	det := &fakeDetector{regions: map[int][]image.Rectangle{
		0: {image.Rect(0, 0, 10, 10)},
		1: {image.Rect(0, 0, 10, 10), image.Rect(0, 0, 20, 20)},
	}}
	pre := &fakePreprocessor{}
	cls := &fakeClassifier{probs: map[float32]float32{10: 0.6, 20: 0.2}}
	pres := &fakePresenter{quitAfter: 2}

	loop := newTestLoop(t, src, det, pre, cls, pres)
	stats, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Reason != ReasonQuit {
		t.Errorf("reason = %q, want quit", stats.Reason)
	}
	if stats.Frames != 2 {
		t.Errorf("frames = %d, want 2", stats.Frames)
	}
	// The frame during which quit was observed was fully annotated.
	if pres.annotCount[1] != 2 {
		t.Errorf("second frame had %d annotations at present, want 2", pres.annotCount[1])
	}
	if loop.State() != Terminating {
		t.Errorf("state = %v, want terminating", loop.State())
	}
	if src.next != 2 {
		t.Errorf("source read %d frames, want 2", src.next)
	}
}

func TestRun_ReadFailureIsGraceful(t *testing.T) {
	src := &fakeSource{
		frames: frames(2),
		err:    fmt.Errorf("camera 0: %w", eyestate.ErrReadFailure),
	}
	loop := newTestLoop(t, src, &fakeDetector{}, &fakePreprocessor{}, &fakeClassifier{}, &fakePresenter{})

	stats, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if stats.Frames != 2 || stats.Reason != ReasonEndOfStream {
		t.Errorf("stats = %+v", stats)
	}
	if eyestate.ExitCode(err) != eyestate.ExitOK {
		t.Errorf("exit code = %d, want 0", eyestate.ExitCode(err))
	}
}

func TestRun_UnexpectedReadError(t *testing.T) {
	boom := errors.New("driver crashed")
	src := &fakeSource{err: boom}
	loop := newTestLoop(t, src, &fakeDetector{}, &fakePreprocessor{}, &fakeClassifier{}, &fakePresenter{})

	_, err := loop.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	var stageErr *eyestate.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "read" {
		t.Errorf("expected read StageError, got %v", err)
	}
}

func TestRun_CancelledBetweenFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := &fakeSource{frames: frames(10)}
	det := &fakeDetector{regions: map[int][]image.Rectangle{}}
	var seen int
	loop := newTestLoop(t, src, det, &fakePreprocessor{}, &fakeClassifier{}, &fakePresenter{},
		WithObserver[*fakeFrame](func(FrameResult) {
			seen++
			if seen == 3 {
				cancel()
			}
		}))

	stats, err := loop.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Reason != ReasonCancelled {
		t.Errorf("reason = %q, want cancelled", stats.Reason)
	}
	if stats.Frames != 3 {
		t.Errorf("frames = %d, want 3", stats.Frames)
	}
}

type failingClassifier struct{}

func (failingClassifier) Predict(eyestate.Tensor) (float32, error) {
	return 0, errors.New("invoke failed")
}

func TestRun_ClassifierErrorStopsLoop(t *testing.T) {
	src := &fakeSource{frames: frames(2)}
	det := &fakeDetector{regions: map[int][]image.Rectangle{0: {image.Rect(0, 0, 10, 10)}}}
	pres := &fakePresenter{}

	loop, err := New(Stages[*fakeFrame]{
		Source:       src,
		Detector:     det,
		Preprocessor: &fakePreprocessor{},
		Classifier:   failingClassifier{},
		Annotator:    fakeAnnotator{},
		Presenter:    pres,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = loop.Run(context.Background())
	var stageErr *eyestate.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "classify" {
		t.Fatalf("expected classify StageError, got %v", err)
	}
	if len(pres.presented) != 0 {
		t.Errorf("frame presented after classifier failure")
	}
}

func TestState_String(t *testing.T) {
	if Running.String() != "running" || Terminating.String() != "terminating" {
		t.Errorf("unexpected state names: %s, %s", Running, Terminating)
	}
}
