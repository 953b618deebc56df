package annotate

import (
	"fmt"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// FrameSink receives JPEG-encoded frames. The slice is owned by the sink.
type FrameSink func(jpeg []byte)

// Headless encodes presented frames as JPEG and hands them to a sink instead
// of opening a window. The loop ends only through Stop or context
// cancellation.
type Headless struct {
	sink    FrameSink
	every   int
	count   int
	stopped atomic.Bool
}

// NewHeadless returns a presenter that forwards every nth frame to sink.
// n < 1 means every frame; a nil sink discards frames without encoding.
func NewHeadless(sink FrameSink, n int) *Headless {
	if n < 1 {
		n = 1
	}
	return &Headless{sink: sink, every: n}
}

// Present encodes frame and passes it to the sink.
func (h *Headless) Present(frame gocv.Mat) error {
	h.count++
	if h.sink == nil || (h.count-1)%h.every != 0 {
		return nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	h.sink(data)
	return nil
}

// Stop makes the next PollQuit report true.
func (h *Headless) Stop() {
	h.stopped.Store(true)
}

// PollQuit reports whether Stop was called.
func (h *Headless) PollQuit() bool {
	return h.stopped.Load()
}

// Frames is the number of frames presented so far.
func (h *Headless) Frames() int {
	return h.count
}
