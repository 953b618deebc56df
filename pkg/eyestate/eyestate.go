// Package eyestate holds the data model shared by every stage of the eye-state
// pipeline: regions, input tensors, predictions and the open/closed decision.
package eyestate

import (
	"fmt"
	"image"
	"math"
)

// Input tensor geometry expected by the classifier artifact.
const (
	InputHeight   = 150
	InputWidth    = 150
	InputChannels = 3
)

// Threshold is the decision boundary between Closed and Open.
// A probability must be strictly greater than Threshold to be Open.
const Threshold float32 = 0.5

// Label is the binary eye state.
type Label int

const (
	Closed Label = iota
	Open
)

// String returns "Open" or "Closed".
func (l Label) String() string {
	if l == Open {
		return "Open"
	}
	return "Closed"
}

// MarshalText encodes the label as "open" or "closed".
func (l Label) MarshalText() ([]byte, error) {
	if l == Open {
		return []byte("open"), nil
	}
	return []byte("closed"), nil
}

// Decide maps a probability to a Label. p == Threshold is Closed.
func Decide(p float32) Label {
	if p > Threshold {
		return Open
	}
	return Closed
}

// FormatLabel renders the annotation text, e.g. "Open (0.73)".
func FormatLabel(l Label, p float32) string {
	return fmt.Sprintf("%s (%.2f)", l, p)
}

// ClampProbability forces p into [0,1]. NaN becomes 0.
func ClampProbability(p float32) float32 {
	switch {
	case math.IsNaN(float64(p)), p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Tensor is a single NHWC sample (batch of 1).
type Tensor struct {
	Data     []float32
	Height   int
	Width    int
	Channels int
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(h, w, c int) Tensor {
	return Tensor{
		Data:     make([]float32, h*w*c),
		Height:   h,
		Width:    w,
		Channels: c,
	}
}

// Shape returns the full shape including the batch dimension.
func (t Tensor) Shape() []int {
	return []int{1, t.Height, t.Width, t.Channels}
}

// Len is the number of elements the shape describes.
func (t Tensor) Len() int {
	return t.Height * t.Width * t.Channels
}

// Valid reports whether Data matches the declared shape.
func (t Tensor) Valid() bool {
	return t.Height > 0 && t.Width > 0 && t.Channels > 0 && len(t.Data) == t.Len()
}

// Prediction is the classifier verdict for one region.
type Prediction struct {
	Region      image.Rectangle `json:"region"`
	Probability float32         `json:"probability"`
	Label       Label           `json:"label"`
}

// NewPrediction builds a Prediction, clamping p and deriving the label.
func NewPrediction(r image.Rectangle, p float32) Prediction {
	p = ClampProbability(p)
	return Prediction{Region: r, Probability: p, Label: Decide(p)}
}

// Text is the annotation text for the prediction.
func (p Prediction) Text() string {
	return FormatLabel(p.Label, p.Probability)
}

// Degenerate reports whether r has no area.
func Degenerate(r image.Rectangle) bool {
	return r.Dx() <= 0 || r.Dy() <= 0
}
