// Package status tracks a smoothed, session-level eye state from the
// per-frame predictions of the loop. It only reports; nothing it computes
// feeds back into the per-region predictions.
package status

import (
	"sync"
	"time"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"github.com/teslashibe/go-eyestate/pkg/pipeline"
)

// Default smoothing: five frames, open above 0.4.
const (
	DefaultWindow    = 5
	DefaultThreshold = 0.4
)

// Config holds tracker configuration.
type Config struct {
	Window    int     `json:"window"`    // Frames in the moving average
	Threshold float32 `json:"threshold"` // Smoothed probability above which the state is Open
}

// DefaultConfig returns a 5-frame window with threshold 0.4.
func DefaultConfig() Config {
	return Config{Window: DefaultWindow, Threshold: DefaultThreshold}
}

// Status is the session state after a frame.
type Status struct {
	State     eyestate.Label `json:"state"`
	Smoothed  float32        `json:"smoothed"`
	Raw       float32        `json:"raw"`  // Mean of this frame's predictions
	Eyes      int            `json:"eyes"` // Predictions in this frame
	Frame     int            `json:"frame"`
	Stale     bool           `json:"stale"` // No eyes this frame; Smoothed is carried over
	UpdatedAt time.Time      `json:"updated_at"`
}

// Tracker keeps the moving average. Safe for concurrent use.
type Tracker struct {
	config Config

	mu      sync.RWMutex
	history []float32
	current Status
	frames  int
	eyes    int
	open    int
}

// NewTracker returns a tracker. Non-positive Window falls back to the
// default.
func NewTracker(cfg Config) *Tracker {
	if cfg.Window < 1 {
		cfg.Window = DefaultWindow
	}
	return &Tracker{
		config:  cfg,
		history: make([]float32, 0, cfg.Window),
		current: Status{State: eyestate.Closed},
	}
}

// Observe folds one frame into the average and returns the new status.
// Frames with no predictions keep the previous smoothed value.
func (t *Tracker) Observe(res pipeline.FrameResult) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames++
	s := Status{
		Frame:     res.Index,
		Eyes:      len(res.Predictions),
		Smoothed:  t.current.Smoothed,
		UpdatedAt: time.Now(),
	}

	if len(res.Predictions) == 0 {
		s.Stale = true
	} else {
		var sum float32
		for _, p := range res.Predictions {
			sum += p.Probability
			if p.Label == eyestate.Open {
				t.open++
			}
		}
		t.eyes += len(res.Predictions)
		s.Raw = sum / float32(len(res.Predictions))
		s.Smoothed = t.push(s.Raw)
	}

	s.State = t.decide(s.Smoothed)
	t.current = s
	return s
}

func (t *Tracker) push(p float32) float32 {
	if len(t.history) == t.config.Window {
		copy(t.history, t.history[1:])
		t.history = t.history[:len(t.history)-1]
	}
	t.history = append(t.history, p)

	var sum float32
	for _, v := range t.history {
		sum += v
	}
	return sum / float32(len(t.history))
}

func (t *Tracker) decide(smoothed float32) eyestate.Label {
	if smoothed > t.config.Threshold {
		return eyestate.Open
	}
	return eyestate.Closed
}

// Current returns the latest status.
func (t *Tracker) Current() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Summary aggregates over the whole session.
type Summary struct {
	Frames    int     `json:"frames"`
	Eyes      int     `json:"eyes"`
	OpenRatio float64 `json:"open_ratio"` // Share of predictions labelled Open
}

// Summary returns session totals.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Summary{Frames: t.frames, Eyes: t.eyes}
	if t.eyes > 0 {
		s.OpenRatio = float64(t.open) / float64(t.eyes)
	}
	return s
}
