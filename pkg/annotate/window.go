package annotate

import (
	"gocv.io/x/gocv"
)

// Keys that end the loop.
const (
	KeyQuit   = 'q'
	KeyEscape = 27
)

// IsQuitKey reports whether a WaitKey result is q or ESC. Only the low byte
// is compared since some platforms set modifier bits.
func IsQuitKey(key int) bool {
	if key < 0 {
		return false
	}
	k := key & 0xFF
	return k == KeyQuit || k == KeyEscape
}

// Window shows frames in a desktop window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Present shows frame.
func (w *Window) Present(frame gocv.Mat) error {
	w.win.IMShow(frame)
	return nil
}

// PollQuit pumps window events for 1ms and reports whether q or ESC was
// pressed.
func (w *Window) PollQuit() bool {
	return IsQuitKey(w.win.WaitKey(1))
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
